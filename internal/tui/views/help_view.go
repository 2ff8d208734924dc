package views

import (
	"fmt"
	"strings"

	"github.com/nyx-chat/nyx/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpEntry is one row of the help page.
type HelpEntry struct {
	Keys        string
	Description string
}

// HelpSection groups entries under a heading.
type HelpSection struct {
	Title   string
	Entries []HelpEntry
}

// DefaultHelp lists the keys and commands of the client.
var DefaultHelp = []HelpSection{
	{Title: "Global Keys", Entries: []HelpEntry{
		{":", "Command mode"},
		{"?", "Help"},
		{"Esc", "Go back"},
		{"q", "Quit (outside inputs)"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{Title: "Chat", Entries: []HelpEntry{
		{"i", "Focus the composer"},
		{"Enter", "Send message"},
		{"Esc", "Leave the composer"},
		{"u", "Users"},
		{"r", "The Cosmic River"},
	}},
	{Title: "Users", Entries: []HelpEntry{
		{"Enter", "Private chat with the selected user"},
		{"1-9", "Private chat with the Nth user"},
		{"/", "Filter by name, number or status"},
		{"j/k", "Move down / up"},
	}},
	{Title: "Commands (: mode, or / in the composer)", Entries: []HelpEntry{
		{"room", "Open The Cosmic River"},
		{"users", "List users"},
		{"dm <number>", "Private chat with Nyx <number>"},
		{"logout", "Sign out"},
		{"help", "Show this help"},
		{"quit", "Quit"},
	}},
}

// HelpView displays the key and command reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme, sections []HelpSection) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	_, _ = fmt.Fprint(hv, renderHelp(theme, sections))
	return hv
}

// Name implements ui.Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements ui.Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// FocusTarget implements ui.Component.
func (hv *HelpView) FocusTarget() tview.Primitive { return hv.TextView }

func renderHelp(theme *ui.Theme, sections []HelpSection) string {
	kc := ui.ColorName(theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", tview.Escape(s.Title))
		for _, e := range s.Entries {
			fmt.Fprintf(&b, "  [%s]%-14s[-:-:-] %s\n", kc, tview.Escape(e.Keys), e.Description)
		}
	}
	return b.String()
}
