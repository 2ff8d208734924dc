package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// AccountData is what the header shows about the signed-in user.
type AccountData struct {
	Account string
	Name    string
	Number  int
	Scope   string
	Status  string
	Online  int
	Offline bool
}

// AccountInfo displays account metadata in the header.
type AccountInfo struct {
	*tview.TextView
	theme *Theme
}

// NewAccountInfo creates a new account info panel.
func NewAccountInfo(theme *Theme) *AccountInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &AccountInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the account info. nil shows the signed-out header.
func (ai *AccountInfo) Update(data *AccountData) {
	ai.Clear()

	fgColor := ColorName(ai.theme.FgColor)
	counterColor := ColorName(ai.theme.CounterColor)
	row := func(label, value string) {
		_, _ = fmt.Fprintf(ai, "[%s::b]%-8s[-:-:-] [%s]%s[-]\n", fgColor, label+":", counterColor, tview.Escape(value))
	}

	if data == nil {
		row("Account", "-")
		row("Nyx", "signed out")
		return
	}

	name := data.Name
	if name == "" {
		name = "-"
	} else if data.Number > 0 {
		name = fmt.Sprintf("%s (#%d)", name, data.Number)
	}
	status := data.Status
	if data.Offline {
		status = "OFFLINE"
	}
	if status == "" {
		status = "-"
	}
	scope := data.Scope
	if scope == "" {
		scope = "-"
	}

	row("Account", data.Account)
	row("Nyx", name)
	row("Chat", scope)
	row("Status", status)
	row("Online", fmt.Sprintf("%d", data.Online))
}
