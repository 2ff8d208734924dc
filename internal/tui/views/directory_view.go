package views

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/nyx-chat/nyx/internal/directory"
	"github.com/nyx-chat/nyx/internal/tui/ui"
	"github.com/rivo/tview"
)

// DirectoryView lists every other user; Enter opens a private chat.
type DirectoryView struct {
	*tview.Table
	theme   *ui.Theme
	entries []directory.Entry
	visible []directory.Entry
	filter  string
	now     func() time.Time
}

// NewDirectoryView creates the users page.
func NewDirectoryView(theme *ui.Theme) *DirectoryView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	dv := &DirectoryView{
		Table: table,
		theme: theme,
		now:   time.Now,
	}
	dv.render()
	return dv
}

// Name implements ui.Component.
func (dv *DirectoryView) Name() string { return "Users" }

// Hints implements ui.Component.
func (dv *DirectoryView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Chat"},
		{Key: "/", Description: "Filter"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// FocusTarget implements ui.Component.
func (dv *DirectoryView) FocusTarget() tview.Primitive { return dv.Table }

// Update replaces the list.
func (dv *DirectoryView) Update(entries []directory.Entry) {
	dv.entries = entries
	dv.render()
}

// SetFilter keeps only users whose name, number or status contain filter.
func (dv *DirectoryView) SetFilter(filter string) {
	dv.filter = filter
	dv.render()
}

// Filter returns the active filter.
func (dv *DirectoryView) Filter() string { return dv.filter }

func (dv *DirectoryView) matches(e directory.Entry) bool {
	if dv.filter == "" {
		return true
	}
	return containsFold(e.Name, dv.filter) ||
		containsFold(e.Status, dv.filter) ||
		strconv.Itoa(e.Number) == dv.filter
}

func (dv *DirectoryView) render() {
	dv.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{"", 0},
		{" NAME", 1},
		{" NUMBER", 0},
		{" LAST SEEN", 0},
		{" STATUS", 2},
	}
	for col, h := range headers {
		dv.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(dv.theme.TableHeaderFg).
			SetBackgroundColor(dv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	now := dv.now()
	dv.visible = dv.visible[:0]
	online := 0
	for _, e := range dv.entries {
		if e.IsOnline {
			online++
		}
		if !dv.matches(e) {
			continue
		}
		dv.visible = append(dv.visible, e)
		row := len(dv.visible)

		dot, seen := dv.theme.OfflineColor, lastSeen(e.LastSeen, now)
		if e.IsOnline {
			dot, seen = dv.theme.OnlineColor, "online"
		}
		name := e.Name
		if name == "" {
			name = "Unknown Nyx"
		}
		dv.SetCell(row, 0, tview.NewTableCell(" ●").SetTextColor(dot))
		dv.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitize(name, false))).SetExpansion(1).SetTextColor(dv.theme.FgColor))
		dv.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf(" #%d", e.Number)).SetTextColor(dv.theme.CounterColor).SetAlign(tview.AlignRight))
		dv.SetCell(row, 3, tview.NewTableCell(" "+seen).SetTextColor(dv.theme.FgColor))
		dv.SetCell(row, 4, tview.NewTableCell(" "+tview.Escape(sanitize(e.Status, false))).SetExpansion(2).SetTextColor(dv.theme.SystemColor))
	}

	if dv.filter != "" {
		dv.SetTitle(fmt.Sprintf(" Users (%d/%d) filter: %s ", len(dv.visible), len(dv.entries), tview.Escape(dv.filter)))
	} else {
		dv.SetTitle(fmt.Sprintf(" Users (%d, %d online) ", len(dv.entries), online))
	}
	if len(dv.visible) > 0 {
		if row, _ := dv.GetSelection(); row < 1 || row > len(dv.visible) {
			dv.Select(1, 0)
		}
	}
}

// Selected returns the entry under the cursor.
func (dv *DirectoryView) Selected() (directory.Entry, bool) {
	row, _ := dv.GetSelection()
	return dv.At(row)
}

// At returns the nth visible entry (1-based).
func (dv *DirectoryView) At(n int) (directory.Entry, bool) {
	if n < 1 || n > len(dv.visible) {
		return directory.Entry{}, false
	}
	return dv.visible[n-1], true
}
