package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// menuRows is the header height available to hints before wrapping into a
// second column.
const menuRows = 5

// Menu displays keyboard shortcut hints in columns.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders menu hints, menuRows per column.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()

	cols := (len(hints) + menuRows - 1) / menuRows
	for row := 0; row < menuRows && row < len(hints); row++ {
		for col := 0; col < cols; col++ {
			i := col*menuRows + row
			if i >= len(hints) {
				break
			}
			_, _ = fmt.Fprint(m, m.cell(hints[i]))
		}
		_, _ = fmt.Fprintln(m)
	}
}

func (m *Menu) cell(h MenuHint) string {
	kc := ColorName(m.theme.MenuKeyColor)
	if h.Numeric {
		kc = ColorName(m.theme.NumericKeyColor)
	}
	key := "<" + h.Key + ">"
	return fmt.Sprintf("[%s::b]%-8s[-:-:-] %-14s", kc, tview.Escape(key), h.Description)
}
