package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // true for the 1-9 jump keys (displayed in a different color)
}

// Component is a page of the TUI.
type Component interface {
	tview.Primitive
	Name() string
	Hints() []MenuHint
	// FocusTarget is the primitive that takes focus when the page is shown.
	FocusTarget() tview.Primitive
}
