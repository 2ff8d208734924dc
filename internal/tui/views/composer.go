package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/nyx-chat/nyx/internal/tui/ui"
	"github.com/rivo/tview"
)

// Composer is the message input. Lines starting with '/' are handed to
// the command callback instead of being sent.
type Composer struct {
	*tview.InputField
	onSend    func(text string)
	onCommand func(line string)
	onLeave   func()
}

// NewComposer creates a new message composer.
func NewComposer(theme *ui.Theme) *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0).
		SetPlaceholder("Type a message, /help for commands")
	input.SetBorder(true)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetPlaceholderTextColor(theme.SystemColor)
	input.SetLabelColor(theme.MenuKeyColor)

	c := &Composer{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := strings.TrimSpace(c.GetText())
			if text == "" {
				return
			}
			c.SetText("")
			if strings.HasPrefix(text, "/") {
				if c.onCommand != nil {
					c.onCommand(strings.TrimPrefix(text, "/"))
				}
				return
			}
			if c.onSend != nil {
				c.onSend(text)
			}
		case tcell.KeyEscape:
			if c.onLeave != nil {
				c.onLeave()
			}
		}
	})

	return c
}

// SetOnSend sets the callback when a message is sent.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// SetOnCommand sets the callback for '/' lines, called without the slash.
func (c *Composer) SetOnCommand(fn func(line string)) {
	c.onCommand = fn
}

// SetOnLeave sets the callback when Esc is pressed in the composer.
func (c *Composer) SetOnLeave(fn func()) {
	c.onLeave = fn
}
