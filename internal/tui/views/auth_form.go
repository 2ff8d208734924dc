package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/nyx-chat/nyx/internal/tui/ui"
	"github.com/rivo/tview"
)

const fieldWidth = 36

// authForm is the centered form shared by the login and register pages.
type authForm struct {
	*tview.Flex
	theme   *ui.Theme
	form    *tview.Form
	message *tview.TextView
}

func newAuthForm(theme *ui.Theme, title, subtitle string) *authForm {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitle(" " + title + " ")
	form.SetTitleColor(theme.TitleColor)
	form.SetLabelColor(theme.FgColor)
	form.SetFieldBackgroundColor(theme.FieldBgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetButtonBackgroundColor(theme.BorderColor)
	form.SetButtonTextColor(theme.TableCursorFg)
	form.SetButtonsAlign(tview.AlignCenter)

	header := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	header.SetBackgroundColor(theme.BgColor)
	_, _ = fmt.Fprintf(header, "[%s::b]%s[-:-:-]\n[%s]%s[-]",
		ui.ColorName(theme.TitleColor), "Welcome to NYX", ui.ColorName(theme.SystemColor), subtitle)

	message := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	message.SetBackgroundColor(theme.BgColor)

	column := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(header, 3, 0, false).
		AddItem(form, 0, 3, true).
		AddItem(message, 2, 0, false).
		AddItem(nil, 0, 1, false)

	flex := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(column, fieldWidth+24, 0, true).
		AddItem(nil, 0, 1, false)

	return &authForm{Flex: flex, theme: theme, form: form, message: message}
}

func (f *authForm) input(label string) *tview.InputField {
	in := tview.NewInputField().
		SetLabel(label).
		SetFieldWidth(fieldWidth)
	f.form.AddFormItem(in)
	return in
}

func (f *authForm) password(label string) *tview.InputField {
	return f.input(label).SetMaskCharacter('*')
}

// ShowError shows msg in the error color. Empty clears the line.
func (f *authForm) ShowError(msg string) {
	f.show(ui.ColorName(f.theme.FlashErrColor), msg)
}

// ShowInfo shows a neutral status line.
func (f *authForm) ShowInfo(msg string) {
	f.show(ui.ColorName(f.theme.FlashInfoColor), msg)
}

func (f *authForm) show(color, msg string) {
	f.message.Clear()
	if msg != "" {
		_, _ = fmt.Fprintf(f.message, "[%s]%s[-]", color, tview.Escape(msg))
	}
}

// FocusTarget implements ui.Component.
func (f *authForm) FocusTarget() tview.Primitive { return f.form }

// enterSubmits returns a done handler that calls submit on Enter.
func enterSubmits(submit func()) func(tcell.Key) {
	return func(key tcell.Key) {
		if key == tcell.KeyEnter {
			submit()
		}
	}
}
