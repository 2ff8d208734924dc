package views

import (
	"github.com/nyx-chat/nyx/internal/auth"
	"github.com/nyx-chat/nyx/internal/tui/ui"
	"github.com/rivo/tview"
)

// RegisterView is the account creation page.
type RegisterView struct {
	*authForm
	name       *tview.InputField
	email      *tview.InputField
	password   *tview.InputField
	confirm    *tview.InputField
	onRegister func(auth.RegisterInput)
	onBack     func()
}

// NewRegisterView creates the account creation page.
func NewRegisterView(theme *ui.Theme) *RegisterView {
	f := newAuthForm(theme, "Register", "Every new traveller gets a Nyx number")
	rv := &RegisterView{authForm: f}
	rv.name = f.input("Full name")
	rv.email = f.input("Email")
	rv.password = f.password("Password")
	rv.confirm = f.password("Confirm password")
	f.form.AddButton("Register", rv.submit)
	f.form.AddButton("Back to login", func() {
		if rv.onBack != nil {
			rv.onBack()
		}
	})
	rv.confirm.SetDoneFunc(enterSubmits(rv.submit))
	return rv
}

// Name implements ui.Component.
func (rv *RegisterView) Name() string { return "Register" }

// Hints implements ui.Component.
func (rv *RegisterView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Register"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnRegister sets the submit callback.
func (rv *RegisterView) SetOnRegister(fn func(auth.RegisterInput)) { rv.onRegister = fn }

// SetOnBack sets the callback of the "Back to login" button.
func (rv *RegisterView) SetOnBack(fn func()) { rv.onBack = fn }

// Reset clears every field and the message line.
func (rv *RegisterView) Reset() {
	for _, in := range []*tview.InputField{rv.name, rv.email, rv.password, rv.confirm} {
		in.SetText("")
	}
	rv.ShowError("")
}

// Input returns the form contents.
func (rv *RegisterView) Input() auth.RegisterInput {
	return auth.RegisterInput{
		FullName: rv.name.GetText(),
		Email:    rv.email.GetText(),
		Password: rv.password.GetText(),
		Confirm:  rv.confirm.GetText(),
	}
}

func (rv *RegisterView) submit() {
	if rv.onRegister != nil {
		rv.onRegister(rv.Input())
	}
}
