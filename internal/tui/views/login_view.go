package views

import (
	"github.com/nyx-chat/nyx/internal/tui/ui"
	"github.com/rivo/tview"
)

// LoginView is the sign-in page.
type LoginView struct {
	*authForm
	email    *tview.InputField
	password *tview.InputField
	onLogin  func(email, password string)
	onSwitch func()
}

// NewLoginView creates the sign-in page.
func NewLoginView(theme *ui.Theme) *LoginView {
	f := newAuthForm(theme, "Login", "Sign in to join The Cosmic River")
	lv := &LoginView{authForm: f}
	lv.email = f.input("Email")
	lv.password = f.password("Password")
	f.form.AddButton("Login", lv.submit)
	f.form.AddButton("Create account", func() {
		if lv.onSwitch != nil {
			lv.onSwitch()
		}
	})
	lv.password.SetDoneFunc(enterSubmits(lv.submit))
	return lv
}

// Name implements ui.Component.
func (lv *LoginView) Name() string { return "Login" }

// Hints implements ui.Component.
func (lv *LoginView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Login"},
		{Key: "Ctrl-C", Description: "Quit"},
	}
}

// SetOnLogin sets the submit callback.
func (lv *LoginView) SetOnLogin(fn func(email, password string)) { lv.onLogin = fn }

// SetOnSwitch sets the callback of the "Create account" button.
func (lv *LoginView) SetOnSwitch(fn func()) { lv.onSwitch = fn }

// Prefill sets the email and clears the password.
func (lv *LoginView) Prefill(email string) {
	lv.email.SetText(email)
	lv.password.SetText("")
}

// Reset clears both fields and the message line.
func (lv *LoginView) Reset() {
	lv.Prefill("")
	lv.ShowError("")
}

func (lv *LoginView) submit() {
	if lv.onLogin != nil {
		lv.onLogin(lv.email.GetText(), lv.password.GetText())
	}
}
