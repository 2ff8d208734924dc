// Package tui is the interactive terminal client.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/nyx-chat/nyx/internal/auth"
	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/bus"
	"github.com/nyx-chat/nyx/internal/chat"
	"github.com/nyx-chat/nyx/internal/domain"
	"github.com/nyx-chat/nyx/internal/tui/keys"
	"github.com/nyx-chat/nyx/internal/tui/model"
	"github.com/nyx-chat/nyx/internal/tui/ui"
	"github.com/nyx-chat/nyx/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	pageLogin    = "login"
	pageRegister = "register"
	pageChat     = "chat"
	pageUsers    = "users"
	pageHelp     = "help"
)

const (
	headerHeight = 5
	promptHeight = 3
)

const presenceRefresh = 15 * time.Second

// Session is the signed-in runtime the TUI drives.
type Session interface {
	Resume(ctx context.Context) (auth.Account, error)
	Login(ctx context.Context, email, password string) (auth.Account, error)
	Register(ctx context.Context, in auth.RegisterInput) (auth.Registration, error)
	OpenRoom(ctx context.Context) (*chat.Conversation, error)
	OpenPrivate(ctx context.Context, number int) (*chat.Conversation, error)
	Send(ctx context.Context, body string) (domain.Message, error)
	Active() *chat.Conversation
	Logout(ctx context.Context) error
}

// Options configures the TUI.
type Options struct {
	Account        string
	NoticeDuration time.Duration
}

// App is the main TUI application shell.
type App struct {
	app    *tview.Application
	sess   Session
	bus    *bus.Bus
	logger *zap.Logger
	opts   Options
	screen tcell.Screen

	theme    *ui.Theme
	pages    *ui.Pages
	main     *tview.Flex
	registry *keys.Registry
	vm       *model.ViewModel
	flash    *ui.FlashModel

	info     *ui.AccountInfo
	menu     *ui.Menu
	logo     *ui.Logo
	prompt   *ui.Prompt
	crumbs   *ui.Crumbs
	flashBar *ui.FlashBar

	login    *views.LoginView
	register *views.RegisterView
	chat     *views.ChatView
	users    *views.DirectoryView
	help     *views.HelpView
	comps    map[string]ui.Component

	account *auth.Account
	focus   tview.Primitive // restored when the prompt closes

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp creates the TUI application.
func NewApp(sess Session, eb *bus.Bus, logger *zap.Logger, opts Options) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		sess:     sess,
		bus:      eb,
		logger:   logger.Named("tui"),
		opts:     opts,
		theme:    theme,
		pages:    ui.NewPages(),
		registry: keys.NewRegistry(),
		flash:    ui.NewFlashModel(opts.NoticeDuration),
		info:     ui.NewAccountInfo(theme),
		menu:     ui.NewMenu(theme),
		logo:     ui.NewLogo(theme),
		prompt:   ui.NewPrompt(theme),
		crumbs:   ui.NewCrumbs(theme),
		flashBar: ui.NewFlashBar(theme),
		login:    views.NewLoginView(theme),
		register: views.NewRegisterView(theme),
		chat:     views.NewChatView(theme),
		users:    views.NewDirectoryView(theme),
		help:     views.NewHelpView(theme, views.DefaultHelp),
		ctx:      ctx,
		cancel:   cancel,
	}
	a.vm = model.NewViewModel(a.activeState, time.Now)
	a.comps = map[string]ui.Component{
		pageLogin:    a.login,
		pageRegister: a.register,
		pageChat:     a.chat,
		pageUsers:    a.users,
		pageHelp:     a.help,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) activeState() *chat.State {
	if conv := a.sess.Active(); conv != nil {
		return conv.State()
	}
	return nil
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Hint: "Command", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?', Hint: "Help", Visible: true,
		Handler: func() { a.show(pageHelp) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Hint: "Quit", Visible: true,
		Handler: a.Stop,
	})

	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Hint: "Compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.chat.Composer()) },
	})
	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'u', Hint: "Users", Visible: true,
		Handler: func() { a.show(pageUsers) },
	})
	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Hint: "River", Visible: true,
		Handler: a.openRoom,
	})

	a.registry.AddView(pageUsers, &keys.Action{
		Key: tcell.KeyEnter, Label: "Enter", Hint: "Chat", Visible: true,
		Handler: func() {
			if e, ok := a.users.Selected(); ok {
				a.openPrivate(e.Number)
			}
		},
	})
	a.registry.AddView(pageUsers, &keys.Action{
		Key: tcell.KeyRune, Rune: '/', Hint: "Filter", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageUsers, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Hint: "River", Visible: true,
		Handler: a.openRoom,
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageUsers, &keys.Action{
			Key: tcell.KeyRune, Rune: rune('0' + n),
			Handler: func() {
				if e, ok := a.users.At(n); ok {
					a.openPrivate(e.Number)
				}
			},
		})
	}
}

func (a *App) setupCallbacks() {
	a.login.SetOnLogin(func(email, password string) {
		a.login.ShowInfo("Signing in...")
		a.background(func(ctx context.Context) {
			acct, err := a.sess.Login(ctx, email, password)
			a.queue(func() {
				if err != nil {
					a.login.ShowError(auth.Message(err))
					return
				}
				a.login.Reset()
				a.signedIn(acct)
			})
		})
	})
	a.login.SetOnSwitch(func() { a.showAuth(pageRegister) })

	a.register.SetOnRegister(func(in auth.RegisterInput) {
		a.register.ShowInfo("Creating your account...")
		a.background(func(ctx context.Context) {
			reg, err := a.sess.Register(ctx, in)
			a.queue(func() {
				if err != nil {
					a.register.ShowError(auth.Message(err))
					return
				}
				a.register.Reset()
				if reg.ManualLogin {
					a.showAuth(pageLogin)
					a.login.Prefill(auth.NormalizeEmail(in.Email))
					a.login.ShowInfo(fmt.Sprintf("Welcome, %s! Please log in.", reg.Name))
					return
				}
				a.flash.Info(fmt.Sprintf("Welcome to NYX, %s!", reg.Name))
				a.signedIn(reg.Account)
			})
		})
	})
	a.register.SetOnBack(func() { a.showAuth(pageLogin) })

	a.chat.Composer().SetOnSend(a.send)
	a.chat.Composer().SetOnCommand(func(line string) { a.execute(ParseCommand(line)) })
	a.chat.Composer().SetOnLeave(func() { a.app.SetFocus(a.chat.Messages()) })

	a.users.SetSelectedFunc(func(row, _ int) {
		if e, ok := a.users.At(row); ok {
			a.openPrivate(e.Number)
		}
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.execute(ParseCommand(text))
		case ui.PromptFilter:
			a.users.SetFilter(text)
		}
	})
	a.prompt.SetOnCancel(func() {
		if a.prompt.Mode() == ui.PromptFilter {
			a.users.SetFilter("")
		}
		a.hidePrompt()
	})

	a.pages.SetOnChange(func([]string) { a.updateChrome() })
}

func (a *App) setupLayout() {
	for name, c := range a.comps {
		a.pages.AddPage(name, c, true, false)
	}

	header := tview.NewFlex().
		AddItem(a.info, 0, 2, false).
		AddItem(a.menu, 0, 3, false).
		AddItem(a.logo, 18, 0, false)

	a.main = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerHeight, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(a.main, true)
	a.app.SetInputCapture(a.capture)
}

func (a *App) capture(ev *tcell.EventKey) *tcell.EventKey {
	focused := a.app.GetFocus()
	if focused == a.prompt {
		return ev
	}
	current := a.pages.Current()

	if ev.Key() == tcell.KeyEscape {
		switch current {
		case pageHelp, pageUsers:
			a.back()
			return nil
		case pageRegister:
			a.showAuth(pageLogin)
			return nil
		}
		return ev
	}

	switch focused.(type) {
	case *tview.InputField, *views.Composer:
		return ev
	}
	if current == pageLogin || current == pageRegister {
		return ev
	}
	if a.registry.HandleEvent(current, ev) {
		return nil
	}
	return ev
}

// Run starts the TUI and blocks until it exits.
func (a *App) Run() error {
	if a.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("open terminal: %w", err)
		}
		a.screen = screen
	}
	a.app.SetScreen(a.screen)

	events, unsubscribe := a.bus.Subscribe("", 256)
	defer unsubscribe()

	a.wg.Add(2)
	go a.pump(events)
	go a.refreshLoop()
	a.background(a.resume)

	a.showAuth(pageLogin)
	a.login.ShowInfo("Connecting...")
	a.updateChrome()

	var err error
	if a.ctx.Err() == nil {
		err = a.app.Run()
	}
	a.cancel()
	a.wg.Wait()
	return err
}

// RunContext is Run, stopping the TUI when ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	release := context.AfterFunc(ctx, a.Stop)
	defer release()
	return a.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// queue runs f on the UI goroutine and redraws. It returns without running f
// once the app is shutting down: tview stops draining its update queue when
// the event loop exits, and a blocked caller would stall Run.
func (a *App) queue(f func()) {
	done := make(chan struct{})
	go func() {
		a.app.QueueUpdateDraw(f)
		close(done)
	}()
	select {
	case <-done:
	case <-a.ctx.Done():
	}
}

func (a *App) background(fn func(ctx context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.ctx)
	}()
}

func (a *App) pump(events <-chan bus.Event) {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case evt := <-events:
			a.queue(func() { a.render(a.vm.Apply(evt)) })
		}
	}
}

// refreshLoop expires flash messages and repaints presence, whose
// freshness depends on the clock as well as on events.
func (a *App) refreshLoop() {
	defer a.wg.Done()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	presence := time.NewTicker(presenceRefresh)
	defer presence.Stop()
	for {
		select {
		case <-a.ctx.Done():
			timer.Stop()
			return
		case fm := <-a.flash.Watch():
			a.queue(a.refreshFlash)
			timer.Reset(time.Until(fm.Expires))
		case <-timer.C:
			a.queue(a.refreshFlash)
		case <-presence.C:
			a.queue(func() { a.render(model.ChangePresence | model.ChangeDirectory) })
		}
	}
}

func (a *App) refreshFlash() {
	a.flashBar.Update(a.flash.GetMessage())
}

func (a *App) resume(ctx context.Context) {
	acct, err := a.sess.Resume(ctx)
	a.queue(func() {
		if err != nil {
			msg := ""
			if !errors.Is(err, backend.ErrNotAuthenticated) {
				a.logger.Warn("resume failed", zap.Error(err))
				msg = auth.Message(err)
			}
			a.login.ShowError(msg)
			return
		}
		a.login.Reset()
		a.signedIn(acct)
	})
}

// signedIn must run on the UI goroutine.
func (a *App) signedIn(acct auth.Account) {
	a.account = &acct
	a.logger.Info("signed in", zap.String("nyx_name", acct.Profile.Name))
	a.pages.Reset(pageChat)
	a.focusPage()
	a.openRoom()
}

func (a *App) signedOut() {
	a.account = nil
	a.vm.Reset()
	a.chat.SetScope(domain.RoomName, false)
	a.chat.Update(nil, "", time.Now())
	a.users.Update(nil)
	a.showAuth(pageLogin)
}

func (a *App) openRoom() {
	a.switchScope(func(ctx context.Context) (*chat.Conversation, error) {
		return a.sess.OpenRoom(ctx)
	})
}

func (a *App) openPrivate(number int) {
	a.switchScope(func(ctx context.Context) (*chat.Conversation, error) {
		conv, err := a.sess.OpenPrivate(ctx, number)
		if errors.Is(err, backend.ErrProfileMissing) {
			return nil, fmt.Errorf("nobody holds Nyx number %d", number)
		}
		return conv, err
	})
}

// switchScope opens a conversation off the UI goroutine: closing the
// previous one waits for its in-flight writes.
func (a *App) switchScope(open func(ctx context.Context) (*chat.Conversation, error)) {
	if a.account == nil {
		return
	}
	a.background(func(ctx context.Context) {
		_, err := open(ctx)
		a.queue(func() {
			if err != nil {
				a.fail(err)
				return
			}
			a.pages.Reset(pageChat)
			a.render(a.vm.Sync())
			a.focusPage()
		})
	})
}

// send appends optimistically; the write itself happens in the background,
// so calling it on the UI goroutine keeps the order of sends.
func (a *App) send(text string) {
	if _, err := a.sess.Send(a.ctx, text); err != nil {
		a.fail(err)
	}
}

func (a *App) logout() {
	a.background(func(ctx context.Context) {
		err := a.sess.Logout(ctx)
		a.queue(func() {
			a.signedOut()
			if err != nil {
				a.flash.Warn(auth.Message(err))
				return
			}
			a.login.ShowInfo("You have been logged out.")
		})
	})
}

func (a *App) fail(err error) {
	if errors.Is(err, backend.ErrNotAuthenticated) {
		a.signedOut()
		a.login.ShowError(auth.Message(err))
		return
	}
	if errors.Is(err, chat.ErrEmptyDraft) {
		return
	}
	a.flash.Err(auth.Message(err))
}

func (a *App) execute(cmd Command) {
	signedIn := a.account != nil
	switch cmd.Name {
	case "":
	case CmdHelp:
		a.show(pageHelp)
	case CmdQuit:
		a.Stop()
	case CmdRoom, CmdUsers, CmdDM, CmdLogout:
		if !signedIn {
			a.flash.Warn("Please log in first")
			return
		}
		switch cmd.Name {
		case CmdRoom:
			a.openRoom()
		case CmdUsers:
			a.show(pageUsers)
		case CmdDM:
			n, err := ParseNumber(cmd.Args)
			if err != nil {
				a.flash.Warn(err.Error())
				return
			}
			a.openPrivate(n)
		case CmdLogout:
			a.logout()
		}
	default:
		a.flash.Warn(fmt.Sprintf("Unknown command %q, try :help", cmd.Name))
	}
}

// render redraws the regions in change. It must run on the UI goroutine.
func (a *App) render(change model.Change) {
	now := time.Now()
	meID := ""
	if a.account != nil {
		meID = a.account.User.ID
	}

	if change.Has(model.ChangeSession) {
		if a.account != nil {
			a.signedOut()
		}
		return
	}
	if title := a.vm.Title(); title != "" && title != a.chat.Name() {
		a.chat.SetScope(title, a.vm.Private())
		change |= model.ChangeChat
	}
	if change.Has(model.ChangeMessages) {
		a.chat.Update(a.vm.Messages(), meID, now)
	}
	if change.Has(model.ChangePresence) || change.Has(model.ChangeStatus) {
		a.chat.UpdatePresence(a.vm.Online(), a.vm.PeerOnline(), string(a.vm.Status()))
	}
	if change.Has(model.ChangeDirectory) {
		a.users.Update(a.vm.Directory())
	}
	if change.Has(model.ChangeNotice) {
		if n := a.vm.Notice(); n != nil {
			a.flash.Err(n.Text)
		}
	}
	if change.Has(model.ChangeIncoming) {
		if in, _ := a.vm.Incoming(); in != nil {
			if a.screen != nil {
				_ = a.screen.Beep()
			}
			if a.pages.Current() != pageChat {
				a.flash.Info("New message from " + in.Message.SenderName)
			}
		}
	}
	a.updateChrome()
}

func (a *App) updateChrome() {
	current := a.pages.Current()

	var data *ui.AccountData
	if a.account != nil {
		online := 0
		for _, e := range a.vm.Directory() {
			if e.IsOnline {
				online++
			}
		}
		data = &ui.AccountData{
			Account: a.opts.Account,
			Name:    a.account.Profile.Name,
			Number:  a.account.Profile.Number,
			Scope:   a.vm.Title(),
			Status:  string(a.vm.Status()),
			Online:  online,
			Offline: a.account.Offline,
		}
	}
	a.info.Update(data)

	var hints []ui.MenuHint
	if c, ok := a.comps[current]; ok {
		hints = append(hints, c.Hints()...)
	}
	if current != pageLogin && current != pageRegister {
		hints = append(hints, a.registry.Hints(current)...)
	}
	a.menu.Update(dedupeHints(hints))

	var trail []string
	for _, name := range a.pages.Stack() {
		if c, ok := a.comps[name]; ok {
			trail = append(trail, c.Name())
		}
	}
	a.crumbs.Update(trail)
}

// dedupeHints keeps the first hint of every key.
func dedupeHints(hints []ui.MenuHint) []ui.MenuHint {
	seen := make(map[string]bool, len(hints))
	out := hints[:0]
	for _, h := range hints {
		if seen[h.Key] {
			continue
		}
		seen[h.Key] = true
		out = append(out, h)
	}
	return out
}

func (a *App) show(name string) {
	a.pages.Push(name)
	a.focusPage()
}

func (a *App) showAuth(name string) {
	a.pages.Reset(name)
	a.focusPage()
}

func (a *App) back() {
	a.pages.Pop()
	a.focusPage()
}

func (a *App) focusPage() {
	if c, ok := a.comps[a.pages.Current()]; ok {
		a.app.SetFocus(c.FocusTarget())
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.focus = a.app.GetFocus()
	a.prompt.Activate(mode)
	if mode == ui.PromptFilter {
		a.prompt.SetText(a.users.Filter())
	}
	a.main.ResizeItem(a.prompt, promptHeight, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.main.ResizeItem(a.prompt, 0, 0)
	if a.focus != nil {
		a.app.SetFocus(a.focus)
		a.focus = nil
		return
	}
	a.focusPage()
}
