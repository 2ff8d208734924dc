package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/nyx-chat/nyx/internal/auth"
	"github.com/nyx-chat/nyx/internal/chat"
	"github.com/nyx-chat/nyx/internal/directory"
	"github.com/nyx-chat/nyx/internal/domain"
)

type accountJSON struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"nyx_name"`
	Number  int    `json:"nyx_number"`
	Status  string `json:"status_message,omitempty"`
	Offline bool   `json:"offline,omitempty"`
}

type messageJSON struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver,omitempty"`
	Body      string    `json:"message"`
	Kind      string    `json:"message_type"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read,omitempty"`
}

type userJSON struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"nyx_name"`
	Number   int       `json:"nyx_number"`
	Status   string    `json:"status_message,omitempty"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

func toAccountJSON(a auth.Account) accountJSON {
	return accountJSON{
		UserID:  a.User.ID,
		Email:   a.User.Email,
		Name:    a.Profile.Name,
		Number:  a.Profile.Number,
		Status:  a.Profile.StatusMessage,
		Offline: a.Offline,
	}
}

func toMessageJSON(m domain.Message) messageJSON {
	return messageJSON{
		ID:        m.ID,
		Sender:    m.SenderName,
		Receiver:  m.ReceiverName,
		Body:      m.Body,
		Kind:      string(m.Kind),
		CreatedAt: m.CreatedAt,
		Read:      m.Read,
	}
}

func (c *cli) cmdLogin(ctx context.Context, args []string) error {
	var email string
	if len(args) > 0 {
		email = args[0]
	} else {
		var err error
		if email, err = promptLine(ctx, "Email: "); err != nil {
			return err
		}
	}
	password, err := promptPassword(ctx, "Password: ")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	acct, err := c.auth.Login(ctx, email, password)
	if err != nil {
		return errors.New(auth.Message(err))
	}
	if c.jsonOut {
		outputJSON(toAccountJSON(acct))
		return nil
	}
	fmt.Printf("Signed in as %s.\n", acct.Profile.Name)
	return nil
}

func (c *cli) cmdRegister(ctx context.Context) error {
	var in auth.RegisterInput
	var err error
	if in.FullName, err = promptLine(ctx, "Full name: "); err != nil {
		return err
	}
	if in.Email, err = promptLine(ctx, "Email: "); err != nil {
		return err
	}
	if in.Password, err = promptPassword(ctx, "Password: "); err != nil {
		return err
	}
	if in.Confirm, err = promptPassword(ctx, "Confirm password: "); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	reg, err := c.auth.Register(ctx, in)
	if err != nil {
		return errors.New(auth.Message(err))
	}
	if c.jsonOut {
		outputJSON(struct {
			Name        string `json:"nyx_name"`
			ManualLogin bool   `json:"manual_login"`
		}{reg.Name, reg.ManualLogin})
		return nil
	}
	fmt.Printf("Welcome to NYX, %s!\n", reg.Name)
	if reg.ManualLogin {
		fmt.Println("Please sign in with `nyxctl login`.")
	}
	return nil
}

func (c *cli) cmdLogout(ctx context.Context) error {
	var userID string
	if acct, err := c.auth.Whoami(ctx); err == nil {
		userID = acct.User.ID
	}
	if err := c.auth.Logout(ctx, userID); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func (c *cli) cmdWhoami(ctx context.Context) error {
	acct, err := c.auth.Whoami(ctx)
	if err != nil {
		return err
	}
	if c.jsonOut {
		outputJSON(toAccountJSON(acct))
		return nil
	}
	fmt.Printf("Name:   %s\n", acct.Profile.Name)
	fmt.Printf("Email:  %s\n", acct.User.Email)
	if acct.Profile.StatusMessage != "" {
		fmt.Printf("Status: %s\n", acct.Profile.StatusMessage)
	}
	if acct.Offline {
		fmt.Println("(backend unreachable, showing cached profile)")
	}
	return nil
}

// openState resolves the scope picked by --peer. The returned state is never
// subscribed to pushes.
func (c *cli) openState(ctx context.Context, peer int) (*chat.State, error) {
	acct, err := c.auth.Resume(ctx)
	if err != nil {
		return nil, err
	}
	scope := domain.PublicScope()
	if peer > 0 {
		if peer == acct.Profile.Number {
			return nil, errors.New("that is your own Nyx number")
		}
		p, err := c.client.ProfileByNumber(ctx, peer)
		if err != nil {
			return nil, fmt.Errorf("nyx %d: %w", peer, err)
		}
		scope = domain.PrivateScope(p)
	}
	return chat.NewState(scope, acct.Profile, c.client, c.bus, c.logger, chat.Options{
		HistoryLimit: c.cfg.HistoryLimit,
	}), nil
}

func (c *cli) cmdHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	peer := fs.Int("peer", 0, "Nyx number of the private chat")
	if err := fs.Parse(args); err != nil {
		return err
	}

	state, err := c.openState(ctx, *peer)
	if err != nil {
		return err
	}
	defer state.Detach()
	msgs, err := state.LoadHistory(ctx)
	if err != nil {
		return err
	}

	if c.jsonOut {
		out := make([]messageJSON, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, toMessageJSON(m))
		}
		outputJSON(out)
		return nil
	}
	if len(msgs) == 0 {
		fmt.Println("No messages yet.")
		return nil
	}
	for _, m := range msgs {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("Jan 2 15:04"), m.SenderName, m.Body)
	}
	return nil
}

func (c *cli) cmdSend(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	peer := fs.Int("peer", 0, "Nyx number of the private chat")
	if err := fs.Parse(args); err != nil {
		return err
	}
	text := strings.Join(fs.Args(), " ")

	state, err := c.openState(ctx, *peer)
	if err != nil {
		return err
	}
	defer state.Detach()

	m, err := state.AppendOptimistic(ctx, chat.Draft{Body: text})
	if err != nil {
		return err
	}
	state.Wait()

	for _, got := range state.Messages() {
		if got.LocalID == m.LocalID && !got.Pending {
			if c.jsonOut {
				outputJSON(toMessageJSON(got))
				return nil
			}
			fmt.Printf("Sent to %s.\n", state.Scope().Title())
			return nil
		}
	}
	if n := state.Notices(); len(n) > 0 && n[len(n)-1].Err != nil {
		return n[len(n)-1].Err
	}
	return errors.New("message was not delivered")
}

func (c *cli) cmdUsers(ctx context.Context, onlineOnly bool) error {
	acct, err := c.auth.Resume(ctx)
	if err != nil {
		return err
	}
	dir := directory.New(c.client, c.bus, c.logger, acct.User.ID, c.cfg.DirectoryPoll.Duration)
	if err := dir.Load(ctx); err != nil {
		return err
	}
	if err := dir.RefreshOnline(ctx); err != nil {
		return err
	}

	var entries []directory.Entry
	for _, e := range dir.Entries(time.Now()) {
		if onlineOnly && !e.IsOnline {
			continue
		}
		entries = append(entries, e)
	}

	if c.jsonOut {
		out := make([]userJSON, 0, len(entries))
		for _, e := range entries {
			out = append(out, userJSON{
				UserID: e.UserID, Name: e.Name, Number: e.Number,
				Status: e.Status, Online: e.IsOnline, LastSeen: e.LastSeen,
			})
		}
		outputJSON(out)
		return nil
	}
	if len(entries) == 0 {
		fmt.Println("Nobody here yet.")
		return nil
	}
	for _, e := range entries {
		state := "offline"
		if e.IsOnline {
			state = "online"
		}
		fmt.Printf("%-10s %-8s %s\n", e.Name, state, e.Status)
	}
	return nil
}
