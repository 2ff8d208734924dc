package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/nyx-chat/nyx/internal/domain"
	"github.com/nyx-chat/nyx/internal/tui/ui"
	"github.com/rivo/tview"
)

const rosterWidth = 26

// ChatView shows the open conversation: the log, who is online and the
// composer.
type ChatView struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	roster   *tview.TextView
	composer *Composer
	body     *tview.Flex

	title   string
	private bool
}

// NewChatView creates the chat page.
func NewChatView(theme *ui.Theme) *ChatView {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitleColor(theme.TitleColor)

	roster := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	roster.SetBorder(true)
	roster.SetBorderColor(theme.BorderColor)
	roster.SetBackgroundColor(theme.BgColor)
	roster.SetTextColor(theme.FgColor)
	roster.SetTitle(" Online ")
	roster.SetTitleColor(theme.TitleColor)

	composer := NewComposer(theme)

	body := tview.NewFlex().
		AddItem(messages, 0, 1, false).
		AddItem(roster, rosterWidth, 0, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, false).
		AddItem(composer, 3, 0, true)

	cv := &ChatView{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		roster:   roster,
		composer: composer,
		body:     body,
	}
	cv.SetScope(domain.RoomName, false)
	return cv
}

// Name implements ui.Component.
func (cv *ChatView) Name() string {
	if cv.title != "" {
		return cv.title
	}
	return "Chat"
}

// Hints implements ui.Component.
func (cv *ChatView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Send"},
		{Key: "Esc", Description: "Leave input"},
		{Key: "i", Description: "Compose"},
	}
}

// FocusTarget implements ui.Component.
func (cv *ChatView) FocusTarget() tview.Primitive { return cv.composer }

// SetScope switches the page to a conversation. The roster column is only
// shown in the public room.
func (cv *ChatView) SetScope(title string, private bool) {
	cv.title = title
	cv.private = private
	cv.messages.Clear()
	cv.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(title)))
	if private {
		cv.body.ResizeItem(cv.roster, 0, 0)
	} else {
		cv.body.ResizeItem(cv.roster, rosterWidth, 0)
	}
}

// Update renders the log. meID marks the local user's messages.
func (cv *ChatView) Update(msgs []domain.Message, meID string, now time.Time) {
	cv.messages.Clear()
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(renderMessage(cv.theme, m, meID, now))
		b.WriteByte('\n')
	}
	if len(msgs) == 0 {
		fmt.Fprintf(&b, "[%s]No messages yet. Say hi.[-]", ui.ColorName(cv.theme.SystemColor))
	}
	_, _ = fmt.Fprint(cv.messages, b.String())
	cv.messages.ScrollToEnd()
}

// UpdatePresence renders the roster, or the peer's state in a private chat.
func (cv *ChatView) UpdatePresence(online []domain.PresenceEntry, peerOnline bool, status string) {
	title := cv.title
	if cv.private {
		dot, label := ui.ColorName(cv.theme.OfflineColor), "offline"
		if peerOnline {
			dot, label = ui.ColorName(cv.theme.OnlineColor), "online"
		}
		title = fmt.Sprintf("%s [%s]● %s[-]", tview.Escape(cv.title), dot, label)
	}
	if status != "" && status != "LIVE" {
		title = fmt.Sprintf("%s [::d](%s)[-:-:-]", title, strings.ToLower(status))
	}
	cv.messages.SetTitle(" " + title + " ")

	cv.roster.Clear()
	cv.roster.SetTitle(fmt.Sprintf(" Online (%d) ", len(online)))
	_, _ = fmt.Fprint(cv.roster, renderRoster(cv.theme, online))
}

// Composer returns the message input.
func (cv *ChatView) Composer() *Composer { return cv.composer }

// Messages returns the log view (for focus management).
func (cv *ChatView) Messages() *tview.TextView { return cv.messages }

func renderMessage(theme *ui.Theme, m domain.Message, meID string, now time.Time) string {
	ts := clock(m.CreatedAt, now)
	body := tview.Escape(sanitize(m.Body, true))

	switch m.Kind {
	case domain.KindSystem, domain.KindJoin:
		return fmt.Sprintf("[%s]%s  %s[-]", ui.ColorName(theme.SystemColor), ts, body)
	}

	sender := m.SenderName
	if sender == "" {
		sender = "Unknown Nyx"
	}
	color := ui.ColorName(theme.PeerColor)
	if m.SenderID == meID {
		sender = "You"
		color = ui.ColorName(theme.MineColor)
	}
	line := fmt.Sprintf("[::d]%s[-:-:-] [%s::b]%s[-:-:-] %s", ts, color, tview.Escape(sanitize(sender, false)), body)
	if m.Pending {
		line += fmt.Sprintf(" [%s]sending…[-]", ui.ColorName(theme.PendingColor))
	}
	return line
}

func renderRoster(theme *ui.Theme, online []domain.PresenceEntry) string {
	if len(online) == 0 {
		return fmt.Sprintf("[%s]nobody else here[-]", ui.ColorName(theme.SystemColor))
	}
	var b strings.Builder
	for _, e := range online {
		name := e.Name
		if name == "" {
			name = "Unknown Nyx"
		}
		fmt.Fprintf(&b, "[%s]●[-] %s\n", ui.ColorName(theme.OnlineColor), tview.Escape(sanitize(name, false)))
	}
	return b.String()
}
