package model

import (
	"testing"
	"time"

	"github.com/nyx-chat/nyx/internal/bus"
	"github.com/nyx-chat/nyx/internal/chat"
	"github.com/nyx-chat/nyx/internal/directory"
	"github.com/nyx-chat/nyx/internal/domain"
	"github.com/nyx-chat/nyx/internal/status"
	"go.uber.org/zap/zaptest"
)

var (
	me   = domain.Profile{ID: "me", Name: "Nyx 1", Number: 1}
	peer = domain.Profile{ID: "peer", Name: "Nyx 2", Number: 2}
	now  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

// newState builds a state that never touches the network: only local
// appends and pushes are applied in these tests.
func newState(t *testing.T, scope domain.Scope) *chat.State {
	t.Helper()
	return chat.NewState(scope, me, nil, bus.New(), zaptest.NewLogger(t), chat.Options{Now: func() time.Time { return now }})
}

func newVM(st **chat.State) *ViewModel {
	return NewViewModel(func() *chat.State { return *st }, func() time.Time { return now })
}

func TestApplyChatLog(t *testing.T) {
	st := newState(t, domain.PublicScope())
	vm := newVM(&st)

	st.AppendSystem("Nyx 2 has entered The Cosmic River 🌊")
	if c := vm.Apply(bus.Event{Kind: bus.KindChatLog, Payload: "room"}); !c.Has(ChangeMessages) {
		t.Fatalf("change = %b", c)
	}
	if got := vm.Messages(); len(got) != 1 || got[0].Kind != domain.KindSystem {
		t.Errorf("messages = %+v", got)
	}
	if vm.Title() != domain.RoomName || vm.Private() {
		t.Errorf("title = %q private = %v", vm.Title(), vm.Private())
	}
}

func TestApplyIgnoresOtherScopes(t *testing.T) {
	st := newState(t, domain.PublicScope())
	vm := newVM(&st)

	for _, evt := range []bus.Event{
		{Kind: bus.KindChatLog, Payload: "dm:peer"},
		{Kind: bus.KindPresenceChanged, Payload: "dm:peer"},
		{Kind: bus.KindChatNotice, Payload: chat.Notice{Scope: "dm:peer", Text: "Failed to send message"}},
		{Kind: bus.KindChatStatus, Payload: status.StatusChange{Scope: "dm:peer", To: status.Live}},
		{Kind: bus.KindChatLog, Payload: 42},
	} {
		if c := vm.Apply(evt); c != ChangeNone {
			t.Errorf("%s %v: change = %b", evt.Kind, evt.Payload, c)
		}
	}

	var none *chat.State
	empty := newVM(&none)
	if c := empty.Apply(bus.Event{Kind: bus.KindChatLog, Payload: "room"}); c != ChangeNone {
		t.Errorf("no open scope: change = %b", c)
	}
}

func TestApplyPresenceAndIncoming(t *testing.T) {
	st := newState(t, domain.PrivateScope(peer))
	vm := newVM(&st)

	st.ApplyPresence(domain.PresenceTransition{Entry: domain.PresenceEntry{UserID: "peer", Name: "Nyx 2", Online: true, LastSeen: now}})
	if c := vm.Apply(bus.Event{Kind: bus.KindPresenceChanged, Payload: "dm:peer"}); !c.Has(ChangePresence) {
		t.Fatalf("change = %b", c)
	}
	if !vm.PeerOnline() || len(vm.Online()) != 1 {
		t.Errorf("peer online = %v, online = %+v", vm.PeerOnline(), vm.Online())
	}

	in := chat.Incoming{Scope: "dm:peer", Message: domain.Message{ID: "9", SenderID: "peer", Body: "hi"}}
	if c := vm.Apply(bus.Event{Kind: bus.KindChatIncoming, Payload: in}); !c.Has(ChangeIncoming) {
		t.Fatalf("change = %b", c)
	}
	got, n := vm.Incoming()
	if got == nil || got.Message.Body != "hi" || n != 1 {
		t.Errorf("incoming = %+v, %d", got, n)
	}
}

func TestPresenceExpiresWithoutEvents(t *testing.T) {
	st := newState(t, domain.PrivateScope(peer))
	clock := now
	vm := NewViewModel(func() *chat.State { return st }, func() time.Time { return clock })

	st.ApplyPresence(domain.PresenceTransition{Entry: domain.PresenceEntry{UserID: "peer", Name: "Nyx 2", Online: true, LastSeen: now}})
	vm.Apply(bus.Event{Kind: bus.KindPresenceChanged, Payload: "dm:peer"})
	vm.Apply(bus.Event{Kind: bus.KindDirectoryChanged, Payload: []directory.Entry{
		{PresenceEntry: domain.PresenceEntry{UserID: "peer", Number: 2, Online: true, LastSeen: now}, IsOnline: true},
	}})
	if !vm.PeerOnline() || len(vm.Online()) != 1 || !vm.Directory()[0].IsOnline {
		t.Fatal("peer should start online")
	}

	// The push channel is silent while the clock moves past the window.
	clock = now.Add(6 * time.Minute)
	if vm.PeerOnline() {
		t.Error("peer still online after the freshness window")
	}
	if got := vm.Online(); len(got) != 0 {
		t.Errorf("online = %+v", got)
	}
	if vm.Directory()[0].IsOnline {
		t.Error("directory entry still online after the freshness window")
	}
}

func TestApplyStatusAndNotice(t *testing.T) {
	st := newState(t, domain.PublicScope())
	vm := newVM(&st)
	vm.Sync()
	if vm.Status() != status.Uninitialized {
		t.Errorf("status = %s", vm.Status())
	}

	c := vm.Apply(bus.Event{Kind: bus.KindChatStatus, Payload: status.StatusChange{Scope: "room", From: status.Loading, To: status.Live}})
	if !c.Has(ChangeStatus) || vm.Status() != status.Live {
		t.Errorf("change = %b status = %s", c, vm.Status())
	}

	c = vm.Apply(bus.Event{Kind: bus.KindChatNotice, Payload: chat.Notice{Scope: "room", Text: "Failed to load messages"}})
	if !c.Has(ChangeNotice) || vm.Notice() == nil || vm.Notice().Text != "Failed to load messages" {
		t.Errorf("change = %b notice = %+v", c, vm.Notice())
	}
}

func TestDirectoryAndSessionEnd(t *testing.T) {
	st := newState(t, domain.PublicScope())
	vm := newVM(&st)
	vm.Sync()

	entries := []directory.Entry{{PresenceEntry: domain.PresenceEntry{UserID: "peer", Number: 2}, IsOnline: true}}
	if c := vm.Apply(bus.Event{Kind: bus.KindDirectoryChanged, Payload: entries}); !c.Has(ChangeDirectory) {
		t.Fatalf("change = %b", c)
	}
	if len(vm.Directory()) != 1 {
		t.Errorf("directory = %+v", vm.Directory())
	}

	if c := vm.Apply(bus.Event{Kind: bus.KindSessionEnded, Payload: "logout"}); !c.Has(ChangeSession) {
		t.Fatalf("change = %b", c)
	}
	if vm.Scope() != "" || vm.Directory() != nil || vm.Messages() != nil {
		t.Error("snapshot survived logout")
	}
}

func TestChangeHas(t *testing.T) {
	if !ChangeChat.Has(ChangeMessages) || ChangeMessages.Has(ChangeChat) {
		t.Error("ChangeChat membership")
	}
	if ChangeChat.Has(ChangeNone) {
		t.Error("Has(ChangeNone) should be false")
	}
}
