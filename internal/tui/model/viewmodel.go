// Package model keeps the snapshot the TUI renders from. Apply folds bus
// events into it and reports which parts of the screen need a redraw.
package model

import (
	"sync"
	"time"

	"github.com/nyx-chat/nyx/internal/bus"
	"github.com/nyx-chat/nyx/internal/chat"
	"github.com/nyx-chat/nyx/internal/directory"
	"github.com/nyx-chat/nyx/internal/domain"
	"github.com/nyx-chat/nyx/internal/presence"
	"github.com/nyx-chat/nyx/internal/status"
)

// Change is a set of screen regions affected by an event.
type Change uint

const (
	ChangeMessages Change = 1 << iota
	ChangePresence
	ChangeStatus
	ChangeDirectory
	ChangeNotice
	ChangeIncoming
	ChangeSession

	ChangeNone Change = 0
	ChangeChat        = ChangeMessages | ChangePresence | ChangeStatus
)

// Has reports whether c includes every region of f.
func (c Change) Has(f Change) bool { return f != 0 && c&f == f }

// ViewModel caches what the chat and directory pages show. Presence is not
// cached: online flags go stale with the clock, so they are evaluated on
// every read.
type ViewModel struct {
	mu sync.RWMutex

	active func() *chat.State
	now    func() time.Time

	state     *chat.State
	scope     string
	title     string
	private   bool
	messages  []domain.Message
	status    status.State
	directory []directory.Entry
	notice    *chat.Notice
	incoming  *chat.Incoming
	received  int
}

// NewViewModel creates a view model reading the open conversation through
// active, which returns nil when no conversation is open.
func NewViewModel(active func() *chat.State, now func() time.Time) *ViewModel {
	if now == nil {
		now = time.Now
	}
	return &ViewModel{active: active, now: now}
}

// Apply folds evt into the snapshot. Events about a scope other than the
// open one are ignored.
func (vm *ViewModel) Apply(evt bus.Event) Change {
	switch evt.Kind {
	case bus.KindChatLog:
		if st := vm.current(evt.Payload); st != nil {
			vm.loadMessages(st)
			return ChangeMessages
		}
	case bus.KindPresenceChanged:
		if st := vm.current(evt.Payload); st != nil {
			return ChangePresence
		}
	case bus.KindChatStatus:
		sc, ok := evt.Payload.(status.StatusChange)
		if !ok {
			return ChangeNone
		}
		if st := vm.current(sc.Scope); st != nil {
			vm.mu.Lock()
			vm.status = sc.To
			vm.mu.Unlock()
			return ChangeStatus
		}
	case bus.KindChatNotice:
		n, ok := evt.Payload.(chat.Notice)
		if !ok || vm.current(n.Scope) == nil {
			return ChangeNone
		}
		vm.mu.Lock()
		vm.notice = &n
		vm.mu.Unlock()
		return ChangeNotice
	case bus.KindChatIncoming:
		in, ok := evt.Payload.(chat.Incoming)
		if !ok || vm.current(in.Scope) == nil {
			return ChangeNone
		}
		vm.mu.Lock()
		vm.incoming = &in
		vm.received++
		vm.mu.Unlock()
		return ChangeIncoming
	case bus.KindDirectoryChanged:
		entries, ok := evt.Payload.([]directory.Entry)
		if !ok {
			return ChangeNone
		}
		vm.mu.Lock()
		vm.directory = entries
		vm.mu.Unlock()
		return ChangeDirectory
	case bus.KindSessionEnded:
		vm.Reset()
		return ChangeSession
	}
	return ChangeNone
}

// Sync reloads everything from the open conversation, typically after a
// scope switch.
func (vm *ViewModel) Sync() Change {
	st := vm.active()
	vm.mu.Lock()
	vm.notice, vm.incoming, vm.received = nil, nil, 0
	vm.state = st
	if st == nil {
		vm.scope, vm.title, vm.private = "", "", false
		vm.messages, vm.status = nil, ""
		vm.mu.Unlock()
		return ChangeChat
	}
	sc := st.Scope()
	vm.scope, vm.title, vm.private = sc.String(), sc.Title(), sc.IsPrivate()
	vm.status = st.Status()
	vm.mu.Unlock()

	vm.loadMessages(st)
	return ChangeChat
}

// Reset forgets everything, as after logout.
func (vm *ViewModel) Reset() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.state = nil
	vm.scope, vm.title, vm.private = "", "", false
	vm.messages, vm.status = nil, ""
	vm.directory, vm.notice, vm.incoming, vm.received = nil, nil, nil, 0
}

// current returns the open state when payload names its scope.
func (vm *ViewModel) current(payload any) *chat.State {
	scope, ok := payload.(string)
	if !ok {
		return nil
	}
	st := vm.active()
	if st == nil || st.Scope().String() != scope {
		return nil
	}
	vm.mu.RLock()
	synced := vm.state == st
	vm.mu.RUnlock()
	if !synced {
		vm.Sync()
	}
	return st
}

func (vm *ViewModel) loadMessages(st *chat.State) {
	msgs := st.Messages()
	vm.mu.Lock()
	vm.messages = msgs
	vm.mu.Unlock()
}

func (vm *ViewModel) synced() *chat.State {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.state
}

// Scope returns the key of the open scope, or empty.
func (vm *ViewModel) Scope() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.scope
}

// Title returns the display name of the open scope.
func (vm *ViewModel) Title() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.title
}

// Private reports whether the open scope is a private chat.
func (vm *ViewModel) Private() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.private
}

// Messages returns the log of the open scope, oldest first.
func (vm *ViewModel) Messages() []domain.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages
}

// Online returns the users of the open scope who are online now.
func (vm *ViewModel) Online() []domain.PresenceEntry {
	if st := vm.synced(); st != nil {
		return st.Online(vm.now())
	}
	return nil
}

// PeerOnline reports whether the private-chat peer is online now.
func (vm *ViewModel) PeerOnline() bool {
	if st := vm.synced(); st != nil {
		return st.PeerOnline(vm.now())
	}
	return false
}

// Status returns the lifecycle state of the open scope.
func (vm *ViewModel) Status() status.State {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Directory returns the last published user list with online flags
// evaluated now.
func (vm *ViewModel) Directory() []directory.Entry {
	vm.mu.RLock()
	entries := vm.directory
	vm.mu.RUnlock()
	if entries == nil {
		return nil
	}
	now := vm.now()
	out := make([]directory.Entry, len(entries))
	for i, e := range entries {
		e.IsOnline = presence.IsOnline(e.PresenceEntry, now)
		out[i] = e
	}
	return out
}

// Notice returns the last notice of the open scope.
func (vm *ViewModel) Notice() *chat.Notice {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.notice
}

// Incoming returns the last message pushed by someone else and how many
// arrived since the scope opened.
func (vm *ViewModel) Incoming() (*chat.Incoming, int) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.incoming, vm.received
}
