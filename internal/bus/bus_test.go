package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	b.Emit(KindChatLog, "room")

	select {
	case evt := <-ch:
		if evt.Kind != KindChatLog {
			t.Errorf("got kind %q, want %s", evt.Kind, KindChatLog)
		}
		if evt.Timestamp.IsZero() {
			t.Error("Emit did not stamp the event")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("presence.", 10)
	defer unsub()

	b.Emit(KindChatIncoming, nil)
	b.Emit(KindPresenceChanged, nil)

	select {
	case evt := <-ch:
		if evt.Kind != KindPresenceChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindPresenceChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeTwice(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	unsub()
	unsub()

	b.Emit(KindChatNotice, "x")

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 1)
	defer unsub()

	b.Publish(Event{Kind: "chat.one"})
	b.Publish(Event{Kind: "chat.two"})

	evt := <-ch
	if evt.Kind != "chat.one" {
		t.Errorf("got %q, want chat.one", evt.Kind)
	}
}

func TestNilBusPublish(t *testing.T) {
	var b *Bus
	b.Emit(KindChatLog, nil)
}
