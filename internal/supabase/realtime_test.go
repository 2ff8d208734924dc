package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/domain"
)

// realtimeServer answers joins and then pushes the given change payload.
func realtimeServer(t *testing.T, change string, joins chan<- joinPayload, leaves chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime/v1/websocket" || r.URL.Query().Get("apikey") != "anon" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var msg envelope
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Event {
			case "phx_join":
				var p joinPayload
				_ = json.Unmarshal(msg.Payload, &p)
				joins <- p
				_ = conn.WriteJSON(envelope{
					Topic:   msg.Topic,
					Event:   "phx_reply",
					Payload: json.RawMessage(`{"status":"ok","response":{"postgres_changes":[]}}`),
					Ref:     msg.Ref,
				})
				_ = conn.WriteJSON(envelope{Topic: msg.Topic, Event: "postgres_changes", Payload: json.RawMessage(change)})
			case "phx_leave":
				leaves <- msg.Topic
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSubscribeMessagesDeliversInserts(t *testing.T) {
	joins := make(chan joinPayload, 4)
	leaves := make(chan string, 4)
	srv := realtimeServer(t, `{"data":{"type":"INSERT","table":"messages","record":{
		"id": 5, "sender_id": "u9", "sender_nyx_name": "Nyx 9", "sender_nyx_number": 9,
		"message": "hi", "message_type": "text", "created_at": "2026-01-01T10:00:00.123456+00:00"}}}`, joins, leaves)

	c := newTestClient(t, srv.URL, signedInTokens(t))
	msgs := make(chan domain.Message, 4)
	statuses := make(chan backend.SubscriptionStatus, 4)

	sub, err := c.SubscribeMessages(context.Background(), domain.PublicScope(), "me", backend.MessageHandler{
		OnMessage: func(m domain.Message) { msgs <- m },
		OnStatus:  func(s backend.SubscriptionStatus) { statuses <- s },
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-joins:
		if len(p.Config.PostgresChanges) != 1 || p.Config.PostgresChanges[0].Table != "messages" {
			t.Errorf("join config = %+v", p.Config)
		}
		if p.AccessToken != "access-1" {
			t.Errorf("join access token = %q", p.AccessToken)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no join received")
	}

	select {
	case st := <-statuses:
		if st != backend.StatusSubscribed {
			t.Errorf("status = %s, want SUBSCRIBED", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription status")
	}

	select {
	case m := <-msgs:
		if m.ID != "5" || m.SenderName != "Nyx 9" || m.Body != "hi" || m.CreatedAt.IsZero() {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatal(err)
	}
	select {
	case topic := <-leaves:
		if !strings.HasPrefix(topic, "realtime:the-cosmic-river-") {
			t.Errorf("leave topic = %q", topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no leave received")
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Errorf("second unsubscribe = %v", err)
	}
}

func TestSubscribePrivateUsesReceiverFilter(t *testing.T) {
	joins := make(chan joinPayload, 4)
	leaves := make(chan string, 4)
	srv := realtimeServer(t, `{"data":{"type":"INSERT","table":"private_messages","record":{"id":"p1","sender_id":"peer","receiver_id":"me","message":"yo"}}}`, joins, leaves)

	c := newTestClient(t, srv.URL, signedInTokens(t))
	msgs := make(chan domain.Message, 1)
	sub, err := c.SubscribeMessages(context.Background(), domain.PrivateScope(domain.Profile{ID: "peer"}), "me", backend.MessageHandler{
		OnMessage: func(m domain.Message) { msgs <- m },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	p := <-joins
	if got := p.Config.PostgresChanges[0]; got.Table != "private_messages" || got.Filter != "receiver_id=eq.me" {
		t.Errorf("change = %+v", got)
	}
	select {
	case m := <-msgs:
		if !m.IsPrivate() || m.ReceiverID != "me" {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
}

func TestSubscribePresenceDecodesTransition(t *testing.T) {
	joins := make(chan joinPayload, 4)
	leaves := make(chan string, 4)
	srv := realtimeServer(t, `{"data":{"type":"UPDATE","table":"profiles",
		"record":{"id":"u2","nyx_name":"Nyx 2","nyx_number":2,"is_online":true,"last_seen":"2026-01-01T10:00:00Z"},
		"old_record":{"id":"u2","is_online":false}}}`, joins, leaves)

	c := newTestClient(t, srv.URL, signedInTokens(t))
	got := make(chan domain.PresenceTransition, 1)
	sub, err := c.SubscribePresence(context.Background(), backend.PresenceHandler{
		OnTransition: func(tr domain.PresenceTransition) { got <- tr },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	select {
	case tr := <-got:
		if tr.Entry.UserID != "u2" || !tr.Entry.Online || tr.WasOnline || tr.Entry.Name != "Nyx 2" {
			t.Errorf("transition = %+v", tr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no transition delivered")
	}
}

func TestTransitionWithoutOldRecord(t *testing.T) {
	online := true
	tr := transitionFromChange(profileRow{ID: "u", IsOnline: &online}, profileRow{ID: "u"})
	if !tr.WasOnline {
		t.Error("missing old flag should be treated as unchanged")
	}
}

func TestRealtimeURL(t *testing.T) {
	c := newTestClient(t, "https://abc.supabase.co/", nil)
	if got := c.rt.url(); got != "wss://abc.supabase.co/realtime/v1/websocket?apikey=anon&vsn=1.0.0" {
		t.Errorf("url = %q", got)
	}
}
