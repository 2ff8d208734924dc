package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/domain"
	"go.uber.org/zap"
)

const (
	realtimeHeartbeat   = 25 * time.Second
	realtimeJoinTimeout = 10 * time.Second
	realtimeWriteWait   = 10 * time.Second
	realtimeRetryMin    = time.Second
	realtimeRetryMax    = 30 * time.Second
)

// envelope is one Phoenix channel frame.
type envelope struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
	JoinRef *string         `json:"join_ref,omitempty"`
}

type pgChange struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type joinPayload struct {
	Config struct {
		Broadcast       map[string]bool   `json:"broadcast"`
		Presence        map[string]string `json:"presence"`
		PostgresChanges []pgChange        `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type changePayload struct {
	Data struct {
		Table     string          `json:"table"`
		Type      string          `json:"type"`
		Record    json.RawMessage `json:"record"`
		OldRecord json.RawMessage `json:"old_record"`
	} `json:"data"`
}

// channel is one joined topic.
type channel struct {
	rt       *realtime
	topic    string
	changes  []pgChange
	onChange func(changePayload)
	onStatus func(backend.SubscriptionStatus)

	mu      sync.Mutex
	joinRef string
	timer   *time.Timer
	closed  bool
	once    sync.Once
}

func (ch *channel) status(st backend.SubscriptionStatus) {
	ch.mu.Lock()
	closed := ch.closed
	ch.mu.Unlock()
	if closed || ch.onStatus == nil {
		return
	}
	ch.onStatus(st)
}

func (ch *channel) Unsubscribe() error {
	var err error
	ch.once.Do(func() {
		ch.mu.Lock()
		ch.closed = true
		if ch.timer != nil {
			ch.timer.Stop()
		}
		ch.mu.Unlock()
		err = ch.rt.leave(ch)
	})
	return err
}

// realtime multiplexes channels over one websocket and reconnects with
// backoff while at least one channel is subscribed.
type realtime struct {
	client *Client
	dialer *websocket.Dialer
	logger *zap.Logger

	heartbeat   time.Duration
	joinTimeout time.Duration

	mu       sync.Mutex
	channels map[string]*channel
	conn     *websocket.Conn
	stop     chan struct{}
	done     chan struct{}
	ref      uint64

	writeMu sync.Mutex
}

func newRealtime(c *Client, dialer *websocket.Dialer, logger *zap.Logger) *realtime {
	return &realtime{
		client:      c,
		dialer:      dialer,
		logger:      logger,
		heartbeat:   realtimeHeartbeat,
		joinTimeout: realtimeJoinTimeout,
		channels:    make(map[string]*channel),
	}
}

func (r *realtime) url() string {
	u := *r.client.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	u.RawQuery = url.Values{"apikey": {r.client.anonKey}, "vsn": {"1.0.0"}}.Encode()
	return u.String()
}

func (r *realtime) nextRef() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ref++
	return strconv.FormatUint(r.ref, 10)
}

// subscribe registers a channel and joins it once the socket is up.
func (r *realtime) subscribe(name string, changes []pgChange, onChange func(changePayload), onStatus func(backend.SubscriptionStatus)) *channel {
	ch := &channel{
		rt:       r,
		topic:    "realtime:" + name + "-" + uuid.NewString()[:8],
		changes:  changes,
		onChange: onChange,
		onStatus: onStatus,
	}

	r.mu.Lock()
	r.channels[ch.topic] = ch
	conn := r.conn
	if r.stop == nil {
		r.stop = make(chan struct{})
		r.done = make(chan struct{})
		go r.run(r.stop, r.done)
	}
	r.mu.Unlock()

	if conn != nil {
		r.join(conn, ch)
	}
	return ch
}

func (r *realtime) leave(ch *channel) error {
	r.mu.Lock()
	if r.channels[ch.topic] != ch {
		r.mu.Unlock()
		return nil
	}
	delete(r.channels, ch.topic)
	conn := r.conn
	var stop, done chan struct{}
	if len(r.channels) == 0 && r.stop != nil {
		stop, done = r.stop, r.done
		r.stop, r.done = nil, nil
	}
	r.mu.Unlock()

	var err error
	if conn != nil {
		err = r.send(conn, envelope{Topic: ch.topic, Event: "phx_leave", Payload: json.RawMessage(`{}`)})
	}
	if stop != nil {
		close(stop)
		if conn != nil {
			_ = conn.Close()
		}
		<-done
	}
	if err != nil {
		// The socket is gone; the server drops the topic with it.
		r.logger.Debug("leave not sent", zap.String("topic", ch.topic), zap.Error(err))
	}
	return nil
}

func (r *realtime) close() error {
	r.mu.Lock()
	chans := make([]*channel, 0, len(r.channels))
	for _, ch := range r.channels {
		chans = append(chans, ch)
	}
	r.mu.Unlock()

	var errs []error
	for _, ch := range chans {
		if err := ch.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *realtime) run(stop, done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	retry := realtimeRetryMin
	for {
		conn, _, err := r.dialer.DialContext(ctx, r.url(), nil)
		if err != nil {
			r.logger.Warn("realtime connect failed", zap.Error(err), zap.Duration("retry_in", retry))
			r.broadcast(backend.StatusChannelError)
		} else {
			retry = realtimeRetryMin
			if !r.attach(conn, stop) {
				_ = conn.Close()
				return
			}
			r.logger.Info("realtime connected")
			err = r.serve(conn, stop)
			r.detach(conn)
			select {
			case <-stop:
				return
			default:
			}
			r.logger.Warn("realtime connection lost", zap.Error(err))
			r.broadcast(backend.StatusChannelError)
		}

		select {
		case <-stop:
			return
		case <-time.After(retry):
		}
		retry = min(retry*2, realtimeRetryMax)
	}
}

// attach publishes conn and joins every registered channel. It reports
// false when the loop was stopped during the dial.
func (r *realtime) attach(conn *websocket.Conn, stop chan struct{}) bool {
	r.mu.Lock()
	select {
	case <-stop:
		r.mu.Unlock()
		return false
	default:
	}
	r.conn = conn
	chans := make([]*channel, 0, len(r.channels))
	for _, ch := range r.channels {
		chans = append(chans, ch)
	}
	r.mu.Unlock()

	for _, ch := range chans {
		r.join(conn, ch)
	}
	return true
}

func (r *realtime) detach(conn *websocket.Conn) {
	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
	}
	r.mu.Unlock()
	_ = conn.Close()
}

func (r *realtime) join(conn *websocket.Conn, ch *channel) {
	ref := r.nextRef()

	var p joinPayload
	p.Config.Broadcast = map[string]bool{"self": false}
	p.Config.Presence = map[string]string{"key": ""}
	p.Config.PostgresChanges = ch.changes
	if token, err := r.client.accessToken(context.Background()); err == nil {
		p.AccessToken = token
	}
	payload, err := json.Marshal(p)
	if err != nil {
		r.logger.Error("encode join", zap.Error(err))
		return
	}

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.joinRef = ref
	if ch.timer != nil {
		ch.timer.Stop()
	}
	ch.timer = time.AfterFunc(r.joinTimeout, func() {
		ch.mu.Lock()
		pending := ch.joinRef == ref
		ch.mu.Unlock()
		if pending {
			ch.status(backend.StatusTimedOut)
		}
	})
	ch.mu.Unlock()

	if err := r.send(conn, envelope{Topic: ch.topic, Event: "phx_join", Payload: payload, Ref: &ref, JoinRef: &ref}); err != nil {
		r.logger.Warn("join failed", zap.String("topic", ch.topic), zap.Error(err))
	}
}

func (r *realtime) send(conn *websocket.Conn, msg envelope) error {
	if msg.Ref == nil {
		ref := r.nextRef()
		msg.Ref = &ref
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
	return conn.WriteJSON(msg)
}

func (r *realtime) serve(conn *websocket.Conn, stop chan struct{}) error {
	hbDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.send(conn, envelope{Topic: "phoenix", Event: "heartbeat", Payload: json.RawMessage(`{}`)}); err != nil {
					r.logger.Debug("heartbeat failed", zap.Error(err))
					_ = conn.Close()
					return
				}
			case <-hbDone:
				return
			case <-stop:
				_ = conn.Close()
				return
			}
		}
	}()
	defer func() {
		close(hbDone)
		wg.Wait()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		r.dispatch(data)
	}
}

func (r *realtime) dispatch(data []byte) {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.Warn("undecodable realtime frame", zap.Error(err))
		return
	}

	r.mu.Lock()
	ch := r.channels[msg.Topic]
	r.mu.Unlock()
	if ch == nil {
		return
	}

	switch msg.Event {
	case "phx_reply":
		var reply replyPayload
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return
		}
		ch.mu.Lock()
		isJoin := msg.Ref != nil && *msg.Ref == ch.joinRef
		if isJoin {
			ch.joinRef = ""
			if ch.timer != nil {
				ch.timer.Stop()
			}
		}
		ch.mu.Unlock()
		if !isJoin {
			return
		}
		if reply.Status == "ok" {
			ch.status(backend.StatusSubscribed)
		} else {
			r.logger.Warn("join rejected", zap.String("topic", msg.Topic), zap.ByteString("response", reply.Response))
			ch.status(backend.StatusChannelError)
		}
	case "postgres_changes":
		var change changePayload
		if err := json.Unmarshal(msg.Payload, &change); err != nil {
			r.logger.Warn("undecodable change", zap.Error(err))
			return
		}
		ch.mu.Lock()
		closed := ch.closed
		ch.mu.Unlock()
		if !closed {
			ch.onChange(change)
		}
	case "phx_error":
		ch.status(backend.StatusChannelError)
	case "phx_close":
		ch.status(backend.StatusClosed)
	}
}

func (r *realtime) broadcast(st backend.SubscriptionStatus) {
	r.mu.Lock()
	chans := make([]*channel, 0, len(r.channels))
	for _, ch := range r.channels {
		chans = append(chans, ch)
	}
	r.mu.Unlock()
	for _, ch := range chans {
		ch.status(st)
	}
}

// SubscribeMessages delivers messages inserted into the scope. Private
// scopes receive only rows addressed to me.
func (c *Client) SubscribeMessages(_ context.Context, scope domain.Scope, me string, h backend.MessageHandler) (backend.Subscription, error) {
	name, change := "the-cosmic-river", pgChange{Event: "INSERT", Schema: "public", Table: "messages"}
	if scope.IsPrivate() {
		name = "private-messages"
		change = pgChange{Event: "INSERT", Schema: "public", Table: "private_messages", Filter: "receiver_id=eq." + me}
	}

	onChange := func(p changePayload) {
		if p.Data.Type != "INSERT" || h.OnMessage == nil {
			return
		}
		var row messageRow
		if err := json.Unmarshal(p.Data.Record, &row); err != nil {
			c.logger.Warn("undecodable message record", zap.Error(err))
			return
		}
		h.OnMessage(row.toDomain())
	}
	return c.rt.subscribe(name, []pgChange{change}, onChange, h.OnStatus), nil
}

// SubscribePresence delivers online-flag changes from profile updates.
func (c *Client) SubscribePresence(_ context.Context, h backend.PresenceHandler) (backend.Subscription, error) {
	onChange := func(p changePayload) {
		if p.Data.Type != "UPDATE" || h.OnTransition == nil {
			return
		}
		var record, old profileRow
		if err := json.Unmarshal(p.Data.Record, &record); err != nil {
			c.logger.Warn("undecodable profile record", zap.Error(err))
			return
		}
		if len(p.Data.OldRecord) > 0 {
			_ = json.Unmarshal(p.Data.OldRecord, &old)
		}
		h.OnTransition(transitionFromChange(record, old))
	}
	change := pgChange{Event: "UPDATE", Schema: "public", Table: "profiles"}
	return c.rt.subscribe("online-users", []pgChange{change}, onChange, h.OnStatus), nil
}
