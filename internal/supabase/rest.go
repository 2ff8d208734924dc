package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nyx-chat/nyx/internal/backend"
	"github.com/nyx-chat/nyx/internal/domain"
)

const (
	profileColumns = "id,nyx_name,nyx_number,status_message,last_seen,is_online"
	singleObject   = "application/vnd.pgrst.object+json"
)

func rpc(name string) string { return "/rest/v1/rpc/" + name }

func table(name string) string { return "/rest/v1/" + name }

// Profile returns the profile of userID.
func (c *Client) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	return c.singleProfile(ctx, "load profile", url.Values{"id": {"eq." + userID}})
}

// ProfileByNumber returns the profile whose Nyx number is n.
func (c *Client) ProfileByNumber(ctx context.Context, n int) (domain.Profile, error) {
	return c.singleProfile(ctx, "load profile by number", url.Values{"nyx_number": {"eq." + strconv.Itoa(n)}})
}

func (c *Client) singleProfile(ctx context.Context, op string, filter url.Values) (domain.Profile, error) {
	q := url.Values{"select": {profileColumns}}
	for k, v := range filter {
		q[k] = v
	}
	var row profileRow
	err := c.do(ctx, op, request{
		method:  http.MethodGet,
		path:    table("profiles"),
		query:   q,
		headers: map[string]string{"Accept": singleObject},
	}, &row)
	if IsStatus(err, http.StatusNotAcceptable) {
		return domain.Profile{}, fmt.Errorf("%s: %w", op, backend.ErrProfileMissing)
	}
	if err != nil {
		return domain.Profile{}, err
	}
	if row.ID == "" {
		return domain.Profile{}, fmt.Errorf("%s: %w", op, backend.ErrProfileMissing)
	}
	return row.toProfile(), nil
}

// ListUsers returns every profile, online first, then by last activity.
func (c *Client) ListUsers(ctx context.Context) ([]domain.PresenceEntry, error) {
	var rows []profileRow
	err := c.do(ctx, "list users", request{
		method: http.MethodGet,
		path:   table("profiles"),
		query: url.Values{
			"select": {profileColumns},
			"order":  {"is_online.desc,last_seen.desc.nullslast"},
		},
	}, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PresenceEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntry())
	}
	return out, nil
}

// CreateNyxProfile asks the backend to create the profile with the next Nyx name.
func (c *Client) CreateNyxProfile(ctx context.Context, userID, fullName, email string) (string, error) {
	var name string
	err := c.do(ctx, "create nyx profile", request{
		method: http.MethodPost,
		path:   rpc("create_nyx_profile"),
		body: map[string]string{
			"user_id":        userID,
			"user_full_name": fullName,
			"user_email":     email,
		},
	}, &name)
	if err != nil {
		return "", err
	}
	return name, nil
}

// LastNyxNumber returns the highest assigned Nyx number, or 0.
func (c *Client) LastNyxNumber(ctx context.Context) (int, error) {
	var rows []profileRow
	err := c.do(ctx, "last nyx number", request{
		method: http.MethodGet,
		path:   table("profiles"),
		query: url.Values{
			"select": {"nyx_number"},
			"order":  {"nyx_number.desc"},
			"limit":  {"1"},
		},
	}, &rows)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(rows[0].Number), nil
}

// InsertProfile creates a profile row directly.
func (c *Client) InsertProfile(ctx context.Context, p backend.NewProfile) (domain.Profile, error) {
	var rows []profileRow
	err := c.do(ctx, "insert profile", request{
		method: http.MethodPost,
		path:   table("profiles"),
		body: map[string]any{
			"id":         p.UserID,
			"full_name":  p.FullName,
			"email":      p.Email,
			"nyx_name":   p.Name,
			"nyx_number": p.Number,
		},
		headers: map[string]string{"Prefer": "return=representation"},
	}, &rows)
	if err != nil {
		return domain.Profile{}, err
	}
	if len(rows) == 0 {
		return domain.Profile{ID: p.UserID, Name: p.Name, Number: p.Number}, nil
	}
	return rows[0].toProfile(), nil
}

// RecentMessages returns up to limit messages of scope, newest first.
func (c *Client) RecentMessages(ctx context.Context, scope domain.Scope, me string, limit int) ([]domain.Message, error) {
	var rows []messageRow
	var err error
	if scope.IsPrivate() {
		err = c.do(ctx, "load private messages", request{
			method: http.MethodPost,
			path:   rpc("get_private_messages"),
			body: map[string]any{
				"p_user_id":       me,
				"p_other_user_id": scope.PeerID,
				"p_limit_count":   limit,
			},
		}, &rows)
	} else {
		err = c.do(ctx, "load messages", request{
			method: http.MethodGet,
			path:   table("messages"),
			query: url.Values{
				"select": {"*"},
				"order":  {"created_at.desc"},
				"limit":  {strconv.Itoa(limit)},
			},
		}, &rows)
	}
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// InsertMessage persists m in the room or, when it has a receiver, as a
// private message.
func (c *Client) InsertMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	if m.IsPrivate() {
		return c.sendPrivate(ctx, m)
	}

	kind := m.Kind
	if kind == "" {
		kind = domain.KindText
	}
	var rows []messageRow
	err := c.do(ctx, "insert message", request{
		method: http.MethodPost,
		path:   table("messages"),
		body: map[string]any{
			"sender_id":         m.SenderID,
			"sender_nyx_name":   m.SenderName,
			"sender_nyx_number": m.SenderNumber,
			"message":           m.Body,
			"message_type":      string(kind),
		},
		headers: map[string]string{"Prefer": "return=representation"},
	}, &rows)
	if err != nil {
		return domain.Message{}, err
	}
	if len(rows) == 0 {
		return m, nil
	}
	return rows[0].toDomain(), nil
}

func (c *Client) sendPrivate(ctx context.Context, m domain.Message) (domain.Message, error) {
	var raw json.RawMessage
	err := c.do(ctx, "send private message", request{
		method: http.MethodPost,
		path:   rpc("send_private_message"),
		body: map[string]any{
			"p_sender_id":           m.SenderID,
			"p_receiver_id":         m.ReceiverID,
			"p_sender_nyx_name":     m.SenderName,
			"p_receiver_nyx_name":   m.ReceiverName,
			"p_sender_nyx_number":   m.SenderNumber,
			"p_receiver_nyx_number": m.ReceiverNumber,
			"p_message":             m.Body,
		},
	}, &raw)
	if err != nil {
		return domain.Message{}, err
	}
	// The function returns the new id on current projects and nothing on older ones.
	stored := m
	var id flexID
	if json.Unmarshal(raw, &id) == nil && id != "" {
		stored.ID = string(id)
	}
	return stored, nil
}

// MarkRead marks every message from peer to me as read.
func (c *Client) MarkRead(ctx context.Context, me, peer string) error {
	return c.do(ctx, "mark messages read", request{
		method: http.MethodPost,
		path:   rpc("mark_messages_read"),
		body:   map[string]string{"p_user_id": me, "p_other_user_id": peer},
	}, nil)
}

// SetOnline flips the online flag of userID.
func (c *Client) SetOnline(ctx context.Context, userID string, online bool) error {
	return c.do(ctx, "update online status", request{
		method: http.MethodPost,
		path:   rpc("update_online_status"),
		body:   map[string]any{"user_id": userID, "online_status": online},
	}, nil)
}

// Touch refreshes last activity of userID and keeps it flagged online.
func (c *Client) Touch(ctx context.Context, userID string) error {
	return c.do(ctx, "heartbeat", request{
		method: http.MethodPatch,
		path:   table("profiles"),
		query:  url.Values{"id": {"eq." + userID}},
		body: map[string]any{
			"last_seen": timestamp(time.Now()),
			"is_online": true,
		},
	}, nil)
}

// CleanupOffline asks the backend to clear stale online flags.
func (c *Client) CleanupOffline(ctx context.Context) error {
	err := c.do(ctx, "cleanup offline users", request{
		method: http.MethodPost,
		path:   rpc("cleanup_offline_users"),
		body:   map[string]any{},
	}, nil)
	if IsStatus(err, http.StatusNotFound) {
		// Older projects lack the function.
		return nil
	}
	return err
}

// OnlineSnapshot returns users flagged online with activity after since.
func (c *Client) OnlineSnapshot(ctx context.Context, since time.Time) ([]domain.PresenceEntry, error) {
	var rows []profileRow
	err := c.do(ctx, "load online users", request{
		method: http.MethodGet,
		path:   table("profiles"),
		query: url.Values{
			"select":    {profileColumns},
			"is_online": {"eq.true"},
			"last_seen": {"gt." + timestamp(since)},
			"order":     {"last_seen.desc"},
		},
	}, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PresenceEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntry())
	}
	return out, nil
}
