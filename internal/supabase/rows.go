package supabase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nyx-chat/nyx/internal/domain"
)

// flexID decodes identifiers that are numbers in one table and uuids in another.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// flexTime accepts the timestamp layouts PostgREST and Realtime emit.
type flexTime struct{ time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		f.Time = time.Time{}
		return nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return err
	}
	f.Time = t
	return nil
}

// flexInt accepts numbers that some RPCs return as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("decode number: %w", err)
	}
	*f = flexInt(n)
	return nil
}

type messageRow struct {
	ID           flexID   `json:"id"`
	SenderID     string   `json:"sender_id"`
	SenderName   string   `json:"sender_nyx_name"`
	SenderNumber flexInt  `json:"sender_nyx_number"`
	Message      string   `json:"message"`
	MessageType  string   `json:"message_type"`
	CreatedAt    flexTime `json:"created_at"`

	ReceiverID     string  `json:"receiver_id"`
	ReceiverName   string  `json:"receiver_nyx_name"`
	ReceiverNumber flexInt `json:"receiver_nyx_number"`
	IsRead         bool    `json:"is_read"`
}

func (r messageRow) toDomain() domain.Message {
	kind := domain.Kind(r.MessageType)
	if kind == "" {
		kind = domain.KindText
	}
	return domain.Message{
		ID:             string(r.ID),
		SenderID:       r.SenderID,
		SenderName:     r.SenderName,
		SenderNumber:   int(r.SenderNumber),
		Body:           r.Message,
		Kind:           kind,
		CreatedAt:      r.CreatedAt.Time,
		ReceiverID:     r.ReceiverID,
		ReceiverName:   r.ReceiverName,
		ReceiverNumber: int(r.ReceiverNumber),
		Read:           r.IsRead,
	}
}

type profileRow struct {
	ID            string   `json:"id"`
	Name          string   `json:"nyx_name"`
	Number        flexInt  `json:"nyx_number"`
	StatusMessage string   `json:"status_message"`
	LastSeen      flexTime `json:"last_seen"`
	IsOnline      *bool    `json:"is_online"`
}

func (r profileRow) toProfile() domain.Profile {
	return domain.Profile{
		ID:            r.ID,
		Name:          r.Name,
		Number:        int(r.Number),
		StatusMessage: r.StatusMessage,
	}
}

func (r profileRow) toEntry() domain.PresenceEntry {
	return domain.PresenceEntry{
		UserID:   r.ID,
		Name:     r.Name,
		Number:   int(r.Number),
		Status:   r.StatusMessage,
		Online:   r.IsOnline != nil && *r.IsOnline,
		LastSeen: r.LastSeen.Time,
	}
}

// transitionFromChange builds a presence transition from a profiles UPDATE.
// old carries is_online only when the table replicates full rows; without it
// the previous flag is assumed unchanged.
func transitionFromChange(record, old profileRow) domain.PresenceTransition {
	entry := record.toEntry()
	was := entry.Online
	if old.IsOnline != nil {
		was = *old.IsOnline
	}
	return domain.PresenceTransition{Entry: entry, WasOnline: was}
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
