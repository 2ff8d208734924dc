package views

import (
	"strings"
	"testing"
	"time"

	"github.com/nyx-chat/nyx/internal/auth"
	"github.com/nyx-chat/nyx/internal/directory"
	"github.com/nyx-chat/nyx/internal/domain"
	"github.com/nyx-chat/nyx/internal/tui/ui"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
		keep     bool
	}{
		{"👍🏻 ok", "👍 ok", false},
		{"a\u200db", "ab", false},
		{"line1\nline2", "line1line2", false},
		{"line1\nline2", "line1\nline2", true},
		{"bell\a", "bell", true},
		{"\tx", "    x", false},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in, tt.keep); got != tt.want {
			t.Errorf("sanitize(%q, %v) = %q, want %q", tt.in, tt.keep, got, tt.want)
		}
	}
}

func TestLastSeen(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := lastSeen(testNow.Add(-tt.ago), testNow); got != tt.want {
			t.Errorf("lastSeen(-%s) = %q, want %q", tt.ago, got, tt.want)
		}
	}
	if got := lastSeen(time.Time{}, testNow); got != "never" {
		t.Errorf("zero = %q", got)
	}
}

func TestClock(t *testing.T) {
	if got := clock(testNow.Add(-time.Hour), testNow); got != "11:00" {
		t.Errorf("today = %q", got)
	}
	if got := clock(testNow.AddDate(0, 0, -1), testNow); got != "Feb 28 12:00" {
		t.Errorf("yesterday = %q", got)
	}
	if clock(time.Time{}, testNow) != "" {
		t.Error("zero time rendered")
	}
}

func TestRenderMessage(t *testing.T) {
	theme := ui.DefaultTheme()

	mine := renderMessage(theme, domain.Message{SenderID: "me", SenderName: "Nyx 1", Body: "hi [red]", Pending: true, CreatedAt: testNow}, "me", testNow)
	if !strings.Contains(mine, "You") || !strings.Contains(mine, "sending…") {
		t.Errorf("own pending message = %q", mine)
	}
	if !strings.Contains(mine, "hi [red[]") {
		t.Errorf("body not escaped: %q", mine)
	}

	theirs := renderMessage(theme, domain.Message{SenderID: "u2", SenderName: "Nyx 2", Body: "yo", CreatedAt: testNow}, "me", testNow)
	if !strings.Contains(theirs, "Nyx 2") || strings.Contains(theirs, "sending") {
		t.Errorf("peer message = %q", theirs)
	}

	sys := renderMessage(theme, domain.Message{Kind: domain.KindJoin, SenderName: "Nyx 2", Body: "Nyx 2 has entered The Cosmic River 🌊"}, "me", testNow)
	if strings.Contains(sys, "Nyx 2[-:-:-]") || !strings.Contains(sys, "has entered") {
		t.Errorf("join line = %q", sys)
	}
}

func TestRenderRoster(t *testing.T) {
	theme := ui.DefaultTheme()
	if got := renderRoster(theme, nil); !strings.Contains(got, "nobody") {
		t.Errorf("empty roster = %q", got)
	}
	got := renderRoster(theme, []domain.PresenceEntry{{UserID: "a", Name: "Nyx 2"}, {UserID: "b"}})
	if !strings.Contains(got, "Nyx 2") || !strings.Contains(got, "Unknown Nyx") {
		t.Errorf("roster = %q", got)
	}
}

func TestDirectoryFilter(t *testing.T) {
	dv := NewDirectoryView(ui.DefaultTheme())
	dv.now = func() time.Time { return testNow }
	dv.Update([]directory.Entry{
		{PresenceEntry: domain.PresenceEntry{UserID: "a", Name: "Nyx 2", Number: 2, Status: "stargazing"}, IsOnline: true},
		{PresenceEntry: domain.PresenceEntry{UserID: "b", Name: "Nyx 12", Number: 12}},
		{PresenceEntry: domain.PresenceEntry{UserID: "c", Name: "Nyx 30", Number: 30}},
	})

	if e, ok := dv.At(2); !ok || e.UserID != "b" {
		t.Errorf("At(2) = %+v, %v", e, ok)
	}
	if e, ok := dv.Selected(); !ok || e.UserID != "a" {
		t.Errorf("initial selection = %+v, %v", e, ok)
	}

	dv.SetFilter("STAR")
	if e, ok := dv.At(1); !ok || e.UserID != "a" {
		t.Errorf("status filter = %+v", e)
	}
	if _, ok := dv.At(2); ok {
		t.Error("status filter kept extra rows")
	}

	dv.SetFilter("12")
	if e, ok := dv.At(1); !ok || e.UserID != "b" {
		t.Errorf("number filter = %+v", e)
	}

	dv.SetFilter("")
	if _, ok := dv.At(3); !ok {
		t.Error("clearing the filter lost rows")
	}
	if _, ok := dv.At(0); ok {
		t.Error("At(0) should be out of range")
	}
}

func TestRegisterInput(t *testing.T) {
	rv := NewRegisterView(ui.DefaultTheme())
	rv.name.SetText("Ada")
	rv.email.SetText("ada@nyx.test")
	rv.password.SetText("secret")
	rv.confirm.SetText("secret")

	var got string
	rv.SetOnRegister(func(in auth.RegisterInput) { got = in.FullName + "/" + in.Email })
	rv.submit()
	if got != "Ada/ada@nyx.test" {
		t.Errorf("submitted %q", got)
	}

	rv.Reset()
	if in := rv.Input(); in.FullName != "" || in.Password != "" {
		t.Errorf("reset kept %+v", in)
	}
}
