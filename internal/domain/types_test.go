package domain

import "testing"

func TestMessageInvolves(t *testing.T) {
	m := Message{SenderID: "u1", ReceiverID: "u2"}
	tests := []struct {
		a, b string
		want bool
	}{
		{"u1", "u2", true},
		{"u2", "u1", true},
		{"u1", "u3", false},
		{"u3", "u2", false},
	}
	for _, tt := range tests {
		if got := m.Involves(tt.a, tt.b); got != tt.want {
			t.Errorf("Involves(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestScope(t *testing.T) {
	room := PublicScope()
	if room.IsPrivate() {
		t.Error("public scope reported private")
	}
	if room.String() != "room" || room.Title() != RoomName {
		t.Errorf("public scope = %q/%q", room.String(), room.Title())
	}

	dm := PrivateScope(Profile{ID: "u7", Name: "Nyx 7", Number: 7})
	if !dm.IsPrivate() {
		t.Error("private scope reported public")
	}
	if dm.String() != "dm:u7" || dm.Title() != "Nyx 7" {
		t.Errorf("private scope = %q/%q", dm.String(), dm.Title())
	}
}
