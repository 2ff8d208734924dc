package tui

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"room", Command{Name: CmdRoom}},
		{"  Users ", Command{Name: CmdUsers}},
		{"dm 7", Command{Name: CmdDM, Args: "7"}},
		{"pm   Nyx 12 ", Command{Name: CmdDM, Args: "Nyx 12"}},
		{"q", Command{Name: CmdQuit}},
		{"h", Command{Name: CmdHelp}},
		{"dance now", Command{Name: "dance", Args: "now"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.in); got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	for in, want := range map[string]int{"7": 7, "#7": 7, "Nyx 12": 12, "nyx12": 12, " # 3 ": 3} {
		got, err := ParseNumber(in)
		if err != nil || got != want {
			t.Errorf("ParseNumber(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"", "zero", "0", "-4", "Nyx"} {
		if _, err := ParseNumber(in); !errors.Is(err, ErrBadNumber) {
			t.Errorf("ParseNumber(%q) err = %v", in, err)
		}
	}
}
