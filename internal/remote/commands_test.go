package remote

import (
	"log/slog"
	"testing"

	"github.com/drgolem/tomu/pkg/playback"
)

var testLog = slog.New(slog.DiscardHandler)

func TestDispatch(t *testing.T) {
	tests := []struct {
		name    string
		keys    string
		running bool
		paused  bool
		quit    bool
		volume  float64
	}{
		{"toggle", " ", true, true, false, 1.0},
		{"toggle twice", "  ", true, false, false, 1.0},
		{"pause", "p", true, true, false, 1.0},
		{"pause resume", "pr", true, false, false, 1.0},
		{"next", "n", false, false, false, 1.0},
		{"quit", "q", false, false, true, 1.0},
		{"volume up", "+=", true, false, false, 1.04},
		{"volume down", "-_-", true, false, false, 0.94},
		{"unknown ignored", "xyz\n", true, false, false, 1.0},
		{"pause after next", "np", false, false, false, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := playback.New()
			dispatchAll(testLog, []byte(tt.keys), ctrl)

			s := ctrl.Snapshot()
			if s.Running != tt.running || s.Paused != tt.paused || s.Volume != tt.volume {
				t.Fatalf("got %+v, want running=%v paused=%v volume=%v", s, tt.running, tt.paused, tt.volume)
			}
			if ctrl.QuitRequested() != tt.quit {
				t.Fatalf("quit: got %v, want %v", ctrl.QuitRequested(), tt.quit)
			}
		})
	}
}

func TestDispatchReportsUnknown(t *testing.T) {
	ctrl := playback.New()
	if Dispatch(testLog, 'x', ctrl) {
		t.Fatal("unknown byte reported as handled")
	}
	if !Dispatch(testLog, CmdPause, ctrl) {
		t.Fatal("pause not handled")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    byte
		wantErr bool
	}{
		{"pause", CmdPause, false},
		{"Resume", CmdResume, false},
		{"toggle", CmdToggle, false},
		{"next", CmdNext, false},
		{"quit", CmdQuit, false},
		{"volume-up", CmdVolumeUp, false},
		{"volume-down", CmdVolumeDown, false},
		{"p", CmdPause, false},
		{"=", '=', false},
		{" ", CmdToggle, false},
		{"x", 0, true},
		{"stop", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommand(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
