package player

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/drgolem/tomu/pkg/output"
	"github.com/drgolem/tomu/pkg/types"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeOnce, false},
		{"once", ModeOnce, false},
		{"LOOP", ModeLoop, false},
		{"shuffle-loop", ModeShuffleLoop, false},
		{"shuffle", ModeShuffleLoop, false},
		{"repeat", ModeOnce, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
	for _, m := range []Mode{ModeOnce, ModeLoop, ModeShuffleLoop} {
		if back, _ := ParseMode(m.String()); back != m {
			t.Errorf("round trip of %v gave %v", m, back)
		}
	}
}

func makeMusicDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mp3"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestPlayableFiles(t *testing.T) {
	dir := makeMusicDir(t, "b.flac", "a.mp3", "notes.txt", "c.WAV", "cover.jpg")

	files, err := PlayableFiles(dir)
	if err != nil {
		t.Fatalf("PlayableFiles failed: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	want := []string{"a.mp3", "b.flac", "c.WAV"}
	if !slices.Equal(names, want) {
		t.Fatalf("got %v, want %v", names, want)
	}

	empty := makeMusicDir(t, "readme.md")
	if _, err := PlayableFiles(empty); !errors.Is(err, ErrNoPlayableFiles) {
		t.Fatalf("got %v, want ErrNoPlayableFiles", err)
	}
}

func TestShufflerAvoidsRecentPicks(t *testing.T) {
	tests := []struct {
		files  int
		window int
	}{
		{1, 0},
		{2, 1},
		{3, 2},
		{20, 8},
	}
	for _, tt := range tests {
		files := make([]string, tt.files)
		for i := range files {
			files[i] = string(rune('a' + i))
		}
		s := NewShuffler(files, rand.New(rand.NewPCG(1, uint64(tt.files))))

		var picks []string
		for i := 0; i < 200; i++ {
			pick := s.Next()
			lo := max(0, len(picks)-tt.window)
			if slices.Contains(picks[lo:], pick) {
				t.Fatalf("%d files: pick %q repeats within the last %d picks %v", tt.files, pick, tt.window, picks[lo:])
			}
			picks = append(picks, pick)
		}
		if len(s.recent) > tt.window {
			t.Fatalf("%d files: %d entries remembered, want at most %d", tt.files, len(s.recent), tt.window)
		}
	}
}

func TestShufflerAlternatesTwoFiles(t *testing.T) {
	s := NewShuffler([]string{"a", "b"}, rand.New(rand.NewPCG(7, 7)))
	prev := s.Next()
	for i := 0; i < 100; i++ {
		pick := s.Next()
		if pick == prev {
			t.Fatalf("pick %d: %q played twice in a row", i, pick)
		}
		prev = pick
	}
	if len(s.recent) != 1 || s.recent[prev] != 1 {
		t.Fatalf("recent: got %v, want only %q", s.recent, prev)
	}
}

func TestShufflerEmpty(t *testing.T) {
	if got := NewShuffler(nil, nil).Next(); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

// countingOpener returns a fresh short fake source per call and records
// the paths it was asked for.
type countingOpener struct {
	mu     sync.Mutex
	paths  []string
	failAt func(call int) error
	onOpen func(call int)
}

func (o *countingOpener) open(_ context.Context, path string) (types.Source, error) {
	o.mu.Lock()
	call := len(o.paths)
	o.paths = append(o.paths, path)
	o.mu.Unlock()

	if o.onOpen != nil {
		o.onOpen(call)
	}
	if o.failAt != nil {
		if err := o.failAt(call); err != nil {
			return nil, err
		}
	}
	return newFakeSource(2, 64), nil
}

func newPlaylistPlayer(o *countingOpener) *Player {
	return New(testConfig,
		WithLogger(testLog),
		WithSourceOpener(o.open),
		WithDriverFactory(func(string) (output.Driver, error) { return &fakeDriver{}, nil }),
	)
}

func TestRunOnce(t *testing.T) {
	o := &countingOpener{}
	if err := newPlaylistPlayer(o).Run(context.Background(), ModeOnce, "tone:440"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(o.paths) != 1 {
		t.Fatalf("played %d times, want 1", len(o.paths))
	}
}

func TestRunLoopRepeatsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	file := filepath.Join(t.TempDir(), "song.flac")
	os.WriteFile(file, []byte("x"), 0o644)

	o := &countingOpener{onOpen: func(call int) {
		if call == 2 {
			cancel()
		}
	}}
	if err := newPlaylistPlayer(o).Run(ctx, ModeLoop, file); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(o.paths) != 3 {
		t.Fatalf("played %d times, want 3", len(o.paths))
	}
	for _, p := range o.paths {
		if p != file {
			t.Fatalf("loop played %q, want %q", p, file)
		}
	}
}

func TestRunLoopReturnsStartupError(t *testing.T) {
	errCorrupt := errors.New("corrupt header")
	o := &countingOpener{failAt: func(int) error { return errCorrupt }}
	err := newPlaylistPlayer(o).Run(context.Background(), ModeLoop, "tone:440")
	if !errors.Is(err, errCorrupt) {
		t.Fatalf("got %v, want %v", err, errCorrupt)
	}
	if len(o.paths) != 1 {
		t.Fatalf("opened %d times, want 1", len(o.paths))
	}
}

func TestRunShuffleLoop(t *testing.T) {
	dir := makeMusicDir(t, "a.mp3", "b.ogg", "c.aiff", "notes.txt")

	t.Run("plays directory files", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		o := &countingOpener{onOpen: func(call int) {
			if call == 5 {
				cancel()
			}
		}}
		if err := newPlaylistPlayer(o).Run(ctx, ModeShuffleLoop, dir); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if len(o.paths) != 6 {
			t.Fatalf("played %d files, want 6", len(o.paths))
		}
		for i, p := range o.paths {
			if filepath.Ext(p) == ".txt" {
				t.Fatalf("played unsupported file %s", p)
			}
			if i > 0 && p == o.paths[i-1] {
				t.Fatalf("file %s played twice in a row", p)
			}
		}
	})

	t.Run("skips failing files", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		o := &countingOpener{
			failAt: func(call int) error {
				if call%2 == 0 {
					return errors.New("unreadable")
				}
				return nil
			},
			onOpen: func(call int) {
				if call == 5 {
					cancel()
				}
			},
		}
		if err := newPlaylistPlayer(o).Run(ctx, ModeShuffleLoop, dir); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	})

	t.Run("gives up on persistent failure", func(t *testing.T) {
		o := &countingOpener{failAt: func(int) error { return errors.New("unreadable") }}
		if err := newPlaylistPlayer(o).Run(context.Background(), ModeShuffleLoop, dir); err == nil {
			t.Fatal("Run succeeded with every file failing")
		}
		if len(o.paths) != maxShuffleFailures {
			t.Fatalf("tried %d files, want %d", len(o.paths), maxShuffleFailures)
		}
	})

	t.Run("rejects a file target", func(t *testing.T) {
		o := &countingOpener{}
		err := newPlaylistPlayer(o).Run(context.Background(), ModeShuffleLoop, filepath.Join(dir, "a.mp3"))
		if err == nil {
			t.Fatal("shuffle-loop accepted a single file")
		}
	})
}

func TestRunMissingTarget(t *testing.T) {
	o := &countingOpener{}
	if err := newPlaylistPlayer(o).Run(context.Background(), ModeOnce, filepath.Join(t.TempDir(), "nope.mp3")); err == nil {
		t.Fatal("Run succeeded for a missing file")
	}
	if len(o.paths) != 0 {
		t.Fatal("opener called for a missing file")
	}
}
