package player

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	ring "github.com/dh1tw/golang-ring"

	"github.com/drgolem/tomu/pkg/decoders"
)

// Mode selects how the playlist runner repeats.
type Mode int

const (
	ModeOnce Mode = iota
	ModeLoop
	ModeShuffleLoop
)

// maxShuffleHistory bounds the recently played list in shuffle mode.
const maxShuffleHistory = 8

var ErrNoPlayableFiles = errors.New("no playable files")

func (m Mode) String() string {
	switch m {
	case ModeOnce:
		return "once"
	case ModeLoop:
		return "loop"
	case ModeShuffleLoop:
		return "shuffle-loop"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as printed by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "once":
		return ModeOnce, nil
	case "loop":
		return ModeLoop, nil
	case "shuffle-loop", "shuffle":
		return ModeShuffleLoop, nil
	default:
		return ModeOnce, fmt.Errorf("unknown mode %q (use once, loop or shuffle-loop)", s)
	}
}

// PlayableFiles lists the files in dir that a decoder supports, sorted by
// name. Subdirectories are not searched.
func PlayableFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !decoders.Supported(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPlayableFiles, dir)
	}
	slices.Sort(files)
	return files, nil
}

// Shuffler picks random files while avoiding the most recent picks.
type Shuffler struct {
	files   []string
	history ring.Ring
	recent  map[string]int
	rnd     *rand.Rand
}

// NewShuffler remembers min(8, len(files)-1) recent picks.
func NewShuffler(files []string, rnd *rand.Rand) *Shuffler {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &Shuffler{
		files:  files,
		recent: make(map[string]int),
		rnd:    rnd,
	}
	if n := min(maxShuffleHistory, len(files)-1); n > 0 {
		s.history.SetCapacity(n)
	}
	return s
}

// Next returns a random file that is not among the recent picks.
func (s *Shuffler) Next() string {
	if len(s.files) == 0 {
		return ""
	}
	var candidates []string
	for _, f := range s.files {
		if s.recent[f] == 0 {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		candidates = s.files
	}
	pick := candidates[s.rnd.IntN(len(candidates))]
	s.remember(pick)
	return pick
}

func (s *Shuffler) remember(file string) {
	if s.history.Capacity() == 0 {
		return
	}
	// Length miscounts a ring holding a single value, Values does not.
	if len(s.history.Values()) >= s.history.Capacity() {
		if old, ok := s.history.Dequeue().(string); ok {
			s.recent[old]--
			if s.recent[old] <= 0 {
				delete(s.recent, old)
			}
		}
	}
	s.history.Enqueue(file)
	s.recent[file]++
}

// Run plays target according to mode until the stream ends (once), the user
// quits, or ctx is cancelled. A directory target plays random files from it.
//
// In shuffle-loop mode a file that fails to start is logged and the next
// one is tried. In loop mode the same file would fail again, so the error
// is returned.
func (p *Player) Run(ctx context.Context, mode Mode, target string) error {
	next, err := p.picker(mode, target)
	if err != nil {
		return err
	}

	failures := 0
	for {
		path := next()
		p.log.Debug("Next file", "mode", mode.String(), "file", path)

		outcome, err := p.Play(ctx, path)
		if err != nil {
			if mode != ModeShuffleLoop {
				return fmt.Errorf("play %s: %w", path, err)
			}
			failures++
			p.log.Error("Playback failed", "file", path, "error", err)
			if failures >= maxShuffleFailures {
				return fmt.Errorf("giving up after %d failed files: %w", failures, err)
			}
		} else {
			failures = 0
		}

		if outcome == Quit || ctx.Err() != nil || mode == ModeOnce {
			return nil
		}
	}
}

// maxShuffleFailures ends shuffle mode when that many files in a row fail
// to start.
const maxShuffleFailures = 8

func (p *Player) picker(mode Mode, target string) (func() string, error) {
	if strings.HasPrefix(target, "tone:") {
		return func() string { return target }, nil
	}
	fi, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", target, err)
	}

	if !fi.IsDir() {
		if mode == ModeShuffleLoop {
			return nil, fmt.Errorf("shuffle-loop needs a directory, got file %s", target)
		}
		return func() string { return target }, nil
	}

	files, err := PlayableFiles(target)
	if err != nil {
		return nil, err
	}
	shuffler := NewShuffler(files, nil)
	if mode == ModeLoop {
		// loop repeats one random pick from the directory
		pick := shuffler.Next()
		return func() string { return pick }, nil
	}
	return shuffler.Next, nil
}
