//go:build unix

package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/drgolem/tomu/pkg/playback"
)

const keyboardPoll = 20 * time.Millisecond

// Keyboard reads single key presses from a terminal.
type Keyboard struct {
	in  *os.File
	log *slog.Logger
}

func NewKeyboard(in *os.File, log *slog.Logger) *Keyboard {
	return &Keyboard{in: in, log: log}
}

// Run puts the terminal in raw, non-blocking mode for the length of the
// session and restores it on return. It does nothing when in is not a
// terminal.
func (k *Keyboard) Run(ctx context.Context, ctrl *playback.Control) error {
	fd := int(k.in.Fd())
	if !term.IsTerminal(fd) {
		k.log.Debug("Keyboard control disabled, input is not a terminal")
		return nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	if err := syscall.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("set non-blocking stdin: %w", err)
	}
	defer syscall.SetNonblock(fd, false)

	buf := make([]byte, 16)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := syscall.Read(fd, buf)
		for _, b := range buf[:max(n, 0)] {
			if b == ctrlC {
				b = CmdQuit
			}
			Dispatch(k.log, b, ctrl)
		}
		switch {
		case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EINTR), n == 0:
			time.Sleep(keyboardPoll)
		case err != nil:
			return fmt.Errorf("read keyboard: %w", err)
		}
	}
}
