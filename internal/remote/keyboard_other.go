//go:build !unix

package remote

import (
	"context"
	"log/slog"
	"os"

	"github.com/drgolem/tomu/pkg/playback"
)

// Keyboard is not supported on this platform.
type Keyboard struct {
	log *slog.Logger
}

func NewKeyboard(_ *os.File, log *slog.Logger) *Keyboard {
	return &Keyboard{log: log}
}

func (k *Keyboard) Run(ctx context.Context, _ *playback.Control) error {
	k.log.Debug("Keyboard control not supported on this platform")
	<-ctx.Done()
	return nil
}
