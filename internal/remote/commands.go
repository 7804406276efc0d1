// Package remote feeds user commands from the keyboard, a unix socket,
// HTTP/websocket and NATS into a playback.Control.
package remote

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/drgolem/tomu/pkg/playback"
)

// Command bytes understood by every input.
const (
	CmdToggle     byte = ' '
	CmdPause      byte = 'p'
	CmdResume     byte = 'r'
	CmdQuit       byte = 'q'
	CmdNext       byte = 'n'
	CmdVolumeUp   byte = '+'
	CmdVolumeDown byte = '-'
)

// ctrlC arrives as a byte when the terminal is in raw mode.
const ctrlC byte = 0x03

var commandNames = map[string]byte{
	"toggle":      CmdToggle,
	"pause":       CmdPause,
	"resume":      CmdResume,
	"quit":        CmdQuit,
	"next":        CmdNext,
	"volume-up":   CmdVolumeUp,
	"volume-down": CmdVolumeDown,
}

// CommandNames returns the named commands in sorted order.
func CommandNames() []string {
	names := make([]string, 0, len(commandNames))
	for n := range commandNames {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ParseCommand accepts a command name ("pause", "volume-up") or a single
// command byte ("p", "+").
func ParseCommand(s string) (byte, error) {
	if b, ok := commandNames[strings.ToLower(s)]; ok {
		return b, nil
	}
	if len(s) == 1 && known(s[0]) {
		return s[0], nil
	}
	return 0, fmt.Errorf("unknown command %q (use one of %s)", s, strings.Join(CommandNames(), ", "))
}

func known(b byte) bool {
	switch b {
	case CmdToggle, CmdPause, CmdResume, CmdQuit, CmdNext,
		CmdVolumeUp, '=', CmdVolumeDown, '_':
		return true
	}
	return false
}

// Dispatch applies one command byte to ctrl. It reports false for bytes
// that are not commands.
func Dispatch(log *slog.Logger, b byte, ctrl *playback.Control) bool {
	switch b {
	case CmdToggle:
		ctrl.Toggle()
		log.Info("Playback toggled", "paused", ctrl.IsPaused())
	case CmdPause:
		ctrl.Pause()
		log.Info("Playback paused")
	case CmdResume:
		ctrl.Resume()
		log.Info("Playback resumed")
	case CmdQuit:
		log.Info("Quit requested")
		ctrl.Quit()
	case CmdNext:
		log.Info("Next requested")
		ctrl.Stop()
	case CmdVolumeUp, '=':
		log.Info("Volume", "volume", ctrl.SetVolume(playback.VolumeStep))
	case CmdVolumeDown, '_':
		log.Info("Volume", "volume", ctrl.SetVolume(-playback.VolumeStep))
	default:
		log.Debug("Ignoring unknown command", "byte", fmt.Sprintf("%#02x", b))
		return false
	}
	return true
}

// dispatchAll applies every byte of data in order.
func dispatchAll(log *slog.Logger, data []byte, ctrl *playback.Control) {
	for _, b := range data {
		Dispatch(log, b, ctrl)
	}
}
