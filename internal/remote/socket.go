package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/drgolem/tomu/pkg/playback"
)

// DefaultSocketPath returns $XDG_RUNTIME_DIR/tomu.sock, or /tmp/tomu.sock
// when the variable is unset.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "tomu.sock")
	}
	return filepath.Join(os.TempDir(), "tomu.sock")
}

// Socket accepts command bytes on a unix domain socket.
type Socket struct {
	path string
	log  *slog.Logger
}

func NewSocket(path string, log *slog.Logger) *Socket {
	return &Socket{path: path, log: log}
}

// Run listens until ctx is cancelled and removes the socket file on return.
// A stale socket file left by a crashed player is replaced.
func (s *Socket) Run(ctx context.Context, ctrl *playback.Control) error {
	if err := removeStale(s.path); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}
	defer os.Remove(s.path)

	var (
		conns connSet
		wg    sync.WaitGroup
	)
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		conns.closeAll()
	})
	defer stop()

	s.log.Debug("Control socket listening", "path", s.path)
	for {
		conn, err := ln.Accept()
		if err != nil {
			conns.closeAll()
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		// Accepted after shutdown swept the set.
		if !conns.add(conn) {
			conn.Close()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				conns.remove(conn)
				conn.Close()
			}()
			s.serve(conn, ctrl)
		}()
	}
}

// connSet tracks open control connections. Once closeAll has run it refuses
// new ones, so a connection accepted during shutdown cannot outlive it.
type connSet struct {
	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

func (cs *connSet) add(c net.Conn) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return false
	}
	if cs.conns == nil {
		cs.conns = make(map[net.Conn]struct{})
	}
	cs.conns[c] = struct{}{}
	return true
}

func (cs *connSet) remove(c net.Conn) {
	cs.mu.Lock()
	delete(cs.conns, c)
	cs.mu.Unlock()
}

func (cs *connSet) closeAll() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.closed = true
	for c := range cs.conns {
		c.Close()
	}
}

func (s *Socket) serve(conn net.Conn, ctrl *playback.Control) {
	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		dispatchAll(s.log, buf[:n], ctrl)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("Control connection closed", "error", err)
			}
			return
		}
	}
}

// removeStale deletes path when it is a socket nobody listens on.
func removeStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if conn, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
		conn.Close()
		return fmt.Errorf("another player is listening on %s", path)
	}
	return os.Remove(path)
}

// Send writes one command byte to the player listening on path.
func Send(path string, cmd byte) error {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return fmt.Errorf("connect to player: %w", err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte{cmd}); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}
