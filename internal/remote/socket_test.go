package remote

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drgolem/tomu/pkg/playback"
)

// socketPath keeps the path below the unix socket length limit.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tomu")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "ctl.sock")
}

func startSocket(t *testing.T, path string, ctrl *playback.Control) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- NewSocket(path, testLog).Run(ctx, ctrl)
	}()
	waitUntil(t, "socket to listen", func() bool {
		_, err := os.Stat(path)
		return err == nil
	})
	return cancel, errCh
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSocketDispatchesCommands(t *testing.T) {
	path := socketPath(t)
	ctrl := playback.New()
	cancel, errCh := startSocket(t, path, ctrl)

	if err := Send(path, CmdPause); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitUntil(t, "pause", ctrl.IsPaused)

	if err := Send(path, CmdVolumeDown); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitUntil(t, "volume change", func() bool { return ctrl.Volume() == 0.98 })

	if err := Send(path, CmdQuit); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitUntil(t, "quit", ctrl.QuitRequested)

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("socket file left behind: %v", err)
	}
}

func TestSocketRunReturnsWithIdleClient(t *testing.T) {
	path := socketPath(t)
	ctrl := playback.New()
	cancel, errCh := startSocket(t, path, ctrl)

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte{CmdPause}); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitUntil(t, "pause", ctrl.IsPaused)

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run blocked on an open client connection")
	}
}

func TestConnSetRefusesAfterCloseAll(t *testing.T) {
	var cs connSet

	open, openPeer := net.Pipe()
	defer openPeer.Close()
	if !cs.add(open) {
		t.Fatal("add before closeAll refused")
	}

	cs.closeAll()
	if _, err := openPeer.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Fatalf("tracked conn not closed: read returned %v", err)
	}

	late, latePeer := net.Pipe()
	defer late.Close()
	defer latePeer.Close()
	if cs.add(late) {
		t.Fatal("add after closeAll accepted the conn")
	}
}

func TestSocketReplacesStaleFile(t *testing.T) {
	path := socketPath(t)

	// first listener exits, second one reuses the path
	cancel, errCh := startSocket(t, path, playback.New())
	cancel()
	<-errCh

	ctrl := playback.New()
	cancel, errCh = startSocket(t, path, ctrl)
	defer func() {
		cancel()
		<-errCh
	}()
	if err := Send(path, CmdToggle); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	waitUntil(t, "toggle", ctrl.IsPaused)
}

func TestSocketRefusesLivePath(t *testing.T) {
	path := socketPath(t)
	cancel, errCh := startSocket(t, path, playback.New())
	defer func() {
		cancel()
		<-errCh
	}()

	err := NewSocket(path, testLog).Run(context.Background(), playback.New())
	if err == nil {
		t.Fatal("second listener started on a live socket")
	}
}

func TestSocketRefusesRegularFile(t *testing.T) {
	path := socketPath(t)
	os.WriteFile(path, []byte("data"), 0o600)

	if err := NewSocket(path, testLog).Run(context.Background(), playback.New()); err == nil {
		t.Fatal("listener replaced a regular file")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("regular file removed: %v", err)
	}
}

func TestSendWithoutListener(t *testing.T) {
	if err := Send(socketPath(t), CmdPause); err == nil {
		t.Fatal("Send succeeded without a listener")
	}
}
