package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/drgolem/tomu/pkg/pcm"
	"github.com/drgolem/tomu/pkg/playback"
	"github.com/drgolem/tomu/pkg/types"
)

type staticMonitor types.PlaybackStatus

func (m staticMonitor) GetPlaybackStatus() types.PlaybackStatus { return types.PlaybackStatus(m) }

func newTestServer(t *testing.T, ctrl *playback.Control) *httptest.Server {
	t.Helper()
	monitor := staticMonitor{
		Session:       "abc",
		FileName:      "song.flac",
		SampleRate:    44100,
		Channels:      2,
		Format:        pcm.S16,
		PlayedSamples: 88200,
		BufferSize:    1000,
		BufferedBytes: 250,
		ElapsedTime:   3 * time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(NewHTTPServer("", monitor, testLog).Router(ctx, ctrl))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func decodeStatus(t *testing.T, resp *http.Response) Status {
	t.Helper()
	defer resp.Body.Close()
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func TestHTTPControl(t *testing.T) {
	tests := []struct {
		command  string
		wantCode int
		check    func(*playback.Control) bool
	}{
		{"pause", http.StatusOK, func(c *playback.Control) bool { return c.IsPaused() }},
		{"toggle", http.StatusOK, func(c *playback.Control) bool { return c.IsPaused() }},
		{"volume-up", http.StatusOK, func(c *playback.Control) bool { return c.Volume() == 1.02 }},
		{"next", http.StatusOK, func(c *playback.Control) bool { return !c.IsRunning() && !c.QuitRequested() }},
		{"quit", http.StatusOK, func(c *playback.Control) bool { return c.QuitRequested() }},
		{"rewind", http.StatusBadRequest, func(c *playback.Control) bool { return c.IsRunning() }},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			ctrl := playback.New()
			srv := newTestServer(t, ctrl)

			resp, err := http.Post(srv.URL+"/api/v1/control/"+tt.command, "text/plain", nil)
			if err != nil {
				t.Fatalf("POST failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status code: got %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if !tt.check(ctrl) {
				t.Fatalf("control state after %s: %+v", tt.command, ctrl.Snapshot())
			}
		})
	}
}

func TestHTTPRejectsWrongMethod(t *testing.T) {
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/control/pause"},
		{http.MethodPost, "/api/v1/status"},
	}

	ctrl := playback.New()
	srv := newTestServer(t, ctrl)
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("%s failed: %v", tt.method, err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusMethodNotAllowed {
				t.Fatalf("status code: got %d, want 405", resp.StatusCode)
			}
		})
	}
	if ctrl.IsPaused() {
		t.Fatal("GET on a control route changed the state")
	}
}

func TestHTTPStatus(t *testing.T) {
	ctrl := playback.New()
	ctrl.Pause()
	srv := newTestServer(t, ctrl)

	resp, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type: got %q", ct)
	}
	st := decodeStatus(t, resp)

	want := Status{
		Session:           "abc",
		File:              "song.flac",
		SampleRate:        44100,
		Channels:          2,
		Format:            "s16",
		PlayedSeconds:     2,
		BufferFillPercent: 25,
		ElapsedSeconds:    3,
		Volume:            1,
		Paused:            true,
		Running:           true,
	}
	if st != want {
		t.Fatalf("got %+v\nwant %+v", st, want)
	}
}

func TestWebSocket(t *testing.T) {
	ctrl := playback.New()
	srv := newTestServer(t, ctrl)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// the first status is pushed on connect
	var st Status
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if st.File != "song.flac" || !st.Running {
		t.Fatalf("pushed status: got %+v", st)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("p++")); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitUntil(t, "byte commands", func() bool { return ctrl.IsPaused() && ctrl.Volume() == 1.04 })

	if err := conn.WriteMessage(websocket.TextMessage, []byte("resume")); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitUntil(t, "named command", func() bool { return !ctrl.IsPaused() })
}

func TestHTTPServerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- NewHTTPServer("127.0.0.1:0", nil, testLog).Run(ctx, playback.New())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewStatusWithoutMonitor(t *testing.T) {
	ctrl := playback.New(playback.WithVolume(0.5))
	st := NewStatus(nil, ctrl)
	if st.Volume != 0.5 || !st.Running || st.File != "" {
		t.Fatalf("got %+v", st)
	}
}
