package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/drgolem/tomu/pkg/playback"
	"github.com/drgolem/tomu/pkg/types"
)

const statusPushInterval = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  256,
	WriteBufferSize: 1024,
}

// Status is the JSON view of the playback state.
type Status struct {
	Session           string  `json:"session,omitempty"`
	File              string  `json:"file,omitempty"`
	SampleRate        int     `json:"sample_rate,omitempty"`
	Channels          int     `json:"channels,omitempty"`
	Format            string  `json:"format,omitempty"`
	PlayedSeconds     float64 `json:"played_seconds"`
	BufferedSeconds   float64 `json:"buffered_seconds"`
	BufferFillPercent float64 `json:"buffer_fill_percent"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
	Volume            float64 `json:"volume"`
	Paused            bool    `json:"paused"`
	Running           bool    `json:"running"`
}

// NewStatus merges the monitor report with the live control state. Either
// argument may be nil.
func NewStatus(monitor types.PlaybackMonitor, ctrl *playback.Control) Status {
	var st Status
	if monitor != nil {
		ps := monitor.GetPlaybackStatus()
		st = Status{
			Session:           ps.Session,
			File:              ps.FileName,
			SampleRate:        ps.SampleRate,
			Channels:          ps.Channels,
			BufferFillPercent: ps.FillPercent(),
			ElapsedSeconds:    ps.ElapsedTime.Seconds(),
			Volume:            ps.Volume,
			Paused:            ps.Paused,
		}
		if ps.Format != 0 {
			st.Format = ps.Format.String()
		}
		if ps.SampleRate > 0 {
			st.PlayedSeconds = float64(ps.PlayedSamples) / float64(ps.SampleRate)
			st.BufferedSeconds = float64(ps.BufferedSamples) / float64(ps.SampleRate)
		}
	}
	if ctrl != nil {
		snap := ctrl.Snapshot()
		st.Running = snap.Running
		st.Paused = snap.Paused
		st.Volume = snap.Volume
	}
	return st
}

// HTTPServer exposes the control commands and the playback status over
// HTTP and a websocket.
type HTTPServer struct {
	addr    string
	monitor types.PlaybackMonitor
	log     *slog.Logger
}

func NewHTTPServer(addr string, monitor types.PlaybackMonitor, log *slog.Logger) *HTTPServer {
	return &HTTPServer{addr: addr, monitor: monitor, log: log}
}

// Router returns the routes bound to ctrl.
func (s *HTTPServer) Router(ctx context.Context, ctrl *playback.Control) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/control/{command}", s.controlHdlr(ctrl)).Methods(http.MethodPost)
	api.HandleFunc("/status", s.statusHdlr(ctrl)).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.webSocketHdlr(ctx, ctrl))

	// A subrouter reports a method mismatch as 404 unless it has its own handler.
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHdlr)
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHdlr)
	return r
}

func methodNotAllowedHdlr(w http.ResponseWriter, req *http.Request) {
	writeJSONError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed on %s", req.Method, req.URL.Path))
}

// Run serves until ctx is cancelled.
func (s *HTTPServer) Run(ctx context.Context, ctrl *playback.Control) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Router(ctx, ctrl),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Debug("HTTP control listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) controlHdlr(ctrl *playback.Control) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()

		cmd, err := ParseCommand(mux.Vars(req)["command"])
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		Dispatch(s.log, cmd, ctrl)
		writeJSON(w, http.StatusOK, NewStatus(s.monitor, ctrl))
	}
}

func (s *HTTPServer) statusHdlr(ctrl *playback.Control) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		writeJSON(w, http.StatusOK, NewStatus(s.monitor, ctrl))
	}
}

// webSocketHdlr dispatches every incoming message and pushes the status
// once a second. A message that is a command name runs that command;
// otherwise each byte is a command byte.
func (s *HTTPServer) webSocketHdlr(ctx context.Context, ctrl *playback.Control) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			s.log.Debug("Unable to open websocket", "remote", req.RemoteAddr, "error", err)
			return
		}
		defer conn.Close()

		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()

		done := make(chan struct{})
		defer close(done)
		go s.pushStatus(conn, ctrl, done)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			text := strings.TrimSpace(string(data))
			if cmd, err := ParseCommand(text); err == nil && len(text) > 1 {
				Dispatch(s.log, cmd, ctrl)
				continue
			}
			dispatchAll(s.log, data, ctrl)
		}
	}
}

func (s *HTTPServer) pushStatus(conn *websocket.Conn, ctrl *playback.Control, done <-chan struct{}) {
	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(NewStatus(s.monitor, ctrl)); err != nil {
			return
		}
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
