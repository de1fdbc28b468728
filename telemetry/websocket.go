package telemetry

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Path is where the WebSocket sink accepts viewers.
const Path = "/telemetry"

const wsWriteTimeout = 100 * time.Millisecond

// WebSocketSink broadcasts samples to every connected viewer. A viewer whose
// write fails is dropped.
type WebSocketSink struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	srv *http.Server
	ln  net.Listener
}

func NewWebSocketSink(log zerolog.Logger) *WebSocketSink {
	return &WebSocketSink{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (s *WebSocketSink) Name() string { return "websocket" }

// Listen serves Path on addr in the background.
func (s *WebSocketSink) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}
	mux := http.NewServeMux()
	mux.Handle(Path, s)

	s.ln = ln
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("telemetry server stopped")
		}
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Str("path", Path).Msg("telemetry server listening")
	return nil
}

// Addr is the bound address, empty before Listen.
func (s *WebSocketSink) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// ServeHTTP upgrades the request and keeps the viewer registered until it
// disconnects. Messages from viewers are ignored.
func (s *WebSocketSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade")
		return
	}

	s.mu.Lock()
	s.clients[ws] = struct{}{}
	s.mu.Unlock()
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("telemetry viewer connected")

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, ws)
	s.mu.Unlock()
	ws.Close()
}

// Publish writes sample to every viewer. Viewer failures do not fail the sink.
func (s *WebSocketSink) Publish(sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ws := range s.clients {
		ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := ws.WriteJSON(sample); err != nil {
			s.log.Debug().Err(err).Msg("dropping telemetry viewer")
			ws.Close()
			delete(s.clients, ws)
		}
	}
	return nil
}

// Clients is the number of connected viewers.
func (s *WebSocketSink) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	for ws := range s.clients {
		ws.Close()
		delete(s.clients, ws)
	}
	s.mu.Unlock()

	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
