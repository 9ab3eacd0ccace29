package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/lifeon/internal/engine"
)

const (
	maxStreamConns = 16
	streamBuffer   = 32
	pingInterval   = 30 * time.Second
	writeTimeout   = 5 * time.Second
)

// hub fans turn reports out to stream subscribers. publish runs on the
// runner goroutine and never blocks: slow subscribers miss reports.
type hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[chan []byte]struct{})}
}

func (h *hub) join() (chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= maxStreamConns {
		return nil, false
	}
	ch := make(chan []byte, streamBuffer)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *hub) leave(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, ch)
}

func (h *hub) publish(r engine.TurnReport) {
	b, err := json.Marshal(r)
	if err != nil {
		slog.Warn("stream: encode turn report", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- b:
		default:
			slog.Debug("stream: subscriber behind, report dropped", "round", r.Stats.Round)
		}
	}
}

// attachStream hooks the hub into the simulation on first use.
func (s *Server) attachStream(ctx context.Context) error {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if s.hub != nil {
		return nil
	}
	h := newHub()
	err := s.Runner.Do(ctx, func(sim *engine.Simulation) error {
		sim.OnTurnReport(h.publish)
		return nil
	})
	if err != nil {
		return err
	}
	s.hub = h
	return nil
}

// handleStream upgrades to a websocket and pushes a JSON turn report after
// every ended turn. Client messages are ignored.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.attachStream(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	ch, ok := s.hub.join()
	if !ok {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.hub.leave(ch)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case b := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
