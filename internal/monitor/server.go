package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	subscriberCapacity = 64
	writeTimeout       = 5 * time.Second
)

// Server serves the event stream at /events (websocket, one JSON object per
// message) and a statistics snapshot at /stats.
type Server struct {
	hub    *Hub
	stats  func() interface{}
	server *http.Server
}

// NewServer creates a server listening on addr. stats is called for every
// /stats request and must return a JSON-encodable value.
func NewServer(addr string, hub *Hub, stats func() interface{}) *Server {
	router := http.NewServeMux()
	s := &Server{
		hub:   hub,
		stats: stats,
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
	}
	router.HandleFunc("/events", s.handleEvents)
	router.HandleFunc("/stats", s.handleStats)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	log.Info("Monitor listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.stats()); err != nil {
		log.Warn("encode stats: %v", err)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws, err := new(websocket.Upgrader).Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade: %v", err)
		return
	}
	defer ws.Close()

	events := s.hub.Subscribe(subscriberCapacity)
	defer s.hub.Unsubscribe(events)

	// Clients only listen. Reading detects when they go away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeTimeout))
				return
			}
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(ev); err != nil {
				log.Debug("Monitor client %s: %v", r.RemoteAddr, err)
				return
			}
		}
	}
}
