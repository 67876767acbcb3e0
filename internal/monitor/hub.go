// Package monitor publishes pipeline events and statistics to local clients
// over a websocket.
package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lanikai/alohacar/internal/logging"
	"github.com/lanikai/alohacar/internal/pipeline"
)

var log = logging.DefaultLogger.WithTag("monitor")

// Event is the wire form of a pipeline event.
type Event struct {
	Type      string    `json:"type"`
	Session   string    `json:"session"`
	Time      time.Time `json:"time"`
	Timestamp int64     `json:"timestamp,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func FromPipeline(ev pipeline.Event) Event {
	out := Event{
		Type:      ev.Kind.String(),
		Session:   ev.Session.String(),
		Time:      ev.Time,
		Timestamp: ev.Timestamp,
		Width:     ev.Width,
		Height:    ev.Height,
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}

// Hub fans events out to subscribers. A subscriber that falls behind loses
// its oldest events, never blocking the publisher.
type Hub struct {
	sync.Mutex

	subscribers []chan Event
	closed      bool
	missed      atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) Subscribe(capacity int) <-chan Event {
	h.Lock()
	defer h.Unlock()

	if capacity == 0 {
		panic("monitor.Hub: subscriber capacity must be nonzero")
	}

	s := make(chan Event, capacity)
	if h.closed {
		close(s)
		return s
	}
	h.subscribers = append(h.subscribers, s)
	return s
}

func (h *Hub) Unsubscribe(s <-chan Event) {
	h.Lock()
	defer h.Unlock()

	// See https://github.com/golang/go/wiki/SliceTricks
	for i, subscriber := range h.subscribers {
		if s == subscriber {
			subs := h.subscribers
			close(subs[i])
			subs[len(subs)-1], subs[i] = subs[i], subs[len(subs)-1]
			h.subscribers = subs[:len(subs)-1]
			break
		}
	}
}

func (h *Hub) Subscribers() int {
	h.Lock()
	defer h.Unlock()
	return len(h.subscribers)
}

func (h *Hub) Publish(ev Event) {
	h.Lock()
	defer h.Unlock()

	for _, subscriber := range h.subscribers {
		select {
		case subscriber <- ev:
		default:
			// Drop oldest event, add newest
			select {
			case <-subscriber:
			default:
			}
			subscriber <- ev
			h.missed.Add(1)
		}
	}
}

// Missed counts events dropped across all subscribers.
func (h *Hub) Missed() uint64 {
	return h.missed.Load()
}

// Forward publishes every event from a pipeline session until its channel
// is closed.
func (h *Hub) Forward(events <-chan pipeline.Event) {
	for ev := range events {
		if ev.Kind != pipeline.EventFramePresented {
			log.Debug("%v", ev)
		}
		h.Publish(FromPipeline(ev))
	}
}

func (h *Hub) Close() {
	h.Lock()
	defer h.Unlock()

	for _, subscriber := range h.subscribers {
		close(subscriber)
	}
	h.subscribers = nil
	h.closed = true
}
