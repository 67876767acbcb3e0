package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventKind int

const (
	EventFramePresented EventKind = iota + 1
	EventDecodeError
	EventFatal
)

func (k EventKind) String() string {
	switch k {
	case EventFramePresented:
		return "frame-presented"
	case EventDecodeError:
		return "decode-error"
	case EventFatal:
		return "fatal-failure"
	}
	return fmt.Sprintf("event%d", int(k))
}

// Event is a notification from a Session to its owner.
type Event struct {
	Kind    EventKind
	Session uuid.UUID
	Time    time.Time

	// Presented frames.
	Timestamp int64
	Width     int
	Height    int

	// Decode errors and fatal failures.
	Err error
}

func (e Event) String() string {
	switch e.Kind {
	case EventFramePresented:
		return fmt.Sprintf("%v %d (%dx%d)", e.Kind, e.Timestamp, e.Width, e.Height)
	default:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
}

// Default capacity of the event channel.
const DefaultEventBuffer = 64

// Queue ev, discarding the oldest undelivered event if the owner has fallen
// behind.
func (s *Session) emit(ev Event) {
	ev.Session = s.id
	ev.Time = time.Now()

	s.evMu.Lock()
	defer s.evMu.Unlock()
	if s.eventsClosed {
		return
	}
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
			s.stats.droppedEvents.Add(1)
		default:
		}
	}
}

func (s *Session) closeEvents() {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if !s.eventsClosed {
		s.eventsClosed = true
		close(s.events)
	}
}
