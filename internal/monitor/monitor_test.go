package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lanikai/alohacar/internal/pipeline"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDropsOldest(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(2)

	for i := int64(1); i <= 3; i++ {
		h.Publish(Event{Type: "frame-presented", Timestamp: i})
	}
	assert.Equal(t, uint64(1), h.Missed())
	assert.Equal(t, int64(2), (<-s).Timestamp)
	assert.Equal(t, int64(3), (<-s).Timestamp)

	h.Unsubscribe(s)
	_, ok := <-s
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())
}

func TestHubClose(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(1)
	h.Close()
	_, ok := <-s
	assert.False(t, ok)

	// Unsubscribing after close is harmless, and late subscribers see a
	// closed channel.
	h.Unsubscribe(s)
	_, ok = <-h.Subscribe(1)
	assert.False(t, ok)
}

func TestForwardPipelineEvents(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(4)

	id := uuid.New()
	events := make(chan pipeline.Event, 2)
	events <- pipeline.Event{Kind: pipeline.EventFramePresented, Session: id, Timestamp: 7, Width: 1280, Height: 720}
	events <- pipeline.Event{Kind: pipeline.EventFatal, Session: id, Err: errors.New("device lost")}
	close(events)
	h.Forward(events)

	ev := <-s
	assert.Equal(t, "frame-presented", ev.Type)
	assert.Equal(t, id.String(), ev.Session)
	assert.Equal(t, 1280, ev.Width)

	ev = <-s
	assert.Equal(t, "fatal-failure", ev.Type)
	assert.Equal(t, "device lost", ev.Error)
}

func TestServerStreamsEvents(t *testing.T) {
	h := NewHub()
	srv := NewServer("127.0.0.1:0", h, func() interface{} { return nil })
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	h.Publish(Event{Type: "decode-error", Error: "corrupt slice"})

	var ev Event
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, "decode-error", ev.Type)
	assert.Equal(t, "corrupt slice", ev.Error)

	// Closing the hub ends the stream.
	h.Close()
	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestServerStats(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewHub(), func() interface{} {
		return map[string]int{"presented": 42}
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var stats map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 42, stats["presented"])
}
