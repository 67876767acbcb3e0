package dongle

import (
	"context"
	"sync/atomic"

	"github.com/lanikai/alohacar/internal/audio"
	"github.com/lanikai/alohacar/internal/media"
	"github.com/pkg/errors"
)

// VideoSink receives access units. Implemented by *pipeline.Session.
type VideoSink interface {
	Submit(au []byte)
	Fail(err error)
}

// AudioSink receives audio messages. Implemented by *audio.Registry.
type AudioSink interface {
	Feed(msg audio.Message) error
	StopAll()
}

type RouterStats struct {
	Video    uint64
	Audio    uint64
	Commands uint64
	Rejected uint64 // audio messages the players refused
	Plugged  bool
}

// Router dispatches producer messages in arrival order: video to the
// pipeline, audio to the players. Run is the ingest goroutine.
type Router struct {
	video VideoSink
	audio AudioSink

	// Called for producer commands; may be nil.
	OnCommand func(name string)

	videoUnits atomic.Uint64
	audioMsgs  atomic.Uint64
	commands   atomic.Uint64
	rejected   atomic.Uint64
	plugged    atomic.Bool
}

func NewRouter(video VideoSink, audio AudioSink) *Router {
	return &Router{video: video, audio: audio}
}

// Run routes messages from d until ctx is done or the producer closes its
// channel. A producer failure is reported to the video sink as a fatal error
// and returned.
func (r *Router) Run(ctx context.Context, d Driver) error {
	msgs := d.Messages()
	for {
		var msg Message
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case msg, ok = <-msgs:
		}
		if !ok {
			log.Info("Producer closed")
			if r.plugged.Swap(false) {
				r.audio.StopAll()
			}
			return nil
		}
		if err := r.route(msg); err != nil {
			return err
		}
	}
}

func (r *Router) route(msg Message) error {
	switch msg.Kind {
	case KindVideo:
		r.videoUnits.Add(1)
		r.video.Submit(msg.Video.Data)

	case KindAudio:
		r.audioMsgs.Add(1)
		if err := r.audio.Feed(msg.Audio); err != nil {
			r.rejected.Add(1)
			log.Debug("Audio message rejected: %v", err)
		}

	case KindCommand:
		r.commands.Add(1)
		log.Debug("Producer command %q", msg.Command)
		if r.OnCommand != nil {
			r.OnCommand(msg.Command)
		}

	case KindPlugged:
		r.plugged.Store(true)
		log.Info("Phone connected")

	case KindUnplugged:
		r.plugged.Store(false)
		log.Info("Phone disconnected")
		r.audio.StopAll()

	case KindFailure:
		err := msg.Err
		if err == nil {
			err = errors.New("unspecified failure")
		}
		err = media.Fatal("producer", err)
		r.audio.StopAll()
		r.video.Fail(err)
		return err

	default:
		log.Warn("Ignoring %v message", msg.Kind)
	}
	return nil
}

func (r *Router) Stats() RouterStats {
	return RouterStats{
		Video:    r.videoUnits.Load(),
		Audio:    r.audioMsgs.Load(),
		Commands: r.commands.Load(),
		Rejected: r.rejected.Load(),
		Plugged:  r.plugged.Load(),
	}
}
