//////////////////////////////////////////////////////////////////////////////
//
// Producer messages
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

// Package dongle defines the boundary to the phone-projection producer and
// routes its messages to the video pipeline and the audio players.
package dongle

import (
	"fmt"

	"github.com/lanikai/alohacar/internal/audio"
	"github.com/lanikai/alohacar/internal/logging"
)

var log = logging.DefaultLogger.WithTag("dongle")

type Kind int

const (
	KindVideo Kind = iota + 1
	KindAudio
	KindCommand
	KindPlugged
	KindUnplugged
	KindFailure
)

var kindNames = map[Kind]string{
	KindVideo:     "video",
	KindAudio:     "audio",
	KindCommand:   "command",
	KindPlugged:   "plugged",
	KindUnplugged: "unplugged",
	KindFailure:   "failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind%d", int(k))
}

// VideoData is one H.264 access unit, in Annex B or length prefixed framing.
type VideoData struct {
	Width  int
	Height int
	Data   []byte
}

// Message is one unit from the producer. Which field is meaningful depends
// on Kind.
type Message struct {
	Kind Kind

	Video VideoData
	Audio audio.Message

	// Producer command name, e.g. "requestHostUI".
	Command string

	// Reason for a KindFailure message.
	Err error
}

// Driver is the producer: a connected dongle, or a stand-in that replays
// files. The Messages channel is closed when the producer goes away.
type Driver interface {
	Messages() <-chan Message

	// SendAudio forwards microphone samples to the producer.
	SendAudio(samples []int16) error

	// RequestKeyFrame asks the producer to send a fresh keyframe.
	RequestKeyFrame() error

	Close() error
}
