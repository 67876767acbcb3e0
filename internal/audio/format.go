package audio

import (
	"fmt"
)

// AudioType is the role of a stream as labelled by the producer.
type AudioType uint8

const (
	AudioTypeMedia      AudioType = 1
	AudioTypeNavigation AudioType = 2
)

func (t AudioType) String() string {
	switch t {
	case AudioTypeMedia:
		return "media"
	case AudioTypeNavigation:
		return "navigation"
	default:
		return fmt.Sprintf("type%d", uint8(t))
	}
}

// Format is an interleaved signed 16-bit PCM format.
type Format struct {
	Rate     int
	Channels int
}

// Formats indexed by the producer's decode type.
var decodeTypes = map[uint8]Format{
	1: {44100, 2},
	2: {44100, 2},
	3: {8000, 1},
	4: {48000, 2},
	5: {16000, 1},
	6: {24000, 1},
	7: {16000, 2},
}

// DecodeFormat maps a producer decode type to its PCM format.
func DecodeFormat(decodeType uint8) (Format, bool) {
	f, ok := decodeTypes[decodeType]
	return f, ok
}

// Key identifies one player: one ring, one gain, one output stream.
type Key struct {
	Rate     int
	Channels int
	Type     AudioType
}

func (k Key) Format() Format {
	return Format{k.Rate, k.Channels}
}

func (k Key) String() string {
	return fmt.Sprintf("%dHz/%dch/%v", k.Rate, k.Channels, k.Type)
}

// Command is a stream lifecycle notification from the producer.
type Command uint8

const (
	CommandNone           Command = 0
	CommandOutputStart    Command = 1
	CommandOutputStop     Command = 2
	CommandInputConfig    Command = 3
	CommandPhonecallStart Command = 4
	CommandPhonecallStop  Command = 5
	CommandNaviStart      Command = 6
	CommandNaviStop       Command = 7
	CommandSiriStart      Command = 8
	CommandSiriStop       Command = 9
	CommandMediaStart     Command = 10
	CommandMediaStop      Command = 11
	CommandAlertStart     Command = 12
	CommandAlertStop      Command = 13
)

var commandNames = map[Command]string{
	CommandOutputStart:    "output-start",
	CommandOutputStop:     "output-stop",
	CommandInputConfig:    "input-config",
	CommandPhonecallStart: "phonecall-start",
	CommandPhonecallStop:  "phonecall-stop",
	CommandNaviStart:      "navigation-start",
	CommandNaviStop:       "navigation-stop",
	CommandSiriStart:      "siri-start",
	CommandSiriStop:       "siri-stop",
	CommandMediaStart:     "media-start",
	CommandMediaStop:      "media-stop",
	CommandAlertStart:     "alert-start",
	CommandAlertStop:      "alert-stop",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("command%d", uint8(c))
}
