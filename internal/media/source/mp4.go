package source

import (
	"os"
	"time"

	"github.com/nareix/joy4/av"
	"github.com/nareix/joy4/codec/h264parser"
	"github.com/nareix/joy4/format/mp4"
	"github.com/nareix/joy4/utils/bits/pio"
	"github.com/pkg/errors"
)

// Reads the H.264 track of an MP4 file. Samples are already length prefixed
// (4-byte lengths); keyframes get the parameter sets prepended in the same
// framing.
type mp4Reader struct {
	file    *os.File
	demuxer *mp4.Demuxer

	idx   int8
	codec h264parser.CodecData
}

func openMP4(filename string) (*mp4Reader, error) {
	log.Info("Opening file %s", filename)
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	demuxer := mp4.NewDemuxer(file)
	codecs, err := demuxer.Streams()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "read %s", filename)
	}

	for i, codec := range codecs {
		if codec.Type() != av.H264 {
			log.Debug("Skipping %v stream", codec.Type())
			continue
		}
		cd := codec.(h264parser.CodecData)
		log.Info("%v stream: %dx%d", cd.Type(), cd.Width(), cd.Height())
		return &mp4Reader{
			file:    file,
			demuxer: demuxer,
			idx:     int8(i),
			codec:   cd,
		}, nil
	}

	file.Close()
	return nil, errors.Errorf("%s: no H.264 video stream", filename)
}

func (r *mp4Reader) next() ([]byte, time.Duration, error) {
	for {
		pkt, err := r.demuxer.ReadPacket()
		if err != nil {
			return nil, 0, err
		}
		if pkt.Idx != r.idx || len(pkt.Data) == 0 {
			continue
		}
		if !pkt.IsKeyFrame {
			return pkt.Data, pkt.Time, nil
		}

		sps, pps := r.codec.SPS(), r.codec.PPS()
		au := make([]byte, 8+len(sps)+len(pps), 8+len(sps)+len(pps)+len(pkt.Data))
		pio.PutU32BE(au, uint32(len(sps)))
		copy(au[4:], sps)
		pio.PutU32BE(au[4+len(sps):], uint32(len(pps)))
		copy(au[8+len(sps):], pps)
		au = append(au, skipSEI(pkt.Data)...)
		return au, pkt.Time, nil
	}
}

func (r *mp4Reader) rewind() error {
	return r.demuxer.SeekToTime(0)
}

func (r *mp4Reader) size() (int, int) {
	return r.codec.Width(), r.codec.Height()
}

func (r *mp4Reader) Close() error {
	return r.file.Close()
}

// Drops a leading SEI NALU from a length-prefixed sample.
func skipSEI(data []byte) []byte {
	if len(data) < 5 || data[4]&0x1f != 0x06 {
		return data
	}
	n := int(pio.U32BE(data))
	if 4+n >= len(data) {
		return data
	}
	log.Debug("Skipping %d byte SEI", n)
	return data[4+n:]
}
