//////////////////////////////////////////////////////////////////////////////
//
// File producer
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

// Package source stands in for a connected phone: it replays an H.264 file
// and an optional test tone through the dongle message interface.
package source

import (
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lanikai/alohacar/internal/audio"
	"github.com/lanikai/alohacar/internal/dongle"
	"github.com/lanikai/alohacar/internal/logging"
	"github.com/pkg/errors"
)

var log = logging.DefaultLogger.WithTag("source")

const (
	DefaultFPS    = 30
	DefaultToneHz = 440

	// Producer decode type for 48 kHz stereo.
	toneDecodeType = 4
	toneInterval   = 20 * time.Millisecond

	// Pause before a looped file starts over.
	loopDelay = 50 * time.Millisecond
)

type Options struct {
	// H.264 file: MP4, or a raw Annex B stream. Empty for audio only.
	Path string

	// Frame rate for raw streams, which carry no timestamps.
	FPS float64

	// Start over at the end of the file instead of unplugging.
	Loop bool

	// Play a test tone on the media channel.
	Tone   bool
	ToneHz float64
}

// Producer replays files as a dongle.Driver.
type Producer struct {
	opts  Options
	video videoReader

	msgs     chan dongle.Message
	quit     chan struct{}
	videoEnd chan struct{}
	keyframe chan struct{}
	wg       sync.WaitGroup

	closeOnce  sync.Once
	micSamples atomic.Uint64
}

type videoReader interface {
	next() (au []byte, pts time.Duration, err error)
	rewind() error
	size() (width, height int)
	Close() error
}

func openVideo(path string, fps float64) (videoReader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v", ".mov":
		return openMP4(path)
	default:
		return openAnnexB(path, fps)
	}
}

// Open starts replaying. The first message is always KindPlugged.
func Open(opts Options) (*Producer, error) {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.ToneHz <= 0 {
		opts.ToneHz = DefaultToneHz
	}
	if opts.Path == "" && !opts.Tone {
		return nil, errors.New("nothing to play")
	}

	p := &Producer{
		opts:     opts,
		msgs:     make(chan dongle.Message, 16),
		quit:     make(chan struct{}),
		videoEnd: make(chan struct{}),
		keyframe: make(chan struct{}, 1),
	}
	if opts.Path != "" {
		v, err := openVideo(opts.Path, opts.FPS)
		if err != nil {
			return nil, err
		}
		p.video = v
	}

	p.msgs <- dongle.Message{Kind: dongle.KindPlugged}

	if p.video != nil {
		p.wg.Add(1)
		go p.videoLoop()
	} else {
		close(p.videoEnd)
	}
	if opts.Tone {
		p.wg.Add(1)
		go p.toneLoop()
	}
	go func() {
		p.wg.Wait()
		close(p.msgs)
	}()
	return p, nil
}

func (p *Producer) Messages() <-chan dongle.Message {
	return p.msgs
}

func (p *Producer) send(msg dongle.Message) bool {
	select {
	case p.msgs <- msg:
		return true
	case <-p.quit:
		return false
	}
}

// Waits until t, or returns false if the producer is closed first.
func (p *Producer) sleepUntil(t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-p.quit:
		return false
	}
}

func (p *Producer) videoLoop() {
	defer p.wg.Done()
	defer close(p.videoEnd)
	defer p.video.Close()

	// Wall clock time of pts 0.
	var start time.Time

	for {
		select {
		case <-p.quit:
			return
		case <-p.keyframe:
			// Both readers start with a keyframe.
			if err := p.video.rewind(); err != nil {
				log.Warn("Rewind for keyframe: %v", err)
			}
			start = time.Time{}
		default:
		}

		au, pts, err := p.video.next()
		if err == io.EOF {
			if !p.opts.Loop {
				log.Info("End of %s", p.opts.Path)
				p.send(dongle.Message{Kind: dongle.KindUnplugged})
				return
			}
			if err := p.video.rewind(); err != nil {
				p.send(dongle.Message{Kind: dongle.KindFailure, Err: err})
				return
			}
			start = time.Now().Add(loopDelay)
			continue
		} else if err != nil {
			log.Error("Error reading %s: %v", p.opts.Path, err)
			p.send(dongle.Message{Kind: dongle.KindFailure, Err: errors.Wrapf(err, "read %s", p.opts.Path)})
			return
		}

		if start.IsZero() {
			start = time.Now().Add(-pts)
		} else if !p.sleepUntil(start.Add(pts)) {
			return
		}

		w, h := p.video.size()
		if !p.send(dongle.Message{
			Kind:  dongle.KindVideo,
			Video: dongle.VideoData{Width: w, Height: h, Data: au},
		}) {
			return
		}
	}
}

func (p *Producer) toneLoop() {
	defer p.wg.Done()

	format, _ := audio.DecodeFormat(toneDecodeType)
	tone := &Tone{
		Frequency: p.opts.ToneHz,
		Amplitude: 0.2,
		Rate:      format.Rate,
		Channels:  format.Channels,
	}
	samples := format.Rate * format.Channels * int(toneInterval) / int(time.Second)

	message := func(cmd audio.Command, pcm []int16) dongle.Message {
		return dongle.Message{
			Kind: dongle.KindAudio,
			Audio: audio.Message{
				DecodeType: toneDecodeType,
				AudioType:  audio.AudioTypeMedia,
				Command:    cmd,
				Samples:    pcm,
			},
		}
	}

	if !p.send(message(audio.CommandMediaStart, nil)) {
		return
	}

	// Without video the tone plays until Close.
	videoEnd := p.videoEnd
	if p.video == nil {
		videoEnd = nil
	}

	ticker := time.NewTicker(toneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.quit:
			return
		case <-videoEnd:
			p.send(message(audio.CommandMediaStop, nil))
			return
		case <-ticker.C:
			pcm := make([]int16, samples)
			tone.Fill(pcm)
			if !p.send(message(audio.CommandNone, pcm)) {
				return
			}
		}
	}
}

// SendAudio accepts microphone audio. There is no phone to hear it, so it is
// only counted.
func (p *Producer) SendAudio(samples []int16) error {
	if p.micSamples.Add(uint64(len(samples))) == uint64(len(samples)) {
		log.Info("Receiving microphone audio")
	}
	return nil
}

// MicSamples returns the number of microphone samples received.
func (p *Producer) MicSamples() uint64 {
	return p.micSamples.Load()
}

// RequestKeyFrame restarts the video from the top of the file.
func (p *Producer) RequestKeyFrame() error {
	select {
	case p.keyframe <- struct{}{}:
	default:
	}
	return nil
}

func (p *Producer) Close() error {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
	return nil
}

// ReadAccessUnits returns up to n access units from the start of an H.264
// file, framed as Open would deliver them.
func ReadAccessUnits(path string, n int) ([][]byte, error) {
	v, err := openVideo(path, DefaultFPS)
	if err != nil {
		return nil, err
	}
	defer v.Close()

	var units [][]byte
	for len(units) < n {
		au, _, err := v.next()
		if err == io.EOF {
			break
		} else if err != nil {
			return units, errors.Wrapf(err, "read %s", path)
		}
		units = append(units, au)
	}
	return units, nil
}
