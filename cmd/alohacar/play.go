package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lanikai/alohacar/internal/audio"
	"github.com/lanikai/alohacar/internal/dongle"
	"github.com/lanikai/alohacar/internal/media"
	"github.com/lanikai/alohacar/internal/media/alsa"
	"github.com/lanikai/alohacar/internal/media/openh264"
	"github.com/lanikai/alohacar/internal/media/source"
	"github.com/lanikai/alohacar/internal/monitor"
	"github.com/lanikai/alohacar/internal/pipeline"
	"github.com/lanikai/alohacar/internal/render"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var (
	flagLoop           bool
	flagTone           bool
	flagToneHz         float64
	flagFPS            float64
	flagBackend        string
	flagAudioDevice    string
	flagCaptureDevice  string
	flagMonitor        string
	flagDecoderLibrary string
)

func addPlayFlags(fs *flag.FlagSet) {
	fs.BoolVar(&flagLoop, "loop", false, "Start over at the end of the file")
	fs.BoolVarP(&flagTone, "tone", "t", false, "Play a test tone on the media channel")
	fs.Float64Var(&flagToneHz, "tone-hz", source.DefaultToneHz, "Test tone frequency")
	fs.Float64Var(&flagFPS, "fps", 0, "Frame rate of raw .h264 files (default from config)")
	fs.StringVarP(&flagBackend, "backend", "b", "", "Renderer: webgl, webgl2, webgpu or null")
	fs.StringVar(&flagAudioDevice, "audio-device", "", `Playback device: ALSA name, "file:DIR" or "none"`)
	fs.StringVar(&flagCaptureDevice, "capture-device", "", "Microphone ALSA device (default: none)")
	fs.StringVarP(&flagMonitor, "monitor", "m", "", "Serve events and stats on this address, e.g. :8090")
	fs.StringVar(&flagDecoderLibrary, "decoder-library", "", "Path to libopenh264")
}

var playCmd = &cobra.Command{
	Use:   "play [FILE]",
	Short: "Replay an H.264 file through the pipeline",
	Long: `Replay an H.264 file as if it came from a connected phone. FILE is an MP4
file or a raw Annex B elementary stream. Without FILE, --tone plays a test
tone only.

Examples:
  alohacar play drive.mp4
  alohacar play --loop --tone -b null --monitor :8090 dash.h264`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyPlayFlags(cmd.Flags())
		opts := source.Options{
			FPS:    cfg.Video.FPS,
			Loop:   flagLoop,
			Tone:   flagTone,
			ToneHz: flagToneHz,
		}
		if len(args) > 0 {
			opts.Path = args[0]
		}
		return play(opts)
	},
}

func init() {
	addPlayFlags(playCmd.Flags())
}

// Command line values override the configuration file.
func applyPlayFlags(fs *flag.FlagSet) {
	if fs.Changed("fps") {
		cfg.Video.FPS = flagFPS
	}
	if fs.Changed("backend") {
		cfg.Video.Backend = flagBackend
	}
	if fs.Changed("audio-device") {
		cfg.Audio.Device = flagAudioDevice
	}
	if fs.Changed("capture-device") {
		cfg.Audio.CaptureDevice = flagCaptureDevice
	}
	if fs.Changed("monitor") {
		cfg.Monitor.Listen = flagMonitor
	}
	if fs.Changed("decoder-library") {
		cfg.Video.DecoderLibrary = flagDecoderLibrary
	}
}

func play(opts source.Options) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	kind, err := render.ParseKind(cfg.Video.Backend)
	if err != nil {
		return err
	}
	backend, err := render.Open(kind, cfg.Surface())
	if err != nil {
		return err
	}

	factory := openh264.NewDecoderFactory(cfg.Video.DecoderLibrary, media.DefaultDecodeQueueDepth)
	session, err := pipeline.New(cfg.PipelineConfig(), backend, factory)
	if err != nil {
		backend.Close()
		return err
	}
	log.Info("Session %s using %v renderer", session.ID(), kind)

	producer, err := source.Open(opts)
	if err != nil {
		session.Stop()
		backend.Close()
		return err
	}
	defer producer.Close()

	var players *audio.Registry
	players = audio.NewRegistry(cfg.PlayerConfig(), openEndpoint(cfg.Audio.Device, func(key audio.Key, err error) {
		players.OutputLost(key, err)
	}))
	players.OnFatal(session.Fail)
	defer players.StopAll()

	if dev := cfg.Audio.CaptureDevice; dev != "" {
		mic := audio.NewRecorder(cfg.RecorderConfig(), func() (media.AudioSource, error) {
			return alsa.NewSource(dev)
		}, producer.SendAudio)
		players.SetMicrophone(mic)
		defer mic.Stop()
	}

	router := dongle.NewRouter(session, players)
	hub := monitor.NewHub()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Nothing more to show once the producer goes away.
		defer session.Stop()
		return router.Run(gctx, producer)
	})
	g.Go(func() error {
		hub.Forward(session.Events())
		return nil
	})

	if addr := cfg.Monitor.Listen; addr != "" {
		server := monitor.NewServer(addr, hub, func() interface{} {
			return map[string]interface{}{
				"video":   session.Stats(),
				"audio":   players.Stats(),
				"router":  router.Stats(),
				"missed":  hub.Missed(),
				"session": session.ID().String(),
			}
		})
		g.Go(server.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			return server.Shutdown(shutdownCtx)
		})
	}

	onWindow := func(ev render.WindowEvent) {
		if ev == render.WindowResized {
			producer.RequestKeyFrame()
		}
	}
	err = pipeline.RunDisplay(gctx, session, cfg.Video.RefreshHz, onWindow)

	cancel()
	session.Stop()
	hub.Close()
	if gerr := g.Wait(); err == nil {
		err = gerr
	}

	s := session.Stats()
	log.Info("Presented %d of %d decoded frames (%d dropped)", s.Presented, s.Decoded, s.Dropped)
	return err
}

// Opens output streams on an ALSA device, into raw PCM files in a directory
// ("file:DIR"), or nowhere ("none"). lost is called if a stream's device
// goes away while playing.
func openEndpoint(device string, lost func(audio.Key, error)) audio.EndpointFactory {
	return func(key audio.Key, quantumFrames int) (audio.Endpoint, error) {
		var sink media.PlanarAudioSink
		var err error
		switch {
		case device == "none":
			sink = media.NewWriterAudioSink(nopCloser{io.Discard})
		case strings.HasPrefix(device, "file:"):
			name := fmt.Sprintf("%v-%d-%d.pcm", key.Type, key.Rate, key.Channels)
			sink, err = media.NewFileAudioSink(filepath.Join(strings.TrimPrefix(device, "file:"), name))
		default:
			sink, err = alsa.NewSink(device)
		}
		if err != nil {
			return nil, err
		}

		ep, err := audio.NewSinkEndpoint(sink, key, quantumFrames, func(err error) {
			lost(key, err)
		})
		if err != nil {
			sink.Close()
			return nil, err
		}
		return ep, nil
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
