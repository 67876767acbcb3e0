// Package config loads the alohacar YAML configuration file.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/lanikai/alohacar/internal/audio"
	"github.com/lanikai/alohacar/internal/media"
	"github.com/lanikai/alohacar/internal/pipeline"
	"github.com/lanikai/alohacar/internal/render"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given, if it exists.
const DefaultPath = "/etc/alohacar/alohacar.yaml"

type Config struct {
	Video   VideoConfig   `yaml:"video"`
	Audio   AudioConfig   `yaml:"audio"`
	Monitor MonitorConfig `yaml:"monitor"`
	Log     LogConfig     `yaml:"log"`
}

type VideoConfig struct {
	Backend              string  `yaml:"backend"`    // webgl, webgl2, webgpu or null
	RefreshHz            float64 `yaml:"refresh_hz"` // display loop rate
	FPS                  float64 `yaml:"fps"`        // pacing for raw .h264 files
	HardwareAcceleration string  `yaml:"hardware_acceleration"`
	DecoderLibrary       string  `yaml:"decoder_library"` // path to libopenh264
	EventBuffer          int     `yaml:"event_buffer"`
	SPSCacheSize         int     `yaml:"sps_cache_size"`

	// Zero disables the periodic decoder statistics log.
	ReportInterval time.Duration `yaml:"report_interval"`

	Window WindowConfig `yaml:"window"`
}

type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type AudioConfig struct {
	Device        string `yaml:"device"`         // ALSA playback device, or a file path
	CaptureDevice string `yaml:"capture_device"` // empty disables the microphone

	RingCapacity  int `yaml:"ring_capacity"`
	QuantumFrames int `yaml:"quantum_frames"`

	MediaVolume      float32 `yaml:"media_volume"`
	NavigationVolume float32 `yaml:"navigation_volume"`

	CaptureRate     int `yaml:"capture_rate"`
	CaptureChannels int `yaml:"capture_channels"`
}

type MonitorConfig struct {
	Listen string `yaml:"listen"` // empty disables the monitor
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Audio: AudioConfig{
			MediaVolume:      audio.DefaultMediaVolume,
			NavigationVolume: audio.DefaultNavigationVolume,
		},
	}
	cfg.setDefaults()
	return cfg
}

// Load reads and validates configuration from a YAML file. Unknown fields
// are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	// Volumes default to their standard values only when absent, since zero
	// is a valid volume.
	cfg := &Config{
		Audio: AudioConfig{
			MediaVolume:      audio.DefaultMediaVolume,
			NavigationVolume: audio.DefaultNavigationVolume,
		},
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode config")
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	v := &c.Video
	if v.Backend == "" {
		v.Backend = render.KindGLES2.String()
	}
	if v.RefreshHz == 0 {
		v.RefreshHz = pipeline.DefaultRefreshRate
	}
	if v.FPS == 0 {
		v.FPS = 30
	}
	if v.HardwareAcceleration == "" {
		v.HardwareAcceleration = media.NoPreference.String()
	}
	if v.EventBuffer == 0 {
		v.EventBuffer = pipeline.DefaultEventBuffer
	}
	if v.SPSCacheSize == 0 {
		v.SPSCacheSize = pipeline.DefaultSPSCacheSize
	}
	if v.Window.Title == "" {
		v.Window.Title = "alohacar"
	}
	if v.Window.Width == 0 {
		v.Window.Width = 800
	}
	if v.Window.Height == 0 {
		v.Window.Height = 480
	}

	a := &c.Audio
	if a.Device == "" {
		a.Device = "default"
	}
	if a.RingCapacity == 0 {
		a.RingCapacity = audio.DefaultRingCapacity
	}
	if a.QuantumFrames == 0 {
		a.QuantumFrames = audio.DefaultQuantumFrames
	}
	if a.CaptureRate == 0 {
		a.CaptureRate = audio.DefaultCaptureRate
	}
	if a.CaptureChannels == 0 {
		a.CaptureChannels = audio.DefaultCaptureChannels
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// PipelineConfig returns the video session settings.
func (c *Config) PipelineConfig() pipeline.Config {
	hw, _ := media.ParseHardwarePreference(c.Video.HardwareAcceleration)
	return pipeline.Config{
		HardwareAcceleration: hw,
		EventBuffer:          c.Video.EventBuffer,
		SPSCacheSize:         c.Video.SPSCacheSize,
		ReportInterval:       c.Video.ReportInterval,
	}
}

// PlayerConfig returns the audio player settings.
func (c *Config) PlayerConfig() audio.Config {
	return audio.Config{
		RingCapacity:     c.Audio.RingCapacity,
		QuantumFrames:    c.Audio.QuantumFrames,
		MediaVolume:      c.Audio.MediaVolume,
		NavigationVolume: c.Audio.NavigationVolume,
	}
}

func (c *Config) RecorderConfig() audio.RecorderConfig {
	return audio.RecorderConfig{
		Rate:     c.Audio.CaptureRate,
		Channels: c.Audio.CaptureChannels,
	}
}

func (c *Config) Surface() render.Surface {
	return render.Surface{
		Title:  c.Video.Window.Title,
		Width:  c.Video.Window.Width,
		Height: c.Video.Window.Height,
	}
}
