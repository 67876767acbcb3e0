package config

import (
	"net"

	"github.com/lanikai/alohacar/internal/logging"
	"github.com/lanikai/alohacar/internal/media"
	"github.com/lanikai/alohacar/internal/render"
	"github.com/pkg/errors"
)

// Validate returns an error describing the first invalid value found.
func (c *Config) Validate() error {
	if err := c.Video.Validate(); err != nil {
		return errors.Wrap(err, "video config")
	}
	if err := c.Audio.Validate(); err != nil {
		return errors.Wrap(err, "audio config")
	}
	if c.Monitor.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Monitor.Listen); err != nil {
			return errors.Wrap(err, "monitor config: listen")
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log config")
	}
	return nil
}

func (v *VideoConfig) Validate() error {
	if _, err := render.ParseKind(v.Backend); err != nil {
		return err
	}
	if _, err := media.ParseHardwarePreference(v.HardwareAcceleration); err != nil {
		return err
	}
	if v.RefreshHz < 1 || v.RefreshHz > 240 {
		return errors.Errorf("refresh_hz must be between 1 and 240, got %v", v.RefreshHz)
	}
	if v.FPS <= 0 || v.FPS > 240 {
		return errors.Errorf("fps must be between 0 and 240, got %v", v.FPS)
	}
	if v.EventBuffer < 1 {
		return errors.Errorf("event_buffer must be positive, got %d", v.EventBuffer)
	}
	if v.SPSCacheSize < 1 {
		return errors.Errorf("sps_cache_size must be positive, got %d", v.SPSCacheSize)
	}
	if v.ReportInterval < 0 {
		return errors.Errorf("report_interval must not be negative, got %v", v.ReportInterval)
	}
	if v.Window.Width <= 0 || v.Window.Height <= 0 {
		return errors.Errorf("window size must be positive, got %dx%d", v.Window.Width, v.Window.Height)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if a.QuantumFrames < 1 {
		return errors.Errorf("quantum_frames must be positive, got %d", a.QuantumFrames)
	}
	// Room for at least one quantum of the widest stereo format.
	if a.RingCapacity < 2*a.QuantumFrames {
		return errors.Errorf("ring_capacity must be at least %d, got %d", 2*a.QuantumFrames, a.RingCapacity)
	}
	if a.MediaVolume < 0 || a.MediaVolume > 1 {
		return errors.Errorf("media_volume must be between 0 and 1, got %v", a.MediaVolume)
	}
	if a.NavigationVolume < 0 || a.NavigationVolume > 1 {
		return errors.Errorf("navigation_volume must be between 0 and 1, got %v", a.NavigationVolume)
	}
	if a.CaptureRate < 8000 || a.CaptureRate > 48000 {
		return errors.Errorf("capture_rate must be between 8000 and 48000, got %d", a.CaptureRate)
	}
	if a.CaptureChannels != 1 && a.CaptureChannels != 2 {
		return errors.Errorf("capture_channels must be 1 or 2, got %d", a.CaptureChannels)
	}
	return nil
}
