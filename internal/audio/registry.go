package audio

import (
	"sort"
	"sync"
	"time"

	"github.com/lanikai/alohacar/internal/logging"
	"github.com/lanikai/alohacar/internal/media"
	errors "golang.org/x/xerrors"
)

var log = logging.DefaultLogger.WithTag("audio")

const (
	DefaultRingCapacity     = DefaultQuantumFrames * 2 * 128
	DefaultMediaVolume      = 1.0
	DefaultNavigationVolume = 0.5
)

type Config struct {
	// Samples (not frames) per player ring.
	RingCapacity int

	QuantumFrames int

	// Gains applied when media or navigation playback starts.
	MediaVolume      float32
	NavigationVolume float32
}

func (c *Config) setDefaults() {
	if c.RingCapacity <= 0 {
		c.RingCapacity = DefaultRingCapacity
	}
	if c.QuantumFrames <= 0 {
		c.QuantumFrames = DefaultQuantumFrames
	}
}

// DefaultConfig returns the standard player settings.
func DefaultConfig() Config {
	return Config{
		RingCapacity:     DefaultRingCapacity,
		QuantumFrames:    DefaultQuantumFrames,
		MediaVolume:      DefaultMediaVolume,
		NavigationVolume: DefaultNavigationVolume,
	}
}

// Message is one audio message from the producer. Exactly one of Command,
// HasVolume or Samples is meaningful.
type Message struct {
	DecodeType uint8
	AudioType  AudioType

	Command Command

	HasVolume      bool
	Volume         float32
	VolumeDuration time.Duration

	// Interleaved PCM in the decode type's format.
	Samples []int16
}

// Microphone is the subset of Recorder that the registry drives.
type Microphone interface {
	Start() error
	Stop() error
}

// Registry owns one Player per Key and routes producer messages to them.
// Feed, GetOrCreate, SetVolume and StopAll may be called from any goroutine;
// they are serialized internally.
type Registry struct {
	cfg  Config
	open EndpointFactory

	mu      sync.Mutex
	players map[Key]*Player
	mic     Microphone
	onFatal func(error)
	wg      sync.WaitGroup
}

func NewRegistry(cfg Config, open EndpointFactory) *Registry {
	cfg.setDefaults()
	return &Registry{
		cfg:     cfg,
		open:    open,
		players: make(map[Key]*Player),
	}
}

// OnFatal sets a callback for output devices that fail to open or are lost.
func (r *Registry) OnFatal(fn func(error)) {
	r.mu.Lock()
	r.onFatal = fn
	r.mu.Unlock()
}

// OutputLost reports that the endpoint for key stopped accepting audio. The
// player stays registered but silent, and the loss goes to the fatal
// callback. Safe to call from a render thread.
func (r *Registry) OutputLost(key Key, err error) {
	log.Error("Audio output %v lost: %v", key, err)
	r.mu.Lock()
	onFatal := r.onFatal
	r.mu.Unlock()
	if onFatal != nil {
		go onFatal(media.Fatal("audio output", err))
	}
}

// SetMicrophone attaches the capture path started and stopped by
// siri/phonecall commands.
func (r *Registry) SetMicrophone(m Microphone) {
	r.mu.Lock()
	r.mic = m
	r.mu.Unlock()
}

// GetOrCreate returns the player for key, creating it and starting its
// output endpoint if needed.
func (r *Registry) GetOrCreate(key Key) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreate(key)
}

func (r *Registry) getOrCreate(key Key) (*Player, error) {
	if p, ok := r.players[key]; ok {
		return p, nil
	}

	gain := r.cfg.MediaVolume
	if key.Type == AudioTypeNavigation {
		gain = r.cfg.NavigationVolume
	}
	p, err := newPlayer(key, r.cfg, gain)
	if err != nil {
		return nil, err
	}
	r.players[key] = p
	log.Info("New audio player %v", key)

	onFatal := r.onFatal
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := p.start(r.open); err != nil && !errors.Is(err, ErrClosed) {
			log.Error("Audio player %v failed: %v", key, err)
			if onFatal != nil {
				// Not under wg, so the callback may call StopAll.
				go onFatal(err)
			}
		}
	}()
	return p, nil
}

// Feed routes one producer message.
func (r *Registry) Feed(msg Message) error {
	format, ok := DecodeFormat(msg.DecodeType)
	if !ok {
		return errors.Errorf("%w: %d", ErrUnknownDecodeType, msg.DecodeType)
	}
	key := Key{format.Rate, format.Channels, msg.AudioType}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case msg.Command != CommandNone:
		return r.command(key, msg.Command)

	case msg.HasVolume:
		p, err := r.getOrCreate(key)
		if err != nil {
			return err
		}
		p.explicitVolume.Store(true)
		p.SetVolume(msg.Volume, msg.VolumeDuration)
		log.Debug("Player %v volume %.2f over %v", key, msg.Volume, msg.VolumeDuration)

	case len(msg.Samples) > 0:
		samples := msg.Samples
		if extra := len(samples) % format.Channels; extra != 0 {
			// A partial frame would shift every later sample into the
			// wrong channel.
			log.Debug("Player %v: dropping %d samples of a partial frame", key, extra)
			samples = samples[:len(samples)-extra]
			if len(samples) == 0 {
				return nil
			}
		}
		p, err := r.getOrCreate(key)
		if err != nil {
			return err
		}
		p.Feed(samples)
	}
	return nil
}

func (r *Registry) command(key Key, cmd Command) error {
	log.Debug("Audio command %v for %v", cmd, key)

	switch cmd {
	case CommandNaviStart:
		return r.startVolume(key, r.cfg.NavigationVolume)

	case CommandMediaStart, CommandOutputStart:
		return r.startVolume(key, r.cfg.MediaVolume)

	case CommandNaviStop, CommandMediaStop, CommandOutputStop:
		if p, ok := r.players[key]; ok {
			p.explicitVolume.Store(false)
		}

	case CommandSiriStart, CommandPhonecallStart:
		if r.mic != nil {
			if err := r.mic.Start(); err != nil {
				return errors.Errorf("audio: start recording: %w", err)
			}
		}

	case CommandSiriStop, CommandPhonecallStop:
		if r.mic != nil {
			if err := r.mic.Stop(); err != nil {
				return errors.Errorf("audio: stop recording: %w", err)
			}
		}
	}
	return nil
}

// Apply a stream's default volume, unless the producer already set one.
func (r *Registry) startVolume(key Key, volume float32) error {
	p, err := r.getOrCreate(key)
	if err != nil {
		return err
	}
	if !p.explicitVolume.Load() {
		p.SetVolume(volume, 0)
	}
	return nil
}

// SetVolume sets the gain of the player for key, creating it if needed.
func (r *Registry) SetVolume(key Key, volume float32, ramp time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.getOrCreate(key)
	if err != nil {
		return err
	}
	p.SetVolume(volume, ramp)
	return nil
}

// Keys lists the live players.
func (r *Registry) Keys() []Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]Key, 0, len(r.players))
	for k := range r.players {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Stats returns a snapshot of every player.
func (r *Registry) Stats() []PlayerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats []PlayerStats
	for _, p := range r.players {
		stats = append(stats, p.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Key.String() < stats[j].Key.String() })
	return stats
}

// StopAll closes every player and the microphone. The registry remains
// usable; new messages create new players.
func (r *Registry) StopAll() {
	r.mu.Lock()
	players := r.players
	r.players = make(map[Key]*Player)
	mic := r.mic
	for key, p := range players {
		if err := p.Close(); err != nil {
			log.Warn("Closing player %v: %v", key, err)
		}
	}
	r.mu.Unlock()

	if mic != nil {
		if err := mic.Stop(); err != nil {
			log.Warn("Stopping microphone: %v", err)
		}
	}
	r.wg.Wait()
	if len(players) > 0 {
		log.Info("Stopped %d audio players", len(players))
	}
}
