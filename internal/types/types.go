package types

import (
	"runtime"
	"time"
)

// KeyCombo interface for types that can be printed as a key combination
type KeyCombo interface {
	HasCtrl() bool
	HasShift() bool
	HasAlt() bool
	HasSuper() bool
	GetKey() string
}

type KeyBinding struct {
	Key   string `yaml:"key"`   // The actual key (e.g., "r", "f9", "space")
	Ctrl  bool   `yaml:"ctrl"`  // Control key modifier
	Shift bool   `yaml:"shift"` // Shift key modifier
	Alt   bool   `yaml:"alt"`   // Alt key modifier
	Super bool   `yaml:"super"` // Super (Windows/Command) key modifier
}

// Implement KeyCombo for KeyBinding
func (kb KeyBinding) HasCtrl() bool  { return kb.Ctrl }
func (kb KeyBinding) HasShift() bool { return kb.Shift }
func (kb KeyBinding) HasAlt() bool   { return kb.Alt }
func (kb KeyBinding) HasSuper() bool { return kb.Super }
func (kb KeyBinding) GetKey() string { return kb.Key }

type YdotoolConfig struct {
	SocketPath string `yaml:"socket_path"`
}

// ShortcutsConfig maps global shortcuts to reader actions
type ShortcutsConfig struct {
	Backend string     `yaml:"backend"` // "evdev" or "hook"
	Read    KeyBinding `yaml:"read"`
	Pause   KeyBinding `yaml:"pause"` // toggles pause/resume
	Stop    KeyBinding `yaml:"stop"`
}

// CaptureConfig controls how the current selection is obtained
type CaptureConfig struct {
	RestoreClipboard   *bool  `yaml:"restore_clipboard"`
	PollIntervalMs     int    `yaml:"poll_interval_ms"`
	MaxAttempts        int    `yaml:"max_attempts"`
	ClipboardTimeoutMs int    `yaml:"clipboard_timeout_ms"`
	ClipboardBackend   string `yaml:"clipboard_backend"` // "auto", "command", "native"
	Injector           string `yaml:"injector"`          // "auto", "robotgo", "xdotool", "ydotool"
	PreferPrimary      bool   `yaml:"prefer_primary"`
}

func (c CaptureConfig) Restore() bool {
	return c.RestoreClipboard == nil || *c.RestoreClipboard
}

func (c CaptureConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c CaptureConfig) ClipboardTimeout() time.Duration {
	return time.Duration(c.ClipboardTimeoutMs) * time.Millisecond
}

// PlaybackConfig controls segmentation and cancellation
type PlaybackConfig struct {
	ChunkMode     string `yaml:"chunk_mode"` // "sentence" or "clause"
	MaxChunkRunes int    `yaml:"max_chunk_runes"`
	StopGraceMs   int    `yaml:"stop_grace_ms"`
}

func (c PlaybackConfig) StopGrace() time.Duration {
	return time.Duration(c.StopGraceMs) * time.Millisecond
}

// TTSConfig holds configuration for Text-to-Speech
type TTSConfig struct {
	Backend  string            `yaml:"backend"` // "espeak", "say", "command", "openai", "realtime"
	Voice    string            `yaml:"voice"`   // empty means the backend's default voice
	Rate     float64           `yaml:"rate"`    // in the voice's native units, 0 means voice default
	Volume   int               `yaml:"volume"`  // 1-100, 0 means 100
	Espeak   TTSEspeakConfig   `yaml:"espeak"`
	Command  TTSCommandConfig  `yaml:"command"`
	OpenAI   TTSOpenAIConfig   `yaml:"openai"`
	Realtime TTSRealtimeConfig `yaml:"realtime"`
}

// TTSEspeakConfig holds espeak specific configuration
type TTSEspeakConfig struct {
	Binary string `yaml:"binary"` // empty means espeak-ng, then espeak
}

// TTSCommandConfig describes an arbitrary command line engine
type TTSCommandConfig struct {
	Template    string  `yaml:"template"` // e.g. "piper --model {voice} --length_scale {rate}"
	Voices      string  `yaml:"voices"`   // comma separated voice ids
	MinRate     float64 `yaml:"min_rate"`
	MaxRate     float64 `yaml:"max_rate"`
	DefaultRate float64 `yaml:"default_rate"`
}

// TTSOpenAIConfig holds OpenAI TTS specific configuration
type TTSOpenAIConfig struct {
	APIKey string `yaml:"api_key"` // falls back to OPENAI_API_KEY
	Model  string `yaml:"model"`   // "tts-1" or "tts-1-hd"
}

// TTSRealtimeConfig holds OpenAI Realtime API TTS specific configuration
type TTSRealtimeConfig struct {
	Model        string `yaml:"model"`
	Instructions string `yaml:"instructions"`
}

type DBusConfig struct {
	Enabled *bool `yaml:"enabled"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type NotificationsConfig struct {
	Enabled *bool `yaml:"enabled"`
}

type Config struct {
	Shortcuts     ShortcutsConfig     `yaml:"shortcuts"`
	Capture       CaptureConfig       `yaml:"capture"`
	Playback      PlaybackConfig      `yaml:"playback"`
	TTS           TTSConfig           `yaml:"tts"`
	Ydotool       YdotoolConfig       `yaml:"ydotool"`
	DBus          DBusConfig          `yaml:"dbus"`
	NATS          NATSConfig          `yaml:"nats"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func (c *Config) GetYdotoolConfig() YdotoolConfig {
	config := YdotoolConfig{
		SocketPath: c.Ydotool.SocketPath,
	}
	if config.SocketPath == "" {
		config.SocketPath = "/var/run/ydotool.sock"
	}
	return config
}

// GetShortcutsConfig returns shortcuts with defaults: ctrl+alt+r reads,
// ctrl+alt+p toggles pause, ctrl+alt+s stops
func (c *Config) GetShortcutsConfig() ShortcutsConfig {
	config := c.Shortcuts
	if config.Backend == "" {
		config.Backend = "evdev"
	}
	if config.Read.Key == "" {
		config.Read = KeyBinding{Key: "r", Ctrl: true, Alt: true}
	}
	if config.Pause.Key == "" {
		config.Pause = KeyBinding{Key: "p", Ctrl: true, Alt: true}
	}
	if config.Stop.Key == "" {
		config.Stop = KeyBinding{Key: "s", Ctrl: true, Alt: true}
	}
	return config
}

// GetCaptureConfig returns capture configuration with defaults
func (c *Config) GetCaptureConfig() CaptureConfig {
	config := c.Capture
	if config.PollIntervalMs <= 0 {
		config.PollIntervalMs = 25
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 20
	}
	if config.ClipboardTimeoutMs <= 0 {
		config.ClipboardTimeoutMs = 1000
	}
	if config.ClipboardBackend == "" {
		config.ClipboardBackend = "auto"
	}
	if config.Injector == "" {
		config.Injector = "auto"
	}
	return config
}

// GetPlaybackConfig returns playback configuration with defaults
func (c *Config) GetPlaybackConfig() PlaybackConfig {
	config := c.Playback
	if config.ChunkMode == "" {
		config.ChunkMode = "sentence"
	}
	if config.MaxChunkRunes <= 0 {
		config.MaxChunkRunes = 240
	}
	if config.StopGraceMs <= 0 {
		config.StopGraceMs = 500
	}
	return config
}

// GetTTSConfig returns TTS configuration with defaults
func (c *Config) GetTTSConfig() TTSConfig {
	config := c.TTS

	if config.Backend == "" {
		if runtime.GOOS == "darwin" {
			config.Backend = "say"
		} else {
			config.Backend = "espeak"
		}
	}

	if config.Volume <= 0 || config.Volume > 100 {
		config.Volume = 100
	}

	if config.OpenAI.Model == "" {
		config.OpenAI.Model = "tts-1"
	}

	if config.Realtime.Model == "" {
		config.Realtime.Model = "gpt-4o-mini-realtime-preview"
	}
	if config.Realtime.Instructions == "" {
		config.Realtime.Instructions = "Read the user's text aloud exactly as written. Do not answer, summarize or comment."
	}

	return config
}

func (c *Config) GetDBusEnabled() bool {
	return boolOr(c.DBus.Enabled, true)
}

func (c *Config) GetNATSConfig() NATSConfig {
	config := c.NATS
	if config.URL == "" {
		config.URL = "nats://127.0.0.1:4222"
	}
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = "readaloud"
	}
	return config
}

func (c *Config) GetNotificationsEnabled() bool {
	return boolOr(c.Notifications.Enabled, true)
}
