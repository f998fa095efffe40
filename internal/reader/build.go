package reader

import (
	"fmt"

	"github.com/dooshek/readaloud/internal/clipboard"
	"github.com/dooshek/readaloud/internal/config"
	"github.com/dooshek/readaloud/internal/inject"
	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/notification"
	"github.com/dooshek/readaloud/internal/selection"
	"github.com/dooshek/readaloud/internal/stats"
	"github.com/dooshek/readaloud/internal/tts"
	"github.com/dooshek/readaloud/internal/types"
	"github.com/dooshek/readaloud/internal/windowdetect"
)

// NewCapturer assembles the clipboard bridge, key injector and focused
// window detector named in cfg
func NewCapturer(cfg *types.Config) (*selection.Capturer, error) {
	cc := cfg.GetCaptureConfig()

	bridge, err := clipboard.New(cc.ClipboardBackend, cc.ClipboardTimeout())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
	}
	injector, err := inject.New(cc.Injector, cfg.GetYdotoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key injector: %w", err)
	}
	logger.Debugf("Capture uses %s for the copy gesture", injector.Name())

	opts := selection.Options{
		PollInterval:  cc.PollInterval(),
		MaxAttempts:   cc.MaxAttempts,
		PreferPrimary: cc.PreferPrimary,
	}
	if pr, ok := bridge.(clipboard.PrimaryReader); ok {
		opts.Primary = pr
	}
	if det, err := windowdetect.New(); err == nil {
		opts.Windows = det
	} else {
		logger.Debugf("Focused window detection unavailable: %v", err)
	}

	return selection.NewCapturer(bridge, injector, opts), nil
}

// NewBackend creates the speech backend named in cfg
func NewBackend(cfg *types.Config) (tts.Backend, error) {
	ttsCfg := cfg.GetTTSConfig()
	return tts.New(ttsCfg, tts.Options{
		APIKey:    config.OpenAIKey(ttsCfg),
		StopGrace: cfg.GetPlaybackConfig().StopGrace(),
	})
}

// NewFromConfig builds a Reader with the platform collaborators named in cfg
func NewFromConfig(cfg *types.Config, sm *stats.StatsManager) (*Reader, error) {
	capturer, err := NewCapturer(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize TTS backend: %w", err)
	}

	return New(cfg, Deps{
		Capturer: capturer,
		Backend:  backend,
		Notifier: notification.New(),
		Stats:    sm,
	})
}
