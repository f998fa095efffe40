// Package tts adapts external speech engines to one blocking, cancellable
// call per utterance.
package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/types"
	"github.com/dooshek/readaloud/internal/voices"
)

// Utterance is one unit of work for a backend. Rate is in the voice's native
// units; zero means the voice default.
type Utterance struct {
	Text  string
	Rate  float64
	Voice string
}

// Backend wraps one speech engine. Synthesize blocks until the audio has
// been played, the engine failed, or ctx was cancelled; in the last case it
// returns ctx.Err() after the engine has stopped.
type Backend interface {
	Name() string
	Synthesize(ctx context.Context, u Utterance) error
	Voices(ctx context.Context) ([]voices.Descriptor, error)
}

// Suspender is implemented by backends that can hold audio in place
// mid-utterance. A suspended Synthesize call keeps blocking.
type Suspender interface {
	Suspend() error
	Resume() error
}

// Options carries settings that do not live in types.TTSConfig
type Options struct {
	APIKey    string
	StopGrace time.Duration
}

// New creates the backend named in cfg.Backend
func New(cfg types.TTSConfig, opts Options) (Backend, error) {
	var (
		b   Backend
		err error
	)

	switch cfg.Backend {
	case "espeak":
		b, err = NewEspeakBackend(cfg.Espeak, cfg.Volume, opts.StopGrace)
	case "say":
		b, err = NewSayBackend(cfg.Volume, opts.StopGrace)
	case "command":
		b, err = NewCommandBackend(cfg.Command, opts.StopGrace)
	case "openai":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required for the openai backend (set OPENAI_API_KEY)")
		}
		b = NewOpenAIBackend(opts.APIKey, cfg.OpenAI, cfg.Volume)
	case "realtime":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required for the realtime backend (set OPENAI_API_KEY)")
		}
		b = NewRealtimeBackend(opts.APIKey, cfg.Realtime, cfg.Volume)
	default:
		return nil, fmt.Errorf("unsupported TTS backend: %s (supported: espeak, say, command, openai, realtime)", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Infof("Initialized TTS backend: %s", b.Name())
	return b, nil
}
