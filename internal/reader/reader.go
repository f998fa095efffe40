// Package reader is the application facade: it captures the selection,
// hands text to the playback controller and fans controller events out to
// subscribers.
package reader

import (
	"context"
	"sync"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/notification"
	"github.com/dooshek/readaloud/internal/playback"
	"github.com/dooshek/readaloud/internal/segment"
	"github.com/dooshek/readaloud/internal/selection"
	"github.com/dooshek/readaloud/internal/stats"
	"github.com/dooshek/readaloud/internal/tts"
	"github.com/dooshek/readaloud/internal/types"
	"github.com/dooshek/readaloud/internal/voices"
)

// Capturer obtains the current selection
type Capturer interface {
	Capture(ctx context.Context, restore bool) (selection.Result, error)
}

// Deps are the collaborators of a Reader. Notifier and Stats may be nil.
type Deps struct {
	Capturer Capturer
	Backend  tts.Backend
	Notifier notification.Notifier
	Stats    *stats.StatsManager
}

type subscriber struct {
	id int
	fn func(playback.Event)
}

// outcome of a session as seen by the dispatcher
type tracked struct {
	cancelled bool
	failed    bool
}

type Reader struct {
	cfg      *types.Config
	capturer Capturer
	backend  tts.Backend
	voices   *voices.Cache
	player   *playback.Controller
	notifier notification.Notifier
	stats    *stats.StatsManager

	mu      sync.Mutex
	subs    []subscriber
	nextSub int

	sessions map[uint64]*tracked // dispatcher only
	done     chan struct{}
}

// New starts a Reader. Close releases it.
func New(cfg *types.Config, deps Deps) (*Reader, error) {
	if cfg == nil {
		cfg = &types.Config{}
	}
	pc := cfg.GetPlaybackConfig()
	mode, err := segment.ParseMode(pc.ChunkMode)
	if err != nil {
		return nil, err
	}

	notifier := deps.Notifier
	if notifier == nil || !cfg.GetNotificationsEnabled() {
		notifier = notification.NewSilent()
	}

	cache := voices.NewCache(deps.Backend)
	r := &Reader{
		cfg:      cfg,
		capturer: deps.Capturer,
		backend:  deps.Backend,
		voices:   cache,
		notifier: notifier,
		stats:    deps.Stats,
		player: playback.New(deps.Backend, cache, playback.Options{
			ChunkMode:     mode,
			MaxChunkRunes: pc.MaxChunkRunes,
		}),
		sessions: make(map[uint64]*tracked),
		done:     make(chan struct{}),
	}
	go r.dispatch()
	return r, nil
}

// Subscribe registers fn for every playback event. Subscribers run one after
// another on the dispatcher goroutine and must not block.
func (r *Reader) Subscribe(fn func(playback.Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	id := r.nextSub
	r.subs = append(r.subs, subscriber{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// CaptureSelection copies the selection of the focused application
func (r *Reader) CaptureSelection(ctx context.Context, restore bool) (selection.Result, error) {
	res, err := r.capturer.Capture(ctx, restore)
	if res.RestoreErr != nil {
		logger.Warnf("Clipboard was not restored: %v", res.RestoreErr)
	}
	if err != nil {
		return res, err
	}
	if adv := res.Advisory(); adv != nil {
		logger.Warnf("Selection capture: %v after %d attempts", adv, res.Attempts)
	}
	if r.stats != nil {
		r.stats.AddCapture()
	}
	return res, nil
}

// Play starts speaking text, superseding any current session
func (r *Reader) Play(text string, rate float64, voice string) (uint64, error) {
	return r.player.Play(text, rate, voice)
}

// ReadSelection captures the selection and speaks it with the configured
// voice and rate. This is what the global shortcut and the tray click do.
func (r *Reader) ReadSelection(ctx context.Context) (uint64, error) {
	res, err := r.CaptureSelection(ctx, r.cfg.GetCaptureConfig().Restore())
	if err != nil {
		logger.Warnf("Selection capture failed: %v", err)
		if nerr := r.notifier.NotifyCaptureFailed(err); nerr != nil {
			logger.Debugf("notification: %v", nerr)
		}
		return 0, err
	}

	ttsCfg := r.cfg.GetTTSConfig()
	return r.Play(res.Text, ttsCfg.Rate, ttsCfg.Voice)
}

func (r *Reader) Pause(id uint64) error  { return r.player.Pause(id) }
func (r *Reader) Resume(id uint64) error { return r.player.Resume(id) }
func (r *Reader) Stop(id uint64) error   { return r.player.Stop(id) }

// TogglePause pauses the current session, or resumes it when paused
func (r *Reader) TogglePause() error {
	st := r.player.Status()
	if st.State == playback.Paused {
		return r.player.Resume(st.SessionID)
	}
	return r.player.Pause(st.SessionID)
}

func (r *Reader) SetRate(id uint64, rate float64) error {
	return r.player.SetRate(id, rate)
}

func (r *Reader) SetVoice(ctx context.Context, id uint64, voice string) error {
	return r.player.SetVoice(ctx, id, voice)
}

func (r *Reader) ListVoices(ctx context.Context) ([]voices.Descriptor, error) {
	return r.voices.List(ctx)
}

// RefreshVoices re-enumerates the engine's voices. On failure the previous
// catalog stays in use.
func (r *Reader) RefreshVoices(ctx context.Context) ([]voices.Descriptor, error) {
	cat, err := r.voices.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	logger.Infof("Voice catalog refreshed: %d voices", len(cat.List()))
	return cat.List(), nil
}

func (r *Reader) Status() playback.Status {
	return r.player.Status()
}

func (r *Reader) BackendName() string {
	return r.backend.Name()
}

// Close stops playback and waits for the last event to be delivered
func (r *Reader) Close() {
	r.player.Close()
	<-r.done
}

func (r *Reader) dispatch() {
	defer close(r.done)
	for ev := range r.player.Events() {
		r.track(ev)

		r.mu.Lock()
		subs := make([]subscriber, len(r.subs))
		copy(subs, r.subs)
		r.mu.Unlock()

		for _, s := range subs {
			s.fn(ev)
		}
	}
}

func (r *Reader) track(ev playback.Event) {
	t, ok := r.sessions[ev.SessionID]
	if !ok {
		t = &tracked{}
		r.sessions[ev.SessionID] = t
	}

	switch ev.Type {
	case playback.Error:
		if ev.Kind.Advisory() {
			logger.Warnf("Session %d: %v", ev.SessionID, ev.Err)
			return
		}
		t.failed = true
		if nerr := r.notifier.NotifyPlaybackFailed(ev.Err); nerr != nil {
			logger.Debugf("notification: %v", nerr)
		}
		if ev.Kind == apperr.KindBackendFailure {
			// the engine may have been reinstalled or restarted
			r.voices.Invalidate()
		}
	case playback.StateChanged:
		switch ev.State {
		case playback.Preparing:
			// plays superseded while waiting never get here and are not counted
			if r.stats != nil {
				r.stats.AddSession(r.backend.Name(), ev.Runes)
			}
		case playback.Cancelling:
			t.cancelled = true
		case playback.Idle:
			delete(r.sessions, ev.SessionID)
			r.recordOutcome(t)
		}
	}
}

func (r *Reader) recordOutcome(t *tracked) {
	if r.stats == nil {
		return
	}
	outcome := stats.Completed
	switch {
	case t.failed:
		outcome = stats.Failed
	case t.cancelled:
		outcome = stats.Cancelled
	}
	r.stats.EndSession(r.backend.Name(), outcome)
}
