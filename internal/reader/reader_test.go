package reader

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/fileops"
	"github.com/dooshek/readaloud/internal/playback"
	"github.com/dooshek/readaloud/internal/selection"
	"github.com/dooshek/readaloud/internal/stats"
	"github.com/dooshek/readaloud/internal/tts"
	"github.com/dooshek/readaloud/internal/types"
	"github.com/dooshek/readaloud/internal/voices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapturer struct {
	res      selection.Result
	err      error
	restores []bool
}

func (f *fakeCapturer) Capture(_ context.Context, restore bool) (selection.Result, error) {
	f.restores = append(f.restores, restore)
	return f.res, f.err
}

type fakeBackend struct {
	hold       chan struct{} // nil means return at once
	stubborn   bool          // ignore cancellation while held
	fail       error
	enumerated atomic.Int32

	mu     sync.Mutex
	spoken []tts.Utterance
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Synthesize(ctx context.Context, u tts.Utterance) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, u)
	f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if f.hold == nil {
		return nil
	}
	if f.stubborn {
		<-f.hold
		return ctx.Err()
	}
	select {
	case <-f.hold:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) Voices(context.Context) ([]voices.Descriptor, error) {
	f.enumerated.Add(1)
	return []voices.Descriptor{
		{ID: "en", MinRate: 80, MaxRate: 450, DefaultRate: 175, Default: true},
		{ID: "de", MinRate: 80, MaxRate: 450, DefaultRate: 160},
	}, nil
}

func (f *fakeBackend) utterances() []tts.Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tts.Utterance(nil), f.spoken...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	capture  []error
	playback []error
}

func (f *fakeNotifier) Notify(string, string) error { return nil }

func (f *fakeNotifier) NotifyCaptureFailed(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capture = append(f.capture, err)
	return nil
}

func (f *fakeNotifier) NotifyPlaybackFailed(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playback = append(f.playback, err)
	return nil
}

func (f *fakeNotifier) playbackFailures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.playback)
}

type fixture struct {
	reader   *Reader
	capturer *fakeCapturer
	backend  *fakeBackend
	notifier *fakeNotifier
	stats    *stats.StatsManager
	events   chan playback.Event
}

func newFixture(t *testing.T, cfg *types.Config) *fixture {
	t.Helper()
	f := &fixture{
		capturer: &fakeCapturer{},
		backend:  &fakeBackend{},
		notifier: &fakeNotifier{},
		stats:    stats.NewStatsManager(fileops.NewFileOps(filepath.Join(t.TempDir(), "cfg"))),
		events:   make(chan playback.Event, 64),
	}
	r, err := New(cfg, Deps{Capturer: f.capturer, Backend: f.backend, Notifier: f.notifier, Stats: f.stats})
	require.NoError(t, err)
	r.Subscribe(func(ev playback.Event) { f.events <- ev })
	f.reader = r
	t.Cleanup(r.Close)
	return f
}

func (f *fixture) waitIdle(t *testing.T, id uint64) []playback.Event {
	t.Helper()
	var seen []playback.Event
	for {
		select {
		case ev := <-f.events:
			seen = append(seen, ev)
			if ev.SessionID == id && ev.Type == playback.StateChanged && ev.State == playback.Idle {
				return seen
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("session %d never went idle; saw %+v", id, seen)
		}
	}
}

func states(evs []playback.Event) []playback.State {
	var out []playback.State
	for _, ev := range evs {
		if ev.Type == playback.StateChanged {
			out = append(out, ev.State)
		}
	}
	return out
}

func TestReadSelectionSpeaksCapturedText(t *testing.T) {
	voice := "de"
	cfg := &types.Config{TTS: types.TTSConfig{Voice: voice, Rate: 200}}
	f := newFixture(t, cfg)
	f.capturer.res = selection.Result{Text: "Hello there.", Source: selection.SourceClipboard}

	id, err := f.reader.ReadSelection(context.Background())
	require.NoError(t, err)

	evs := f.waitIdle(t, id)
	assert.Equal(t, []playback.State{playback.Preparing, playback.Speaking, playback.Idle}, states(evs))
	assert.Equal(t, []tts.Utterance{{Text: "Hello there.", Rate: 200, Voice: "de"}}, f.backend.utterances())
	assert.Equal(t, []bool{true}, f.capturer.restores)

	st := f.stats.GetStats()
	assert.Equal(t, 1, st.Captures)
	assert.Equal(t, stats.BackendStats{Sessions: 1, Completed: 1, Characters: 12}, *st.Backends["fake"])
}

func TestReadSelectionHonoursRestoreSetting(t *testing.T) {
	off := false
	f := newFixture(t, &types.Config{Capture: types.CaptureConfig{RestoreClipboard: &off}})
	f.capturer.res = selection.Result{Text: "x"}

	id, err := f.reader.ReadSelection(context.Background())
	require.NoError(t, err)
	f.waitIdle(t, id)
	assert.Equal(t, []bool{false}, f.capturer.restores)
}

func TestReadSelectionCaptureFailureNotifies(t *testing.T) {
	f := newFixture(t, nil)
	f.capturer.err = apperr.New(apperr.KindEmptySelection, 0, nil)

	_, err := f.reader.ReadSelection(context.Background())
	assert.ErrorIs(t, err, apperr.ErrEmptySelection)
	require.Len(t, f.notifier.capture, 1)
	assert.Empty(t, f.backend.utterances())
	assert.Zero(t, f.stats.GetStats().Captures)
}

func TestUncertainSelectionIsStillRead(t *testing.T) {
	f := newFixture(t, nil)
	f.capturer.res = selection.Result{Text: "old clipboard", Uncertain: true}

	id, err := f.reader.ReadSelection(context.Background())
	require.NoError(t, err)
	f.waitIdle(t, id)
	assert.Len(t, f.backend.utterances(), 1)
}

func TestPlayEmptyText(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.reader.Play("   ", 0, "")
	assert.Equal(t, apperr.KindEmptySelection, apperr.KindOf(err))
	assert.Empty(t, f.stats.GetStats().Backends)
}

func TestStopCountsAsCancelled(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.hold = make(chan struct{})

	id, err := f.reader.Play("A long sentence.", 0, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.reader.Status().State == playback.Speaking }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.reader.Stop(id))
	evs := f.waitIdle(t, id)
	assert.Contains(t, states(evs), playback.Cancelling)
	assert.Equal(t, 1, f.stats.GetStats().Backends["fake"].Cancelled)
}

func TestSupersededWaitingPlayIsNotCounted(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.hold = make(chan struct{})
	f.backend.stubborn = true

	_, err := f.reader.Play("First.", 0, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.reader.Status().State == playback.Speaking }, time.Second, 5*time.Millisecond)

	// the first session cannot wind down yet, so the second only waits
	_, err = f.reader.Play("Second.", 0, "")
	require.NoError(t, err)
	third, err := f.reader.Play("Third one.", 0, "")
	require.NoError(t, err)

	close(f.backend.hold)
	f.waitIdle(t, third)

	assert.Equal(t, stats.BackendStats{Sessions: 2, Completed: 1, Cancelled: 1, Characters: 16}, *f.stats.GetStats().Backends["fake"])
	assert.Equal(t, []string{"First.", "Third one."}, texts(f.backend.utterances()))
}

func TestTogglePause(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.hold = make(chan struct{})

	id, err := f.reader.Play("One. Two.", 0, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.reader.Status().State == playback.Speaking }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.reader.TogglePause())
	require.Eventually(t, func() bool { return f.reader.Status().State == playback.Paused }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.reader.TogglePause())
	require.Eventually(t, func() bool { return f.reader.Status().State == playback.Speaking }, time.Second, 5*time.Millisecond)

	close(f.backend.hold)
	f.waitIdle(t, id)
	assert.Equal(t, []string{"One.", "One.", "Two."}, texts(f.backend.utterances()))
}

func texts(us []tts.Utterance) []string {
	out := make([]string, len(us))
	for i, u := range us {
		out[i] = u.Text
	}
	return out
}

func TestBackendFailureNotifiesAndInvalidatesVoices(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.fail = errors.New("engine crashed")

	id, err := f.reader.Play("Boom.", 0, "")
	require.NoError(t, err)
	evs := f.waitIdle(t, id)

	var kinds []apperr.Kind
	for _, ev := range evs {
		if ev.Type == playback.Error {
			kinds = append(kinds, ev.Kind)
		}
	}
	assert.Equal(t, []apperr.Kind{apperr.KindBackendFailure}, kinds)
	assert.Equal(t, 1, f.notifier.playbackFailures())
	assert.Equal(t, 1, f.stats.GetStats().Backends["fake"].Failed)

	before := f.backend.enumerated.Load()
	_, err = f.reader.ListVoices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before+1, f.backend.enumerated.Load())
}

func TestClampedRateIsNotAFailure(t *testing.T) {
	f := newFixture(t, nil)

	id, err := f.reader.Play("Quick.", 5000, "")
	require.NoError(t, err)
	f.waitIdle(t, id)

	assert.Zero(t, f.notifier.playbackFailures())
	assert.Equal(t, 450.0, f.backend.utterances()[0].Rate)
	assert.Equal(t, 1, f.stats.GetStats().Backends["fake"].Completed)
}

func TestVoicesAreCachedUntilRefresh(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	list, err := f.reader.ListVoices(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	_, err = f.reader.ListVoices(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.backend.enumerated.Load())

	_, err = f.reader.RefreshVoices(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.backend.enumerated.Load())
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t, nil)
	var count atomic.Int32
	unsubscribe := f.reader.Subscribe(func(playback.Event) { count.Add(1) })
	unsubscribe()

	id, err := f.reader.Play("Hi.", 0, "")
	require.NoError(t, err)
	f.waitIdle(t, id)
	assert.Zero(t, count.Load())
}

func TestNewRejectsUnknownChunkMode(t *testing.T) {
	_, err := New(&types.Config{Playback: types.PlaybackConfig{ChunkMode: "paragraph"}}, Deps{Backend: &fakeBackend{}})
	assert.Error(t, err)
}
