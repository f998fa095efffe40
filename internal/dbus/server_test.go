package dbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/fileops"
	"github.com/dooshek/readaloud/internal/playback"
	"github.com/dooshek/readaloud/internal/stats"
	"github.com/dooshek/readaloud/internal/voices"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	readErr error
	calls   []string
	paused  uint64
}

func (f *fakeService) ReadSelection(context.Context) (uint64, error) {
	f.calls = append(f.calls, "read")
	return 7, f.readErr
}

func (f *fakeService) Play(text string, rate float64, voice string) (uint64, error) {
	f.calls = append(f.calls, "play:"+text+":"+voice)
	if text == "" {
		return 0, apperr.New(apperr.KindEmptySelection, 0, nil)
	}
	return 8, nil
}

func (f *fakeService) Pause(id uint64) error {
	f.paused = id
	return nil
}

func (f *fakeService) Resume(uint64) error           { return nil }
func (f *fakeService) Stop(uint64) error             { return nil }
func (f *fakeService) TogglePause() error            { return nil }
func (f *fakeService) SetRate(uint64, float64) error { return nil }

func (f *fakeService) SetVoice(_ context.Context, id uint64, voice string) error {
	return apperr.New(apperr.KindUnknownVoice, id, errors.New(voice))
}

func (f *fakeService) Status() playback.Status {
	return playback.Status{SessionID: 8, State: playback.Speaking, StateName: "speaking", Backend: "espeak"}
}

func (f *fakeService) ListVoices(context.Context) ([]voices.Descriptor, error) {
	return []voices.Descriptor{{ID: "en", Default: true}}, nil
}

func (f *fakeService) RefreshVoices(context.Context) ([]voices.Descriptor, error) {
	return nil, errors.New("espeak not found")
}

func (f *fakeService) Subscribe(func(playback.Event)) func() { return func() {} }

type signal struct {
	name string
	args []interface{}
}

type fakeEmitter struct {
	mu      sync.Mutex
	signals []signal
}

func (f *fakeEmitter) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, signal{name: name, args: values})
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeService, *methods) {
	t.Helper()
	svc := &fakeService{}
	s := NewServer(svc, stats.NewStatsManager(fileops.NewFileOps(t.TempDir())))
	return s, svc, &methods{s}
}

func TestMethodsDelegate(t *testing.T) {
	_, svc, m := newTestServer(t)

	id, derr := m.ReadSelection()
	assert.Nil(t, derr)
	assert.Equal(t, uint64(7), id)

	id, derr = m.Play("hello", 0, "en")
	assert.Nil(t, derr)
	assert.Equal(t, uint64(8), id)

	assert.Nil(t, m.Pause(8))
	assert.Equal(t, uint64(8), svc.paused)
	assert.Equal(t, []string{"read", "play:hello:en"}, svc.calls)
}

func TestErrorsCarryKindName(t *testing.T) {
	_, _, m := newTestServer(t)

	_, derr := m.Play("", 0, "")
	require.NotNil(t, derr)
	assert.Equal(t, "com.dooshek.readaloud.Error.empty_selection", derr.Name)

	derr = m.SetVoice(3, "klingon")
	require.NotNil(t, derr)
	assert.Equal(t, "com.dooshek.readaloud.Error.unknown_voice", derr.Name)

	_, derr = m.RefreshVoices()
	require.NotNil(t, derr)
	assert.Equal(t, "com.dooshek.readaloud.Error.failed", derr.Name)
}

func TestClientRestoresKind(t *testing.T) {
	err := fromDBusError(*toDBusError(apperr.New(apperr.KindClipboardTimeout, 0, nil)))
	assert.ErrorIs(t, err, apperr.ErrClipboardTimeout)

	err = fromDBusError(toDBusError(errors.New("plain")))
	assert.EqualError(t, err, "plain")
	assert.Equal(t, apperr.KindNone, apperr.KindOf(err))

	assert.NoError(t, fromDBusError(nil))
}

func TestJSONReplies(t *testing.T) {
	_, _, m := newTestServer(t)

	out, derr := m.Status()
	require.Nil(t, derr)
	var st playback.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "speaking", st.StateName)
	assert.Equal(t, uint64(8), st.SessionID)

	out, derr = m.ListVoices()
	require.Nil(t, derr)
	assert.JSONEq(t, `[{"id":"en","name":"","language":"","min_rate":0,"max_rate":0,"default_rate":0,"default":true}]`, out)

	out, derr = m.GetStats()
	require.Nil(t, derr)
	assert.Contains(t, out, `"backends"`)
}

func TestResetStats(t *testing.T) {
	s, _, m := newTestServer(t)
	s.stats.AddSession("espeak", 12)
	require.NotEmpty(t, s.stats.GetStats().Backends)

	require.Nil(t, m.ResetStats())
	assert.Empty(t, s.stats.GetStats().Backends)

	disabled := &methods{NewServer(&fakeService{}, nil)}
	assert.NotNil(t, disabled.ResetStats())
}

func TestForwardEmitsSignals(t *testing.T) {
	s, _, _ := newTestServer(t)
	em := &fakeEmitter{}
	s.setEmitter(em)

	s.forward(playback.Event{Type: playback.StateChanged, SessionID: 2, State: playback.Paused})
	s.forward(playback.Event{Type: playback.Error, SessionID: 2, Kind: apperr.KindRateClamped, Err: apperr.ErrRateClamped})

	require.Len(t, em.signals, 2)
	assert.Equal(t, signal{name: dbusInterface + ".StateChanged", args: []interface{}{uint64(2), "paused"}}, em.signals[0])
	assert.Equal(t, signal{name: dbusInterface + ".Error", args: []interface{}{uint64(2), "rate_clamped", "rate clamped"}}, em.signals[1])
}

func TestForwardWithoutConnectionIsNoop(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.forward(playback.Event{Type: playback.StateChanged, SessionID: 1, State: playback.Idle})
}
