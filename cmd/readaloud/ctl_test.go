package main

import (
	"testing"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/playback"
	"github.com/dooshek/readaloud/internal/voices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	calls []string
	ids   []uint64
	text  string
	rate  float64
	voice string
}

func (f *fakeController) ReadSelection() (uint64, error) {
	f.calls = append(f.calls, "read")
	return 0, apperr.New(apperr.KindEmptySelection, 0, nil)
}

func (f *fakeController) Play(text string, rate float64, voice string) (uint64, error) {
	f.calls = append(f.calls, "play")
	f.text, f.rate, f.voice = text, rate, voice
	return 9, nil
}

func (f *fakeController) Pause(id uint64) error {
	f.calls = append(f.calls, "pause")
	f.ids = append(f.ids, id)
	return nil
}

func (f *fakeController) Resume(id uint64) error {
	f.calls = append(f.calls, "resume")
	f.ids = append(f.ids, id)
	return nil
}

func (f *fakeController) Stop(id uint64) error {
	f.calls = append(f.calls, "stop")
	f.ids = append(f.ids, id)
	return nil
}

func (f *fakeController) TogglePause() error {
	f.calls = append(f.calls, "toggle")
	return nil
}

func (f *fakeController) Status() (playback.Status, error) {
	return playback.Status{State: playback.Idle, StateName: "idle"}, nil
}

func (f *fakeController) ListVoices() ([]voices.Descriptor, error)    { return nil, nil }
func (f *fakeController) RefreshVoices() ([]voices.Descriptor, error) { return nil, nil }
func (f *fakeController) Close() error                                { return nil }

func TestExecCtlSessionIDs(t *testing.T) {
	f := &fakeController{}
	require.NoError(t, execCtl(f, "pause", nil, 0, ""))
	require.NoError(t, execCtl(f, "resume", []string{"4"}, 0, ""))
	require.NoError(t, execCtl(f, "stop", []string{"4"}, 0, ""))
	assert.Equal(t, []uint64{0, 4, 4}, f.ids)

	assert.Error(t, execCtl(f, "stop", []string{"four"}, 0, ""))
	assert.Error(t, execCtl(f, "stop", []string{"1", "2"}, 0, ""))
}

func TestExecCtlPlayJoinsText(t *testing.T) {
	f := &fakeController{}
	require.NoError(t, execCtl(f, "play", []string{"hello", "42"}, 180, "en"))
	assert.Equal(t, "hello 42", f.text)
	assert.Equal(t, 180.0, f.rate)
	assert.Equal(t, "en", f.voice)

	assert.Error(t, execCtl(f, "play", nil, 0, ""))
}

func TestExecCtlPropagatesErrors(t *testing.T) {
	f := &fakeController{}
	err := execCtl(f, "read", nil, 0, "")
	assert.ErrorIs(t, err, apperr.ErrEmptySelection)

	assert.Error(t, execCtl(f, "dance", nil, 0, ""))
	assert.Error(t, execCtl(f, "stats", nil, 0, ""), "stats need the D-Bus client")
}

func TestExecCtlStatusAndToggle(t *testing.T) {
	f := &fakeController{}
	require.NoError(t, execCtl(f, "status", nil, 0, ""))
	require.NoError(t, execCtl(f, "toggle", nil, 0, ""))
	require.NoError(t, execCtl(f, "voices", nil, 0, ""))
	assert.Equal(t, []string{"toggle"}, f.calls)
}
