package inject

import (
	"context"
	"errors"
	"testing"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	env  []string
	name string
	args []string
}

func recorder(out string, err error) (*[]recorded, runFunc) {
	var calls []recorded
	return &calls, func(_ context.Context, env []string, name string, args ...string) ([]byte, error) {
		calls = append(calls, recorded{env: env, name: name, args: args})
		return []byte(out), err
	}
}

func TestXdotoolArgs(t *testing.T) {
	calls, run := recorder("", nil)
	x := &XdotoolInjector{run: run}

	require.NoError(t, x.TriggerCopy(context.Background()))
	require.Len(t, *calls, 1)
	assert.Equal(t, "xdotool", (*calls)[0].name)
	assert.Equal(t, []string{"key", "--clearmodifiers", "ctrl+c"}, (*calls)[0].args)
}

func TestYdotoolUsesSocket(t *testing.T) {
	calls, run := recorder("", nil)
	y := &YdotoolInjector{socketPath: "/run/user/1000/.ydotool_socket", run: run}

	require.NoError(t, y.TriggerCopy(context.Background()))
	assert.Equal(t, []string{"YDOTOOL_SOCKET=/run/user/1000/.ydotool_socket"}, (*calls)[0].env)
	assert.Equal(t, []string{"key", "29:1", "46:1", "46:0", "29:0"}, (*calls)[0].args)
}

func TestFailureIsInjectionFailed(t *testing.T) {
	_, run := recorder("failed to connect socket", errors.New("exit status 2"))
	y := &YdotoolInjector{run: run}

	err := y.TriggerCopy(context.Background())
	assert.ErrorIs(t, err, apperr.ErrInjectionFailed)
	assert.Equal(t, apperr.KindInjectionFailed, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "failed to connect socket")
}

func TestRobotgoInjector(t *testing.T) {
	var gotKey string
	var gotMods []interface{}
	r := &RobotgoInjector{modifier: "ctrl", keyTap: func(key string, args ...interface{}) error {
		gotKey, gotMods = key, args
		return nil
	}}

	require.NoError(t, r.TriggerCopy(context.Background()))
	assert.Equal(t, "c", gotKey)
	assert.Equal(t, []interface{}{"ctrl"}, gotMods)

	r.keyTap = func(string, ...interface{}) error { return errors.New("no display") }
	assert.ErrorIs(t, r.TriggerCopy(context.Background()), apperr.ErrInjectionFailed)
}

func TestNewUnknown(t *testing.T) {
	_, err := New("telepathy", types.YdotoolConfig{})
	assert.Error(t, err)
}
