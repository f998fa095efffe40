package clipboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name  string
	args  []string
	stdin *string
}

type fakeRunner struct {
	calls  []call
	stdout string
	stderr string
	err    error
	block  bool
}

func (f *fakeRunner) run(ctx context.Context, stdin *string, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, call{name: name, args: args, stdin: stdin})
	if f.block {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func TestCommandBridgeReadWrite(t *testing.T) {
	r := &fakeRunner{stdout: "hello"}
	b := newCommandBridge(tools["xclip"], "xclip", time.Second, r.run)

	text, present, err := b.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "hello", text)
	assert.Equal(t, []string{"-selection", "clipboard", "-o"}, r.calls[0].args)

	require.NoError(t, b.Write(context.Background(), "bye"))
	assert.Equal(t, "xclip", r.calls[1].name)
	assert.Equal(t, []string{"-selection", "clipboard", "-i"}, r.calls[1].args)
	require.NotNil(t, r.calls[1].stdin)
	assert.Equal(t, "bye", *r.calls[1].stdin)
}

func TestCommandBridgeEmptyClipboardIsAbsent(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 1"), stderr: "Error: target STRING not available"}
	b := newCommandBridge(tools["xclip"], "xclip", time.Second, r.run)

	text, present, err := b.Read(context.Background())
	require.NoError(t, err)
	assert.False(t, present)
	assert.Empty(t, text)
}

func TestCommandBridgeFailure(t *testing.T) {
	r := &fakeRunner{err: errors.New("exit status 2"), stderr: "Can't open display"}
	b := newCommandBridge(tools["xsel"], "xsel", time.Second, r.run)

	_, _, err := b.Read(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperr.ErrClipboardTimeout)
	assert.Contains(t, err.Error(), "Can't open display")
}

func TestCommandBridgeTimeout(t *testing.T) {
	r := &fakeRunner{block: true}
	b := newCommandBridge(tools["wl-paste"], "wl-copy", 20*time.Millisecond, r.run)

	_, _, err := b.Read(context.Background())
	assert.ErrorIs(t, err, apperr.ErrClipboardTimeout)

	err = b.Write(context.Background(), "x")
	assert.ErrorIs(t, err, apperr.ErrClipboardTimeout)
	assert.Nil(t, r.calls[1].args)
}

func TestReadPrimary(t *testing.T) {
	r := &fakeRunner{stdout: "highlighted"}
	b := newCommandBridge(tools["wl-paste"], "wl-copy", time.Second, r.run)

	text, present, err := b.ReadPrimary(context.Background())
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "highlighted", text)
	assert.Equal(t, []string{"--primary", "--no-newline"}, r.calls[0].args)

	mac := newCommandBridge(tools["pbpaste"], "pbcopy", time.Second, r.run)
	_, present, err = mac.ReadPrimary(context.Background())
	require.NoError(t, err)
	assert.False(t, present)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New("carrier-pigeon", time.Second)
	assert.Error(t, err)
}

func TestNewCommandBridgePicksInstalledTool(t *testing.T) {
	if isDarwin() {
		t.Skip("macOS always uses pbcopy")
	}
	t.Setenv("XDG_SESSION_TYPE", "x11")
	t.Setenv("WAYLAND_DISPLAY", "")

	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(name string) (string, error) {
		if name == "xsel" {
			return "/usr/bin/xsel", nil
		}
		return "", errors.New("not found")
	}

	b, err := NewCommandBridge(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "xsel", b.Tool())

	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	_, err = NewCommandBridge(time.Second)
	assert.Error(t, err)
}
