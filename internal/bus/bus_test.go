package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/playback"
	"github.com/dooshek/readaloud/internal/voices"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	listener func(playback.Event)
	stopped  []uint64
}

func (f *fakeService) ReadSelection(context.Context) (uint64, error) {
	return 0, apperr.New(apperr.KindClipboardTimeout, 0, nil)
}

func (f *fakeService) Play(text string, _ float64, _ string) (uint64, error) {
	if text == "" {
		return 0, apperr.New(apperr.KindEmptySelection, 0, nil)
	}
	return 5, nil
}

func (f *fakeService) Pause(uint64) error  { return nil }
func (f *fakeService) Resume(uint64) error { return nil }

func (f *fakeService) Stop(id uint64) error {
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeService) TogglePause() error                             { return nil }
func (f *fakeService) SetRate(uint64, float64) error                  { return nil }
func (f *fakeService) SetVoice(context.Context, uint64, string) error { return nil }

func (f *fakeService) RefreshVoices(context.Context) ([]voices.Descriptor, error) {
	return f.ListVoices(context.Background())
}

func (f *fakeService) Status() playback.Status {
	return playback.Status{SessionID: 5, State: playback.Speaking, StateName: "speaking"}
}

func (f *fakeService) ListVoices(context.Context) ([]voices.Descriptor, error) {
	return []voices.Descriptor{{ID: "en"}, {ID: "de"}}, nil
}

func (f *fakeService) Subscribe(fn func(playback.Event)) func() {
	f.listener = fn
	return func() { f.listener = nil }
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	server := test.RunServer(&opts)

	conn, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		server.Shutdown()
	})
	return conn
}

func setupBridge(t *testing.T) (*Bridge, *fakeService, *nats.Conn) {
	t.Helper()
	conn := createTestNatsClient(t)
	svc := &fakeService{}
	b := NewBridge(conn, "readaloud", svc)
	require.NoError(t, b.Start())
	t.Cleanup(b.Close)
	return b, svc, conn
}

func TestCommandsAreServed(t *testing.T) {
	_, svc, conn := setupBridge(t)

	reply, err := Request(conn, "readaloud", Command{Action: "play", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), reply.SessionID)

	_, err = Request(conn, "readaloud", Command{Action: "stop", SessionID: 5})
	require.NoError(t, err)
	assert.Equal(t, []uint64{5}, svc.stopped)

	reply, err = Request(conn, "readaloud", Command{Action: "status"})
	require.NoError(t, err)
	require.NotNil(t, reply.Status)
	assert.Equal(t, "speaking", reply.Status.StateName)

	reply, err = Request(conn, "readaloud", Command{Action: "voices"})
	require.NoError(t, err)
	assert.Len(t, reply.Voices, 2)
}

func TestCommandErrorsKeepKind(t *testing.T) {
	_, _, conn := setupBridge(t)

	reply, err := Request(conn, "readaloud", Command{Action: "read"})
	assert.ErrorIs(t, err, apperr.ErrClipboardTimeout)
	assert.Equal(t, "clipboard_timeout", reply.Kind)

	_, err = Request(conn, "readaloud", Command{Action: "play"})
	assert.Equal(t, apperr.KindEmptySelection, apperr.KindOf(err))

	_, err = Request(conn, "readaloud", Command{Action: "dance"})
	assert.Error(t, err)
	assert.Equal(t, apperr.KindNone, apperr.KindOf(err))
}

func TestMalformedCommand(t *testing.T) {
	_, _, conn := setupBridge(t)

	msg, err := conn.Request("readaloud.cmd", []byte("{"), time.Second)
	require.NoError(t, err)
	var reply Reply
	require.NoError(t, json.Unmarshal(msg.Data, &reply))
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Error, "invalid command")
}

func TestEventsArePublished(t *testing.T) {
	b, svc, conn := setupBridge(t)

	sub, err := conn.SubscribeSync("readaloud.events.>")
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	require.NotNil(t, svc.listener)
	svc.listener(playback.Event{Type: playback.StateChanged, SessionID: 3, State: playback.Speaking})
	svc.listener(playback.Event{Type: playback.Error, SessionID: 3, State: playback.Speaking, Kind: apperr.KindRateClamped, Err: apperr.ErrRateClamped})

	msg, err := sub.NextMsg(time.Second)
	require.NoError(t, err)
	assert.Equal(t, b.EventSubject("state_changed"), msg.Subject)
	var ev EventMessage
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, uint64(3), ev.SessionID)
	assert.Equal(t, "speaking", ev.State)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, b.instance, ev.Instance)

	msg, err = sub.NextMsg(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "readaloud.events.error", msg.Subject)
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, "rate_clamped", ev.Kind)
	assert.Equal(t, "rate clamped", ev.Error)
}

func TestCloseUnsubscribes(t *testing.T) {
	b, svc, _ := setupBridge(t)
	b.Close()
	assert.Nil(t, svc.listener)
}
