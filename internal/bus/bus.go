// Package bus mirrors the reader on NATS: playback events are published and
// commands are served with request/reply.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/playback"
	"github.com/dooshek/readaloud/internal/types"
	"github.com/dooshek/readaloud/internal/voices"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	connectTimeout = 2 * time.Second
	commandTimeout = 10 * time.Second
)

// Service is the part of the reader driven over the bus
type Service interface {
	ReadSelection(ctx context.Context) (uint64, error)
	Play(text string, rate float64, voice string) (uint64, error)
	Pause(id uint64) error
	Resume(id uint64) error
	Stop(id uint64) error
	TogglePause() error
	SetRate(id uint64, rate float64) error
	SetVoice(ctx context.Context, id uint64, voice string) error
	Status() playback.Status
	ListVoices(ctx context.Context) ([]voices.Descriptor, error)
	RefreshVoices(ctx context.Context) ([]voices.Descriptor, error)
	Subscribe(fn func(playback.Event)) (unsubscribe func())
}

// EventMessage is published on <prefix>.events.<type> for every playback
// event
type EventMessage struct {
	ID        string    `json:"id"`
	Instance  string    `json:"instance"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	SessionID uint64    `json:"session_id"`
	State     string    `json:"state"`
	Kind      string    `json:"kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Command is the request body on <prefix>.cmd
type Command struct {
	Action    string  `json:"action"` // read, play, pause, resume, toggle, stop, rate, voice, status, voices, refresh
	SessionID uint64  `json:"session_id,omitempty"`
	Text      string  `json:"text,omitempty"`
	Rate      float64 `json:"rate,omitempty"`
	Voice     string  `json:"voice,omitempty"`
}

// Reply answers a Command
type Reply struct {
	OK        bool                `json:"ok"`
	SessionID uint64              `json:"session_id,omitempty"`
	Kind      string              `json:"kind,omitempty"`
	Error     string              `json:"error,omitempty"`
	Status    *playback.Status    `json:"status,omitempty"`
	Voices    []voices.Descriptor `json:"voices,omitempty"`
}

// Connect dials the server in cfg
func Connect(cfg types.NATSConfig) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("readaloud"),
		nats.Timeout(connectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	logger.Infof("Connected to NATS at %s", cfg.URL)
	return conn, nil
}

// Bridge links a Service to a NATS connection
type Bridge struct {
	conn     *nats.Conn
	prefix   string
	service  Service
	instance string

	mu          sync.Mutex
	sub         *nats.Subscription
	unsubscribe func()
}

func NewBridge(conn *nats.Conn, prefix string, service Service) *Bridge {
	return &Bridge{
		conn:     conn,
		prefix:   prefix,
		service:  service,
		instance: uuid.NewString(),
	}
}

func (b *Bridge) CommandSubject() string {
	return b.prefix + ".cmd"
}

func (b *Bridge) EventSubject(eventType string) string {
	return b.prefix + ".events." + eventType
}

// Start subscribes to commands and begins publishing events
func (b *Bridge) Start() error {
	sub, err := b.conn.Subscribe(b.CommandSubject(), b.serve)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.CommandSubject(), err)
	}
	if err := b.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flush nats subscription: %w", err)
	}

	b.mu.Lock()
	b.sub = sub
	b.unsubscribe = b.service.Subscribe(b.publish)
	b.mu.Unlock()

	logger.Infof("NATS bridge listening on %s (instance %s)", b.CommandSubject(), b.instance)
	return nil
}

// Close stops serving. The connection stays open.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
	if b.sub != nil {
		if err := b.sub.Drain(); err != nil {
			logger.Debugf("nats: drain command subscription: %v", err)
		}
		b.sub = nil
	}
}

func (b *Bridge) publish(ev playback.Event) {
	msg := EventMessage{
		ID:        uuid.NewString(),
		Instance:  b.instance,
		Timestamp: time.Now().UTC(),
		Type:      ev.Type.String(),
		SessionID: ev.SessionID,
		State:     ev.State.String(),
	}
	if ev.Type == playback.Error {
		msg.Kind = ev.Kind.String()
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("nats: marshal event", err)
		return
	}
	if err := b.conn.Publish(b.EventSubject(msg.Type), data); err != nil {
		logger.Warnf("nats: publish event: %v", err)
	}
}

func (b *Bridge) serve(msg *nats.Msg) {
	var cmd Command
	var reply Reply
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		reply = failure(fmt.Errorf("invalid command: %w", err))
	} else {
		logger.Debugf("nats: command %q", cmd.Action)
		reply = b.execute(cmd)
	}

	data, err := json.Marshal(reply)
	if err != nil {
		logger.Error("nats: marshal reply", err)
		return
	}
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(data); err != nil {
		logger.Warnf("nats: respond: %v", err)
	}
}

func (b *Bridge) execute(cmd Command) Reply {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var (
		id   uint64
		list []voices.Descriptor
		err  error
	)
	switch cmd.Action {
	case "read":
		id, err = b.service.ReadSelection(ctx)
	case "play":
		id, err = b.service.Play(cmd.Text, cmd.Rate, cmd.Voice)
	case "pause":
		err = b.service.Pause(cmd.SessionID)
	case "resume":
		err = b.service.Resume(cmd.SessionID)
	case "toggle":
		err = b.service.TogglePause()
	case "stop":
		err = b.service.Stop(cmd.SessionID)
	case "rate":
		err = b.service.SetRate(cmd.SessionID, cmd.Rate)
	case "voice":
		err = b.service.SetVoice(ctx, cmd.SessionID, cmd.Voice)
	case "status":
		st := b.service.Status()
		return Reply{OK: true, SessionID: st.SessionID, Status: &st}
	case "voices":
		list, err = b.service.ListVoices(ctx)
	case "refresh":
		list, err = b.service.RefreshVoices(ctx)
	default:
		err = fmt.Errorf("unknown action %q", cmd.Action)
	}

	if err != nil {
		return failure(err)
	}
	return Reply{OK: true, SessionID: id, Voices: list}
}

func failure(err error) Reply {
	r := Reply{Error: err.Error()}
	if k := apperr.KindOf(err); k != apperr.KindNone {
		r.Kind = k.String()
	}
	return r
}

// Request sends cmd to a daemon listening under prefix
func Request(conn *nats.Conn, prefix string, cmd Command) (Reply, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return Reply{}, err
	}
	msg, err := conn.Request(prefix+".cmd", data, commandTimeout)
	if err != nil {
		return Reply{}, fmt.Errorf("nats request: %w", err)
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	if !reply.OK {
		return reply, replyError(reply)
	}
	return reply, nil
}

func replyError(r Reply) error {
	err := errors.New(r.Error)
	if k, ok := apperr.ParseKind(r.Kind); ok && k != apperr.KindNone {
		return apperr.New(k, 0, err)
	}
	return err
}
