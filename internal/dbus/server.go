package dbus

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
	"github.com/dooshek/readaloud/internal/stats"
	"github.com/dooshek/readaloud/internal/voices"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	dbusServiceName = "com.dooshek.readaloud"
	dbusObjectPath  = "/com/dooshek/readaloud/Reader"
	dbusInterface   = "com.dooshek.readaloud.Reader"
	dbusErrorPrefix = "com.dooshek.readaloud.Error."
)

// callTimeout bounds capture and voice enumeration started by a D-Bus call
const callTimeout = 10 * time.Second

// Service is the part of the reader exposed on the bus
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

type emitter interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// Server implements the D-Bus service for the readaloud daemon
type Server struct {
	conn        *dbus.Conn
	service     Service
	stats       *stats.StatsManager
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc

	mu      sync.Mutex
	emitter emitter
}

// NewServer creates a new D-Bus server for service. stats may be nil.
func NewServer(service Service, sm *stats.StatsManager) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		service: service,
		stats:   sm,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the D-Bus server
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(dbusServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("name already taken")
	}

	if err := conn.Export(&methods{s}, dbusObjectPath, dbusInterface); err != nil {
		conn.Close()
		return fmt.Errorf("failed to export object: %w", err)
	}

	err = conn.Export(introspect.NewIntrospectable(introspection()), dbusObjectPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	s.conn = conn
	s.setEmitter(conn)
	s.unsubscribe = s.service.Subscribe(s.forward)

	logger.Infof("🔌 D-Bus service started: %s", dbusServiceName)
	return nil
}

// Close stops the D-Bus server
func (s *Server) Close() {
	s.cancel()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.setEmitter(nil)
	if s.conn != nil {
		s.conn.Close()
	}
	logger.Infof("🔌 D-Bus service stopped")
}

// Wait waits for the server context to be cancelled
func (s *Server) Wait() {
	<-s.ctx.Done()
}

func (s *Server) setEmitter(e emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitter = e
}

// forward turns playback events into signals
func (s *Server) forward(ev playback.Event) {
	switch ev.Type {
	case playback.StateChanged:
		s.emitSignal("StateChanged", ev.SessionID, ev.State.String())
	case playback.Error:
		msg := ""
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		s.emitSignal("Error", ev.SessionID, ev.Kind.String(), msg)
	}
}

// emitSignal emits a D-Bus signal
func (s *Server) emitSignal(name string, args ...interface{}) {
	s.mu.Lock()
	e := s.emitter
	s.mu.Unlock()
	if e == nil {
		logger.Warnf("D-Bus: Cannot emit signal %s - no connection", name)
		return
	}

	if err := e.Emit(dbus.ObjectPath(dbusObjectPath), dbusInterface+"."+name, args...); err != nil {
		logger.Errorf("D-Bus: Failed to emit signal %s", err, name)
		return
	}
	logger.Debugf("D-Bus: Emitted signal: %s", name)
}

// toDBusError names the error after its apperr kind so clients can tell
// kinds apart
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	name := dbusErrorPrefix + "failed"
	if k := apperr.KindOf(err); k != apperr.KindNone {
		name = dbusErrorPrefix + k.String()
	}
	return dbus.NewError(name, []interface{}{err.Error()})
}

func jsonReply(v interface{}) (string, *dbus.Error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return string(data), nil
}

// methods holds the exported D-Bus methods. It is separate from Server so
// that the bus method Stop does not clash with server lifecycle.
type methods struct {
	s *Server
}

func (m *methods) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.s.ctx, callTimeout)
}

// ReadSelection captures the selection and speaks it (shortcut and tray click)
func (m *methods) ReadSelection() (uint64, *dbus.Error) {
	logger.Debug("D-Bus: ReadSelection called")
	ctx, cancel := m.callContext()
	defer cancel()
	id, err := m.s.service.ReadSelection(ctx)
	return id, toDBusError(err)
}

func (m *methods) Play(text string, rate float64, voice string) (uint64, *dbus.Error) {
	logger.Debugf("D-Bus: Play called (%d bytes)", len(text))
	id, err := m.s.service.Play(text, rate, voice)
	return id, toDBusError(err)
}

func (m *methods) Pause(id uint64) *dbus.Error {
	return toDBusError(m.s.service.Pause(id))
}

func (m *methods) Resume(id uint64) *dbus.Error {
	return toDBusError(m.s.service.Resume(id))
}

func (m *methods) Stop(id uint64) *dbus.Error {
	return toDBusError(m.s.service.Stop(id))
}

func (m *methods) TogglePause() *dbus.Error {
	return toDBusError(m.s.service.TogglePause())
}

func (m *methods) SetRate(id uint64, rate float64) *dbus.Error {
	return toDBusError(m.s.service.SetRate(id, rate))
}

func (m *methods) SetVoice(id uint64, voice string) *dbus.Error {
	ctx, cancel := m.callContext()
	defer cancel()
	return toDBusError(m.s.service.SetVoice(ctx, id, voice))
}

// Status returns the playback status as JSON
func (m *methods) Status() (string, *dbus.Error) {
	return jsonReply(m.s.service.Status())
}

// ListVoices returns the voice catalog as JSON
func (m *methods) ListVoices() (string, *dbus.Error) {
	ctx, cancel := m.callContext()
	defer cancel()
	list, err := m.s.service.ListVoices(ctx)
	if err != nil {
		return "", toDBusError(err)
	}
	return jsonReply(list)
}

func (m *methods) RefreshVoices() (string, *dbus.Error) {
	ctx, cancel := m.callContext()
	defer cancel()
	list, err := m.s.service.RefreshVoices(ctx)
	if err != nil {
		return "", toDBusError(err)
	}
	return jsonReply(list)
}

// GetStats returns usage statistics as JSON
func (m *methods) GetStats() (string, *dbus.Error) {
	if m.s.stats == nil {
		return "", toDBusError(errors.New("statistics are disabled"))
	}
	out, err := m.s.stats.GetStatsJSON()
	if err != nil {
		return "", toDBusError(err)
	}
	return out, nil
}

// ResetStats clears usage statistics
func (m *methods) ResetStats() *dbus.Error {
	if m.s.stats == nil {
		return toDBusError(errors.New("statistics are disabled"))
	}
	return toDBusError(m.s.stats.Reset())
}

func introspection() *introspect.Node {
	id := introspect.Arg{Name: "session_id", Type: "t", Direction: "in"}
	outID := introspect.Arg{Name: "session_id", Type: "t", Direction: "out"}
	outJSON := func(name string) introspect.Arg {
		return introspect.Arg{Name: name, Type: "s", Direction: "out"}
	}

	return &introspect.Node{
		Name: dbusObjectPath,
		Interfaces: []introspect.Interface{{
			Name: dbusInterface,
			Methods: []introspect.Method{
				{Name: "ReadSelection", Args: []introspect.Arg{outID}},
				{Name: "Play", Args: []introspect.Arg{
					{Name: "text", Type: "s", Direction: "in"},
					{Name: "rate", Type: "d", Direction: "in"},
					{Name: "voice", Type: "s", Direction: "in"},
					outID,
				}},
				{Name: "Pause", Args: []introspect.Arg{id}},
				{Name: "Resume", Args: []introspect.Arg{id}},
				{Name: "Stop", Args: []introspect.Arg{id}},
				{Name: "TogglePause"},
				{Name: "SetRate", Args: []introspect.Arg{id, {Name: "rate", Type: "d", Direction: "in"}}},
				{Name: "SetVoice", Args: []introspect.Arg{id, {Name: "voice", Type: "s", Direction: "in"}}},
				{Name: "Status", Args: []introspect.Arg{outJSON("status_json")}},
				{Name: "ListVoices", Args: []introspect.Arg{outJSON("voices_json")}},
				{Name: "RefreshVoices", Args: []introspect.Arg{outJSON("voices_json")}},
				{Name: "GetStats", Args: []introspect.Arg{outJSON("stats_json")}},
				{Name: "ResetStats"},
			},
			Signals: []introspect.Signal{
				{Name: "StateChanged", Args: []introspect.Arg{
					{Name: "session_id", Type: "t"},
					{Name: "state", Type: "s"},
				}},
				{Name: "Error", Args: []introspect.Arg{
					{Name: "session_id", Type: "t"},
					{Name: "kind", Type: "s"},
					{Name: "message", Type: "s"},
				}},
			},
		}},
	}
}
