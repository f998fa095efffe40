package dbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/playback"
	"github.com/dooshek/readaloud/internal/voices"
	"github.com/godbus/dbus/v5"
)

// Client talks to a running daemon
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

func NewClient() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{conn: conn, obj: conn.Object(dbusServiceName, dbusObjectPath)}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(method string, args ...interface{}) *dbus.Call {
	return c.obj.Call(dbusInterface+"."+method, 0, args...)
}

func (c *Client) ReadSelection() (uint64, error) {
	var id uint64
	err := c.call("ReadSelection").Store(&id)
	return id, fromDBusError(err)
}

func (c *Client) Play(text string, rate float64, voice string) (uint64, error) {
	var id uint64
	err := c.call("Play", text, rate, voice).Store(&id)
	return id, fromDBusError(err)
}

func (c *Client) Pause(id uint64) error  { return fromDBusError(c.call("Pause", id).Err) }
func (c *Client) Resume(id uint64) error { return fromDBusError(c.call("Resume", id).Err) }
func (c *Client) Stop(id uint64) error   { return fromDBusError(c.call("Stop", id).Err) }

func (c *Client) TogglePause() error {
	return fromDBusError(c.call("TogglePause").Err)
}

func (c *Client) Status() (playback.Status, error) {
	var st playback.Status
	err := c.callJSON("Status", &st)
	if err == nil {
		st.State, _ = playback.ParseState(st.StateName)
	}
	return st, err
}

func (c *Client) ListVoices() ([]voices.Descriptor, error) {
	var list []voices.Descriptor
	return list, c.callJSON("ListVoices", &list)
}

func (c *Client) RefreshVoices() ([]voices.Descriptor, error) {
	var list []voices.Descriptor
	return list, c.callJSON("RefreshVoices", &list)
}

// GetStats returns the raw statistics JSON
func (c *Client) GetStats() (string, error) {
	var out string
	err := c.call("GetStats").Store(&out)
	return out, fromDBusError(err)
}

func (c *Client) ResetStats() error {
	return fromDBusError(c.call("ResetStats").Err)
}

func (c *Client) callJSON(method string, v interface{}) error {
	var out string
	if err := c.call(method).Store(&out); err != nil {
		return fromDBusError(err)
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		return fmt.Errorf("failed to decode %s reply: %w", method, err)
	}
	return nil
}

// fromDBusError restores the apperr kind encoded in a daemon error name
func fromDBusError(err error) error {
	if err == nil {
		return nil
	}

	var de dbus.Error
	var dep *dbus.Error
	switch {
	case errors.As(err, &de):
	case errors.As(err, &dep):
		de = *dep
	default:
		return err
	}

	msg := de.Error()
	if name, ok := strings.CutPrefix(de.Name, dbusErrorPrefix); ok {
		if k, ok := apperr.ParseKind(name); ok {
			return apperr.New(k, 0, errors.New(msg))
		}
	}
	return errors.New(msg)
}
