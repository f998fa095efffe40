// Package apperr holds the error taxonomy shared by capture, playback and the
// control surfaces.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that react to categories rather than
// to individual error values.
type Kind int

const (
	KindNone Kind = iota
	KindClipboardTimeout
	KindInjectionFailed
	KindSelectionUncertain
	KindEmptySelection
	KindUnknownVoice
	KindRateClamped
	KindBackendFailure
	KindStaleSession
)

// ErrClipboardTimeout is returned when a clipboard read or write does not
// complete within its timeout.
var ErrClipboardTimeout = errors.New("clipboard timeout")

// ErrInjectionFailed is returned when the platform refuses synthetic input.
var ErrInjectionFailed = errors.New("input injection failed")

// ErrSelectionUncertain signals that the clipboard did not change after the
// copy gesture. Advisory.
var ErrSelectionUncertain = errors.New("selection uncertain")

// ErrEmptySelection is returned when there is no text to speak.
var ErrEmptySelection = errors.New("empty selection")

// ErrUnknownVoice is returned when a voice id is not in the catalog.
var ErrUnknownVoice = errors.New("unknown voice")

// ErrRateClamped signals that the requested rate was outside the voice's
// range and was clamped. Advisory.
var ErrRateClamped = errors.New("rate clamped")

// ErrBackendFailure is returned when the speech engine crashed or exited
// with an error.
var ErrBackendFailure = errors.New("backend failure")

// ErrStaleSession marks a result from a superseded playback session.
var ErrStaleSession = errors.New("stale session")

var sentinels = map[Kind]error{
	KindClipboardTimeout:   ErrClipboardTimeout,
	KindInjectionFailed:    ErrInjectionFailed,
	KindSelectionUncertain: ErrSelectionUncertain,
	KindEmptySelection:     ErrEmptySelection,
	KindUnknownVoice:       ErrUnknownVoice,
	KindRateClamped:        ErrRateClamped,
	KindBackendFailure:     ErrBackendFailure,
	KindStaleSession:       ErrStaleSession,
}

var kindNames = map[Kind]string{
	KindNone:               "none",
	KindClipboardTimeout:   "clipboard_timeout",
	KindInjectionFailed:    "injection_failed",
	KindSelectionUncertain: "selection_uncertain",
	KindEmptySelection:     "empty_selection",
	KindUnknownVoice:       "unknown_voice",
	KindRateClamped:        "rate_clamped",
	KindBackendFailure:     "backend_failure",
	KindStaleSession:       "stale_session",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindNone, false
}

// Advisory reports whether errors of this kind are informational and never
// abort an operation.
func (k Kind) Advisory() bool {
	return k == KindSelectionUncertain || k == KindRateClamped
}

// Sentinel returns the sentinel error for k, or nil for KindNone.
func (k Kind) Sentinel() error {
	return sentinels[k]
}

// Error carries a Kind and the playback session it belongs to.
type Error struct {
	Kind      Kind
	SessionID uint64
	Err       error
}

// New wraps err with kind and session context. A nil err is replaced by the
// kind's sentinel.
func New(kind Kind, sessionID uint64, err error) *Error {
	if err == nil {
		err = kind.Sentinel()
	}
	return &Error{Kind: kind, SessionID: sessionID, Err: err}
}

func (e *Error) Error() string {
	if e.SessionID != 0 {
		return fmt.Sprintf("session %d: %s: %v", e.SessionID, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match an *Error against its kind's sentinel even when Err
// is some other error.
func (e *Error) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// KindOf classifies err. Unclassified errors return KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	for k := KindClipboardTimeout; k <= KindStaleSession; k++ {
		if errors.Is(err, sentinels[k]) {
			return k
		}
	}
	return KindNone
}
