package notification

import (
	"context"
	"os/exec"
	"runtime"
	"time"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/logger"
)

const appTitle = "Read Aloud"

// sendTimeout bounds a single notify-send or osascript call
const sendTimeout = 5 * time.Second

// Notifier defines the interface for desktop notifications
type Notifier interface {
	Notify(title, message string) error
	NotifyCaptureFailed(err error) error
	NotifyPlaybackFailed(err error) error
}

// SilentNotifier is a no-op implementation for headless runs and tests
type SilentNotifier struct{}

func NewSilent() Notifier {
	return &SilentNotifier{}
}

func (s *SilentNotifier) Notify(title, message string) error { return nil }
func (s *SilentNotifier) NotifyCaptureFailed(err error) error { return nil }
func (s *SilentNotifier) NotifyPlaybackFailed(err error) error {
	return nil
}

type runFunc func(ctx context.Context, name string, args ...string) error

func execRun(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

type baseNotifier struct {
	platform platformNotifier
}

type platformNotifier interface {
	send(title, message string) error
}

// New creates a new platform-specific notification service
func New() Notifier {
	logger.Debug("Initializing notification system")
	var platform platformNotifier
	switch runtime.GOOS {
	case "darwin":
		logger.Debug("Using Darwin (macOS) notifier")
		platform = newDarwinNotifier(execRun)
	default:
		logger.Debug("Using Linux notifier")
		platform = newLinuxNotifier(execRun)
	}
	return &baseNotifier{platform: platform}
}

func (n *baseNotifier) Notify(title, message string) error {
	return n.platform.send(title, message)
}

func (n *baseNotifier) NotifyCaptureFailed(err error) error {
	return n.Notify(appTitle, captureMessage(err))
}

func (n *baseNotifier) NotifyPlaybackFailed(err error) error {
	return n.Notify(appTitle, playbackMessage(err))
}

func captureMessage(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindEmptySelection:
		return "Nothing is selected"
	case apperr.KindClipboardTimeout:
		return "The clipboard did not respond"
	case apperr.KindInjectionFailed:
		return "Could not send the copy shortcut to the focused window"
	case apperr.KindSelectionUncertain:
		return "The selection may be stale; reading the clipboard as is"
	}
	return "Could not read the selection"
}

func playbackMessage(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindUnknownVoice:
		return "The configured voice is not installed"
	case apperr.KindBackendFailure:
		return "The speech engine failed"
	}
	return "Playback failed"
}
