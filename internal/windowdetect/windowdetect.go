// Package windowdetect reports which window has keyboard focus. Capture uses
// it for diagnostics only.
package windowdetect

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
)

// WindowInfo contains information about the focused window
type WindowInfo struct {
	ID      string
	Title   string
	AppName string
}

// Detector defines the interface for window detection
type Detector interface {
	GetFocusedWindow(ctx context.Context) (*WindowInfo, error)
}

// ErrUnsupported is returned when no detection tool is available
var ErrUnsupported = errors.New("focused window detection unavailable")

type outputFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func commandOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// New creates a new platform-specific window detector
func New() (Detector, error) {
	switch runtime.GOOS {
	case "darwin":
		return &darwinDetector{output: commandOutput}, nil
	default:
		if _, err := exec.LookPath("xdotool"); err != nil {
			return nil, ErrUnsupported
		}
		return &linuxDetector{output: commandOutput}, nil
	}
}
