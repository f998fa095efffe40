// Package clipboard reads and writes the system clipboard.
package clipboard

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/dooshek/readaloud/internal/logger"
)

// Bridge is a clipboard that can be read and written as text. Read reports
// present=false when the clipboard holds no text. Both calls finish within
// the bridge timeout or fail with apperr.ErrClipboardTimeout.
type Bridge interface {
	Read(ctx context.Context) (text string, present bool, err error)
	Write(ctx context.Context, text string) error
}

// PrimaryReader reads the X11/Wayland PRIMARY selection, which holds the
// highlighted text without any copy gesture.
type PrimaryReader interface {
	ReadPrimary(ctx context.Context) (text string, present bool, err error)
}

var lookPath = exec.LookPath

// New returns a bridge for backend "auto", "command" or "native"
func New(backend string, timeout time.Duration) (Bridge, error) {
	switch backend {
	case "command":
		return NewCommandBridge(timeout)
	case "native":
		return NewNativeBridge(timeout)
	case "", "auto":
		b, err := NewCommandBridge(timeout)
		if err == nil {
			logger.Debugf("clipboard: using %s", b.Tool())
			return b, nil
		}
		logger.Debugf("clipboard: no command line tool (%v), using native clipboard", err)
		return NewNativeBridge(timeout)
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q", backend)
	}
}

// isWayland checks if the current session is running Wayland
func isWayland() bool {
	if strings.ToLower(os.Getenv("XDG_SESSION_TYPE")) == "wayland" {
		return true
	}
	return os.Getenv("WAYLAND_DISPLAY") != ""
}

func isDarwin() bool {
	return runtime.GOOS == "darwin"
}
