// Package inject sends a synthetic copy gesture to the focused window.
package inject

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/types"
	"github.com/go-vgo/robotgo"
)

// Injector triggers "copy" in whatever window has focus. It knows nothing
// about what gets copied.
type Injector interface {
	Name() string
	TriggerCopy(ctx context.Context) error
}

type runFunc func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if env != nil {
		cmd.Env = append(os.Environ(), env...)
	}
	return cmd.CombinedOutput()
}

var lookPath = exec.LookPath

// New returns the injector named by kind: "auto", "robotgo", "xdotool" or "ydotool"
func New(kind string, ydotoolCfg types.YdotoolConfig) (Injector, error) {
	switch kind {
	case "robotgo":
		return NewRobotgoInjector(), nil
	case "xdotool":
		return &XdotoolInjector{run: execRun}, nil
	case "ydotool":
		return &YdotoolInjector{socketPath: ydotoolCfg.SocketPath, run: execRun}, nil
	case "", "auto":
		inj := detect(ydotoolCfg)
		logger.Debugf("inject: using %s", inj.Name())
		return inj, nil
	default:
		return nil, fmt.Errorf("unknown injector %q", kind)
	}
}

func detect(ydotoolCfg types.YdotoolConfig) Injector {
	if runtime.GOOS == "darwin" {
		return NewRobotgoInjector()
	}
	if isWayland() {
		if _, err := lookPath("ydotool"); err == nil {
			return &YdotoolInjector{socketPath: ydotoolCfg.SocketPath, run: execRun}
		}
	}
	// --clearmodifiers releases the shortcut keys the user may still hold
	if _, err := lookPath("xdotool"); err == nil {
		return &XdotoolInjector{run: execRun}
	}
	return NewRobotgoInjector()
}

// isWayland checks if the current session is running Wayland
func isWayland() bool {
	return strings.ToLower(os.Getenv("XDG_SESSION_TYPE")) == "wayland"
}

func injectionFailed(tool string, err error, output []byte) error {
	if len(output) > 0 {
		return fmt.Errorf("%s: %w: %v: %s", tool, apperr.ErrInjectionFailed, err, strings.TrimSpace(string(output)))
	}
	return fmt.Errorf("%s: %w: %v", tool, apperr.ErrInjectionFailed, err)
}

// RobotgoInjector taps the copy shortcut through robotgo (X11 and macOS)
type RobotgoInjector struct {
	modifier string
	keyTap   func(key string, args ...interface{}) error
}

func NewRobotgoInjector() *RobotgoInjector {
	modifier := "ctrl"
	if runtime.GOOS == "darwin" {
		modifier = "cmd"
	}
	return &RobotgoInjector{modifier: modifier, keyTap: robotgo.KeyTap}
}

func (r *RobotgoInjector) Name() string { return "robotgo" }

func (r *RobotgoInjector) TriggerCopy(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.keyTap("c", r.modifier); err != nil {
		return injectionFailed("robotgo", err, nil)
	}
	return nil
}

// XdotoolInjector runs xdotool key --clearmodifiers ctrl+c
type XdotoolInjector struct {
	run runFunc
}

func (x *XdotoolInjector) Name() string { return "xdotool" }

func (x *XdotoolInjector) TriggerCopy(ctx context.Context) error {
	out, err := x.run(ctx, nil, "xdotool", "key", "--clearmodifiers", "ctrl+c")
	if err != nil {
		return injectionFailed("xdotool", err, out)
	}
	return nil
}

// YdotoolInjector presses Ctrl+C through the ydotoold uinput daemon (Wayland)
type YdotoolInjector struct {
	socketPath string
	run        runFunc
}

func (y *YdotoolInjector) Name() string { return "ydotool" }

func (y *YdotoolInjector) TriggerCopy(ctx context.Context) error {
	var env []string
	if y.socketPath != "" {
		env = []string{"YDOTOOL_SOCKET=" + y.socketPath}
	}
	// 29 = KEY_LEFTCTRL, 46 = KEY_C
	out, err := y.run(ctx, env, "ydotool", "key", "29:1", "46:1", "46:0", "29:0")
	if err != nil {
		return injectionFailed("ydotool", err, out)
	}
	return nil
}
