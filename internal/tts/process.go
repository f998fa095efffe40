package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/dooshek/readaloud/internal/apperr"
)

// runFunc runs an engine process to completion
type runFunc func(ctx context.Context, name string, args []string, stdin string) error

// outputFunc runs a short-lived query command and returns its stdout
type outputFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func commandOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// processRunner returns a runFunc that asks the engine to exit with SIGTERM
// when ctx ends and kills it if it is still alive after grace. The engine
// runs in its own process group so pipelines started through sh go down
// with it.
func processRunner(grace time.Duration) runFunc {
	if grace <= 0 {
		grace = 500 * time.Millisecond
	}
	return func(ctx context.Context, name string, args []string, stdin string) error {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdin = strings.NewReader(stdin)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		cmd.Cancel = func() error {
			return signalGroup(cmd.Process.Pid, syscall.SIGTERM)
		}
		cmd.WaitDelay = grace

		err := cmd.Run()
		if ctx.Err() != nil {
			// the leader is gone; whatever is left of the group has had its grace
			if cmd.Process != nil {
				_ = signalGroup(cmd.Process.Pid, syscall.SIGKILL)
			}
			return ctx.Err()
		}
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return fmt.Errorf("%s: %w: %v: %s", name, apperr.ErrBackendFailure, err, msg)
			}
			return fmt.Errorf("%s: %w: %v", name, apperr.ErrBackendFailure, err)
		}
		return nil
	}
}

func signalGroup(pgid int, sig syscall.Signal) error {
	err := syscall.Kill(-pgid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
