package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/logger"
)

// tool describes one command line clipboard utility
type tool struct {
	name        string
	read        []string
	write       []string
	readPrimary []string // nil when the tool has no primary selection
	// stderr fragments that mean "nothing to paste" rather than failure
	emptyMarkers []string
}

var tools = map[string]tool{
	"xclip": {
		name:         "xclip",
		read:         []string{"-selection", "clipboard", "-o"},
		write:        []string{"-selection", "clipboard", "-i"},
		readPrimary:  []string{"-selection", "primary", "-o"},
		emptyMarkers: []string{"target STRING not available", "target UTF8_STRING not available"},
	},
	"xsel": {
		name:        "xsel",
		read:        []string{"--clipboard", "--output"},
		write:       []string{"--clipboard", "--input"},
		readPrimary: []string{"--primary", "--output"},
	},
	"wl-paste": {
		name:         "wl-paste",
		read:         []string{"--no-newline"},
		write:        nil, // wl-copy
		readPrimary:  []string{"--primary", "--no-newline"},
		emptyMarkers: []string{"Nothing is copied", "No selection", "No suitable type of content"},
	},
	"pbpaste": {
		name: "pbpaste",
		read: []string{},
	},
}

// runFunc runs a command and returns its stdout and stderr
type runFunc func(ctx context.Context, stdin *string, name string, args ...string) (stdout, stderr []byte, err error)

func execRun(ctx context.Context, stdin *string, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	if stdin != nil {
		// xclip and wl-copy fork to serve the selection; leaving stdout
		// unattached lets Run return once the parent exits.
		cmd.Stdin = strings.NewReader(*stdin)
		cmd.Stderr = &stderr
		err := cmd.Run()
		return nil, stderr.Bytes(), err
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// CommandBridge talks to the clipboard through xclip, xsel, wl-clipboard or
// pbcopy/pbpaste
type CommandBridge struct {
	reader  tool
	writer  string
	timeout time.Duration
	run     runFunc
}

// NewCommandBridge picks the clipboard tool for the current session
func NewCommandBridge(timeout time.Duration) (*CommandBridge, error) {
	switch {
	case isDarwin():
		return newCommandBridge(tools["pbpaste"], "pbcopy", timeout, execRun), nil
	case isWayland():
		if _, err := lookPath("wl-paste"); err == nil {
			if _, err := lookPath("wl-copy"); err == nil {
				return newCommandBridge(tools["wl-paste"], "wl-copy", timeout, execRun), nil
			}
		}
		logger.Debug("clipboard: wl-clipboard not found, trying X11 tools through XWayland")
	}

	for _, name := range []string{"xclip", "xsel"} {
		if _, err := lookPath(name); err == nil {
			return newCommandBridge(tools[name], name, timeout, execRun), nil
		}
	}
	return nil, errors.New("none of xclip, xsel, wl-clipboard is installed")
}

func newCommandBridge(reader tool, writer string, timeout time.Duration, run runFunc) *CommandBridge {
	return &CommandBridge{reader: reader, writer: writer, timeout: timeout, run: run}
}

// Tool returns the name of the reading tool
func (b *CommandBridge) Tool() string {
	return b.reader.name
}

func (b *CommandBridge) Read(ctx context.Context) (string, bool, error) {
	return b.read(ctx, b.reader.read)
}

func (b *CommandBridge) ReadPrimary(ctx context.Context) (string, bool, error) {
	if b.reader.readPrimary == nil {
		return "", false, nil
	}
	return b.read(ctx, b.reader.readPrimary)
}

func (b *CommandBridge) read(ctx context.Context, args []string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	stdout, stderr, err := b.run(ctx, nil, b.reader.name, args...)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, fmt.Errorf("%s: %w", b.reader.name, apperr.ErrClipboardTimeout)
		}
		msg := string(stderr)
		for _, marker := range b.reader.emptyMarkers {
			if strings.Contains(msg, marker) {
				return "", false, nil
			}
		}
		return "", false, fmt.Errorf("%s failed: %w: %s", b.reader.name, err, strings.TrimSpace(msg))
	}
	return string(stdout), true, nil
}

func (b *CommandBridge) Write(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	args := writeArgs(b.writer)
	_, stderr, err := b.run(ctx, &text, b.writer, args...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", b.writer, apperr.ErrClipboardTimeout)
		}
		return fmt.Errorf("%s failed: %w: %s", b.writer, err, strings.TrimSpace(string(stderr)))
	}
	return nil
}

func writeArgs(writer string) []string {
	if t, ok := tools[writer]; ok && t.write != nil {
		return t.write
	}
	return nil
}
