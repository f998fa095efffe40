// Package selection obtains the text the user has selected in a foreign
// application by copying it through the clipboard and putting the clipboard
// back afterwards.
package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dooshek/readaloud/internal/apperr"
	"github.com/dooshek/readaloud/internal/clipboard"
	"github.com/dooshek/readaloud/internal/inject"
	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/windowdetect"
)

// Snapshot is the clipboard content saved before the copy gesture. It lives
// only as long as one capture.
type Snapshot struct {
	Content    string
	Present    bool
	CapturedAt time.Time
}

type Source string

const (
	SourceClipboard Source = "clipboard"
	SourcePrimary   Source = "primary"
)

// Result is a captured selection
type Result struct {
	Text      string
	Source    Source
	Uncertain bool // clipboard never changed; Text is whatever it held
	Attempts  int
	Window    *windowdetect.WindowInfo
	// RestoreErr is set when the original clipboard could not be put back.
	// The captured text is still valid.
	RestoreErr error
}

// Advisory returns apperr.ErrSelectionUncertain for uncertain results
func (r Result) Advisory() error {
	if r.Uncertain {
		return apperr.ErrSelectionUncertain
	}
	return nil
}

// Options tune a Capturer. Zero values take the defaults.
type Options struct {
	PollInterval  time.Duration
	MaxAttempts   int
	PreferPrimary bool
	Primary       clipboard.PrimaryReader
	Windows       windowdetect.Detector
}

// Capturer runs the snapshot, copy, poll, restore sequence
type Capturer struct {
	bridge   clipboard.Bridge
	injector inject.Injector
	opts     Options
	now      func() time.Time
}

func NewCapturer(bridge clipboard.Bridge, injector inject.Injector, opts Options) *Capturer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 25 * time.Millisecond
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 20
	}
	return &Capturer{bridge: bridge, injector: injector, opts: opts, now: time.Now}
}

// Capture returns the current selection. When restore is true the clipboard
// content seen before the copy gesture is written back on every exit path.
func (c *Capturer) Capture(ctx context.Context, restore bool) (res Result, err error) {
	if c.opts.PreferPrimary && c.opts.Primary != nil {
		if text, ok := c.readPrimary(ctx); ok {
			return Result{Text: text, Source: SourcePrimary}, nil
		}
	}

	res.Source = SourceClipboard
	res.Window = c.focusedWindow(ctx)

	snap, err := c.snapshot(ctx)
	if err != nil {
		return Result{}, clipboardError("snapshot clipboard", err)
	}

	if restore && snap.Present {
		defer func() {
			res.RestoreErr = c.restore(ctx, snap)
		}()
	}

	if err := c.injector.TriggerCopy(ctx); err != nil {
		return res, apperr.New(apperr.KindInjectionFailed, 0, err)
	}

	text, attempts, changed, err := c.poll(ctx, snap)
	res.Attempts = attempts
	if err != nil {
		return res, err
	}
	if !changed {
		logger.Debugf("selection: clipboard unchanged after %d attempts", attempts)
		res.Uncertain = true
	}

	res.Text = strings.TrimSpace(text)
	if res.Text == "" {
		return res, apperr.New(apperr.KindEmptySelection, 0, nil)
	}
	return res, nil
}

func (c *Capturer) snapshot(ctx context.Context) (Snapshot, error) {
	content, present, err := c.bridge.Read(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Content: content, Present: present, CapturedAt: c.now()}, nil
}

// poll reads the clipboard until it differs from snap or the attempt budget
// runs out. Without a change it yields the last content read.
func (c *Capturer) poll(ctx context.Context, snap Snapshot) (text string, attempts int, changed bool, err error) {
	timer := time.NewTimer(c.opts.PollInterval)
	defer timer.Stop()

	var lastErr error
	read := false
	for attempts = 1; attempts <= c.opts.MaxAttempts; attempts++ {
		select {
		case <-ctx.Done():
			return "", attempts, false, fmt.Errorf("selection capture: %w", ctx.Err())
		case <-timer.C:
		}

		content, present, rerr := c.bridge.Read(ctx)
		if rerr != nil {
			lastErr = rerr
			logger.Debugf("selection: read attempt %d failed: %v", attempts, rerr)
		} else {
			read = true
			text = content
			if present && (!snap.Present || content != snap.Content) {
				return content, attempts, true, nil
			}
		}
		timer.Reset(c.opts.PollInterval)
	}
	attempts = c.opts.MaxAttempts

	if !read {
		return "", attempts, false, clipboardError("read copied text", lastErr)
	}
	return text, attempts, false, nil
}

// clipboardError keeps the ClipboardTimeout kind for bridge timeouts only;
// a broken tool is reported as it is
func clipboardError(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	if errors.Is(err, apperr.ErrClipboardTimeout) {
		return apperr.New(apperr.KindClipboardTimeout, 0, err)
	}
	return err
}

func (c *Capturer) restore(ctx context.Context, snap Snapshot) error {
	// restore even if the caller gave up
	if err := c.bridge.Write(context.WithoutCancel(ctx), snap.Content); err != nil {
		logger.Error("selection: failed to restore clipboard", err)
		return err
	}
	return nil
}

func (c *Capturer) readPrimary(ctx context.Context) (string, bool) {
	text, present, err := c.opts.Primary.ReadPrimary(ctx)
	if err != nil {
		logger.Debugf("selection: primary selection unavailable: %v", err)
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, present && text != ""
}

func (c *Capturer) focusedWindow(ctx context.Context) *windowdetect.WindowInfo {
	if c.opts.Windows == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	info, err := c.opts.Windows.GetFocusedWindow(ctx)
	if err != nil {
		logger.Debugf("selection: focused window unknown: %v", err)
		return nil
	}
	logger.Debugf("selection: copying from %q (%s)", info.Title, info.AppName)
	return info
}
