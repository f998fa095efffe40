package keyboard

import (
	"context"
	"sync"

	"github.com/dooshek/readaloud/internal/logger"
	hook "github.com/robotn/gohook"
)

// HookMonitor uses the X11 record extension (or the native macOS hook)
// through gohook. It needs no device permissions but does not see Wayland
// native windows.
type HookMonitor struct {
	matcher *matcher
	handler Handler

	once sync.Once
}

func NewHookMonitor(shortcuts []Shortcut, handler Handler) *HookMonitor {
	return &HookMonitor{matcher: newMatcher(shortcuts), handler: handler}
}

func (h *HookMonitor) Start(ctx context.Context) error {
	evChan := hook.Start()
	defer h.Stop()
	logger.Debug("Listening for shortcuts through gohook")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-evChan:
			if !ok {
				return nil
			}
			h.handle(ev)
		}
	}
}

func (h *HookMonitor) handle(ev hook.Event) {
	code := uint16(ev.Rawcode)
	down := ev.Kind == hook.KeyHold || ev.Kind == hook.KeyDown
	up := ev.Kind == hook.KeyUp
	if !down && !up {
		return
	}

	if mod, ok := x11Modifier(code); ok {
		h.matcher.setModifier(mod, down)
		return
	}
	if !down {
		return
	}
	if action, ok := h.matcher.keyDown(x11KeyName(code, ev.Keychar)); ok {
		logger.Debugf("Detected %s shortcut", action)
		go h.handler(action)
	}
}

func (h *HookMonitor) Stop() {
	h.once.Do(hook.End)
}
