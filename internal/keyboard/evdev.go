package keyboard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MarinX/keylogger"
	"github.com/dooshek/readaloud/internal/logger"
)

// EvdevMonitor reads /dev/input directly, so it works under Wayland as well
// as X11. The user needs to be in the input group.
type EvdevMonitor struct {
	matcher *matcher
	handler Handler

	mu       sync.Mutex
	keyboard *keylogger.KeyLogger
}

func NewEvdevMonitor(shortcuts []Shortcut, handler Handler) *EvdevMonitor {
	return &EvdevMonitor{matcher: newMatcher(shortcuts), handler: handler}
}

func (w *EvdevMonitor) Start(ctx context.Context) error {
	keyboards := keylogger.FindAllKeyboardDevices()
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found")
	}

	kbd, err := keylogger.New(keyboards[0])
	if err != nil {
		if strings.Contains(err.Error(), "permission denied") {
			fmt.Printf("Cannot access keyboard device.\n" +
				"Solution: \n" +
				"1. Add yourself to the input group: sudo usermod -aG input $USER \n" +
				"2. Log out and log back in (or restart your system) \n" +
				"3. Run the program again \n\n")
		}
		return fmt.Errorf("error initializing keylogger: %w", err)
	}
	logger.Debugf("Listening for shortcuts on %s", keyboards[0])

	w.mu.Lock()
	w.keyboard = kbd
	w.mu.Unlock()
	defer w.Stop()

	events := kbd.Read()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if e.Type != keylogger.EvKey {
				continue
			}
			w.handle(uint16(e.Code), e.KeyPress(), e.KeyRelease())
		}
	}
}

func (w *EvdevMonitor) handle(code uint16, press, release bool) {
	if mod, ok := evdevModifier(code); ok {
		if press || release {
			w.matcher.setModifier(mod, press)
		}
		return
	}
	if !press {
		return
	}
	if action, ok := w.matcher.keyDown(EvdevKeyMap[code]); ok {
		logger.Debugf("Detected %s shortcut", action)
		go w.handler(action)
	}
}

func (w *EvdevMonitor) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.keyboard != nil {
		w.keyboard.Close()
		w.keyboard = nil
	}
}
