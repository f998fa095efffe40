package keyboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/types"
)

// Action is what a global shortcut asks the reader to do
type Action int

const (
	ActionRead Action = iota
	ActionTogglePause
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionTogglePause:
		return "pause"
	case ActionStop:
		return "stop"
	}
	return "unknown"
}

// Handler is called on its own goroutine for every recognised shortcut
type Handler func(Action)

// Shortcut binds a key combination to an action
type Shortcut struct {
	Binding types.KeyBinding
	Action  Action
}

// ModifierState tracks the state of modifier keys (Ctrl, Shift, Alt, Super)
type ModifierState struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Super bool
}

type modifier int

const (
	modCtrl modifier = iota
	modShift
	modAlt
	modSuper
)

// KeyboardMonitor interface defines the contract for keyboard monitoring implementations
type KeyboardMonitor interface {
	Start(ctx context.Context) error
	Stop()
}

// debounceInterval drops repeats of the same shortcut, including the
// press and typed events some hooks report for one keystroke
const debounceInterval = 300 * time.Millisecond

// matcher turns key transitions into actions
type matcher struct {
	shortcuts []Shortcut
	mods      ModifierState
	last      map[Action]time.Time
	now       func() time.Time
	mu        sync.Mutex
}

func newMatcher(shortcuts []Shortcut) *matcher {
	return &matcher{
		shortcuts: shortcuts,
		last:      make(map[Action]time.Time),
		now:       time.Now,
	}
}

func (m *matcher) setModifier(mod modifier, down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch mod {
	case modCtrl:
		m.mods.Ctrl = down
	case modShift:
		m.mods.Shift = down
	case modAlt:
		m.mods.Alt = down
	case modSuper:
		m.mods.Super = down
	}
}

// keyDown reports the action bound to key with the current modifiers
func (m *matcher) keyDown(key string) (Action, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key = strings.ToLower(key)
	for _, s := range m.shortcuts {
		if !strings.EqualFold(s.Binding.Key, key) || !m.modifiersMatch(s.Binding) {
			continue
		}
		now := m.now()
		if last, ok := m.last[s.Action]; ok && now.Sub(last) < debounceInterval {
			logger.Debugf("Ignoring %s shortcut - too soon after previous (%d ms)", s.Action, now.Sub(last).Milliseconds())
			return 0, false
		}
		m.last[s.Action] = now
		return s.Action, true
	}
	return 0, false
}

// modifiersMatch verifies if current modifier state matches the binding
func (m *matcher) modifiersMatch(kb types.KeyBinding) bool {
	return m.mods.Ctrl == kb.Ctrl &&
		m.mods.Shift == kb.Shift &&
		m.mods.Alt == kb.Alt &&
		m.mods.Super == kb.Super
}

// ShortcutsFrom lists the configured shortcuts
func ShortcutsFrom(cfg types.ShortcutsConfig) []Shortcut {
	return []Shortcut{
		{Binding: cfg.Read, Action: ActionRead},
		{Binding: cfg.Pause, Action: ActionTogglePause},
		{Binding: cfg.Stop, Action: ActionStop},
	}
}

// CreateMonitor creates the keyboard monitor named in cfg.Backend
func CreateMonitor(cfg types.ShortcutsConfig, handler Handler) (KeyboardMonitor, error) {
	shortcuts := ShortcutsFrom(cfg)
	for _, s := range shortcuts {
		logger.Debugf("Shortcut %s: %s", s.Action, FormatBinding(s.Binding))
	}

	switch cfg.Backend {
	case "evdev":
		return NewEvdevMonitor(shortcuts, handler), nil
	case "hook":
		return NewHookMonitor(shortcuts, handler), nil
	}
	return nil, fmt.Errorf("unsupported shortcut backend: %s (supported: evdev, hook)", cfg.Backend)
}

// FormatBinding renders a binding as "ctrl+alt+r"
func FormatBinding(kc types.KeyCombo) string {
	var parts []string
	if kc.HasCtrl() {
		parts = append(parts, "ctrl")
	}
	if kc.HasShift() {
		parts = append(parts, "shift")
	}
	if kc.HasAlt() {
		parts = append(parts, "alt")
	}
	if kc.HasSuper() {
		parts = append(parts, "super")
	}
	return strings.Join(append(parts, kc.GetKey()), "+")
}
