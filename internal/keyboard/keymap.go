package keyboard

import "strings"

// X11 keysyms of modifier keys, as reported by gohook
const (
	X11LeftControl  uint16 = 65507
	X11RightControl uint16 = 65508
	X11LeftShift    uint16 = 65505
	X11RightShift   uint16 = 65506
	X11LeftAlt      uint16 = 65513
	X11RightAlt     uint16 = 65027
	X11Super        uint16 = 65515
)

// evdev (linux/input-event-codes.h) codes of modifier keys
const (
	EvdevLeftControl  uint16 = 29
	EvdevRightControl uint16 = 97
	EvdevLeftShift    uint16 = 42
	EvdevRightShift   uint16 = 54
	EvdevLeftAlt      uint16 = 56
	EvdevRightAlt     uint16 = 100
	EvdevLeftMeta     uint16 = 125
	EvdevRightMeta    uint16 = 126
)

// X11KeyMap names the non-printing keysyms a shortcut can use. Printable
// keysyms equal their Latin-1 code and are named by that character.
var X11KeyMap = map[uint16]string{
	32: "space", 65307: "escape", 65289: "tab", 65293: "enter",
	65470: "f1", 65471: "f2", 65472: "f3", 65473: "f4", 65474: "f5", 65475: "f6",
	65476: "f7", 65477: "f8", 65478: "f9", 65479: "f10", 65480: "f11", 65481: "f12",
}

// EvdevKeyMap maps evdev codes to key names
var EvdevKeyMap = map[uint16]string{
	30: "a", 48: "b", 46: "c", 32: "d", 18: "e", 33: "f", 34: "g", 35: "h",
	23: "i", 36: "j", 37: "k", 38: "l", 50: "m", 49: "n", 24: "o", 25: "p",
	16: "q", 19: "r", 31: "s", 20: "t", 22: "u", 47: "v", 17: "w", 45: "x",
	21: "y", 44: "z",
	11: "0", 2: "1", 3: "2", 4: "3", 5: "4", 6: "5", 7: "6", 8: "7", 9: "8", 10: "9",
	41: "`", 26: "[", 27: "]", 43: "\\", 39: ";", 40: "'", 51: ",", 52: ".", 53: "/", 12: "-", 13: "=",
	57: "space", 1: "escape", 15: "tab", 28: "enter",
	59: "f1", 60: "f2", 61: "f3", 62: "f4", 63: "f5", 64: "f6",
	65: "f7", 66: "f8", 67: "f9", 68: "f10", 87: "f11", 88: "f12",
}

// x11KeyName names a keysym the way shortcuts are written in the config
func x11KeyName(code uint16, char rune) string {
	if name, ok := X11KeyMap[code]; ok {
		return name
	}
	if code > 32 && code < 127 {
		return strings.ToLower(string(rune(code)))
	}
	if char > 32 && char < 127 {
		return strings.ToLower(string(char))
	}
	return ""
}

func evdevModifier(code uint16) (modifier, bool) {
	switch code {
	case EvdevLeftControl, EvdevRightControl:
		return modCtrl, true
	case EvdevLeftShift, EvdevRightShift:
		return modShift, true
	case EvdevLeftAlt, EvdevRightAlt:
		return modAlt, true
	case EvdevLeftMeta, EvdevRightMeta:
		return modSuper, true
	}
	return 0, false
}

func x11Modifier(code uint16) (modifier, bool) {
	switch code {
	case X11LeftControl, X11RightControl:
		return modCtrl, true
	case X11LeftShift, X11RightShift:
		return modShift, true
	case X11LeftAlt, X11RightAlt:
		return modAlt, true
	case X11Super:
		return modSuper, true
	}
	return 0, false
}
