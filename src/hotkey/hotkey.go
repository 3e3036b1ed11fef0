package hotkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// ErrInvalidHotkey is returned when a combination has no mappable keys.
var ErrInvalidHotkey = errors.New("invalid hotkey")

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// Matcher tracks key state for one combination such as "Ctrl+Alt+Q".
type Matcher struct {
	mu    sync.Mutex
	combo string
	keys  []keyState
}

func NewMatcher(combo string) (*Matcher, error) {
	m := &Matcher{combo: combo}
	for _, keyName := range parseHotkey(combo) {
		rawcodes := keyNameToRawcodes(keyName)
		if len(rawcodes) == 0 {
			return nil, fmt.Errorf("%w: cannot map key %q in %q", ErrInvalidHotkey, keyName, combo)
		}
		m.keys = append(m.keys, keyState{name: keyName, rawcodes: rawcodes})
	}
	if len(m.keys) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHotkey, combo)
	}
	return m, nil
}

func (m *Matcher) String() string { return m.combo }

// Feed updates key state from one hook event and reports whether the whole
// combination is now held. States reset on a match so holding the keys fires once.
func (m *Matcher) Feed(ev gohook.Event) bool {
	// gohook reports a physical press as KeyHold and the typed character as KeyDown.
	switch ev.Kind {
	case gohook.KeyDown, gohook.KeyHold:
		m.mu.Lock()
		defer m.mu.Unlock()
		m.mark(ev.Rawcode, true)
		for i := range m.keys {
			if !m.keys[i].pressed {
				return false
			}
		}
		for i := range m.keys {
			m.keys[i].pressed = false
		}
		return true
	case gohook.KeyUp:
		m.mu.Lock()
		defer m.mu.Unlock()
		m.mark(ev.Rawcode, false)
	}
	return false
}

func (m *Matcher) mark(rawcode uint16, pressed bool) {
	for i := range m.keys {
		for _, rc := range m.keys[i].rawcodes {
			if rc == rawcode {
				m.keys[i].pressed = pressed
				break
			}
		}
	}
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	// Convert to lowercase and split by +
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	var keys []string

	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl":
			keys = append(keys, "ctrl")
		case "alt":
			keys = append(keys, "alt")
		case "shift":
			keys = append(keys, "shift")
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			// Regular key
			keys = append(keys, part)
		}
	}

	return keys
}

var specialRawcodes = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"win":   {91, 92},
	"cmd":   {91, 92},
	"super": {91, 92},

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a key name to Windows virtual key codes. Modifiers
// return both the left and right variants.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if codes, ok := specialRawcodes[keyName]; ok {
		return codes
	}

	if len(keyName) == 1 {
		switch c := keyName[0]; {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 48}
		}
		return nil
	}

	// F1-F24 are VK 112-135.
	if strings.HasPrefix(keyName, "f") {
		if n, err := strconv.Atoi(keyName[1:]); err == nil && n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)}
		}
	}
	return nil
}
