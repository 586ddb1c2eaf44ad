// Package hotkey registers global key combinations via gohook and invokes
// callbacks when all keys of a combo are held together.
package hotkey

import (
	"log"
	"strconv"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

type binding struct {
	combo    string
	keys     []keyState
	callback func()
}

// Listener multiplexes several hotkey combos over one gohook event stream.
type Listener struct {
	mu       sync.Mutex
	bindings []*binding
	started  bool
}

func NewListener() *Listener { return &Listener{} }

// Bind registers a combo like "Ctrl+Alt+T". Returns false when no key of the
// combo could be mapped to a rawcode.
func (l *Listener) Bind(combo string, callback func()) bool {
	if combo == "" || callback == nil {
		return false
	}
	var keys []keyState
	for _, name := range parseHotkey(combo) {
		rawcodes := keyNameToRawcodes(name)
		if len(rawcodes) == 0 {
			log.Printf("Hotkey: cannot map key %q in combo %q", name, combo)
			continue
		}
		keys = append(keys, keyState{name: name, rawcodes: rawcodes})
	}
	if len(keys) == 0 {
		log.Printf("Hotkey: no valid keys in combo %q", combo)
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.bindings = append(l.bindings, &binding{combo: combo, keys: keys, callback: callback})
	log.Printf("Hotkey: bound %q", combo)
	return true
}

// Start launches the gohook event loop in a goroutine. Callbacks fire on
// that goroutine; they should hand off to the event loop promptly.
func (l *Listener) Start() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Hotkey: panic in event goroutine: %v", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("Hotkey: gohook.Start() returned nil channel")
			return
		}

		for ev := range evChan {
			switch ev.Kind {
			case gohook.KeyDown:
				l.handleKeyDown(ev.Rawcode)
			case gohook.KeyUp:
				l.handleKeyUp(ev.Rawcode)
			}
		}
		log.Printf("Hotkey: event channel closed")
	}()
}

// Stop ends the gohook event loop.
func (l *Listener) Stop() {
	gohook.End()
}

func (l *Listener) handleKeyDown(rawcode uint16) {
	var fire []func()
	l.mu.Lock()
	for _, b := range l.bindings {
		matched := false
		allPressed := true
		for i := range b.keys {
			if containsRawcode(b.keys[i].rawcodes, rawcode) {
				b.keys[i].pressed = true
				matched = true
			}
			if !b.keys[i].pressed {
				allPressed = false
			}
		}
		if matched && allPressed {
			log.Printf("Hotkey: combination %q detected", b.combo)
			for i := range b.keys {
				b.keys[i].pressed = false
			}
			fire = append(fire, b.callback)
		}
	}
	l.mu.Unlock()

	for _, cb := range fire {
		cb()
	}
}

func (l *Listener) handleKeyUp(rawcode uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.bindings {
		for i := range b.keys {
			if containsRawcode(b.keys[i].rawcodes, rawcode) {
				b.keys[i].pressed = false
			}
		}
	}
}

func containsRawcode(rawcodes []uint16, rc uint16) bool {
	for _, c := range rawcodes {
		if c == rc {
			return true
		}
	}
	return false
}

// parseHotkey converts a combo string like "Ctrl+Alt+t" to normalized key names.
func parseHotkey(combo string) []string {
	parts := strings.Split(strings.ToLower(combo), "+")
	var keys []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch part {
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

// keyNameToRawcodes maps a key name to its Windows virtual-key rawcodes.
// Modifiers return both left and right variants.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))

	switch keyName {
	case "ctrl":
		return []uint16{162, 163} // VK_LCONTROL, VK_RCONTROL
	case "alt":
		return []uint16{164, 165} // VK_LMENU, VK_RMENU
	case "shift":
		return []uint16{160, 161} // VK_LSHIFT, VK_RSHIFT
	case "cmd":
		return []uint16{91, 92} // VK_LWIN, VK_RWIN
	case "space":
		return []uint16{32}
	case "enter", "return":
		return []uint16{13}
	case "esc", "escape":
		return []uint16{27}
	case "tab":
		return []uint16{9}
	case "backspace":
		return []uint16{8}
	case "delete", "del":
		return []uint16{46}
	case "insert", "ins":
		return []uint16{45}
	case "home":
		return []uint16{36}
	case "end":
		return []uint16{35}
	case "pageup", "pgup":
		return []uint16{33} // VK_PRIOR
	case "pagedown", "pgdn":
		return []uint16{34} // VK_NEXT
	case "left":
		return []uint16{37}
	case "up":
		return []uint16{38}
	case "right":
		return []uint16{39}
	case "down":
		return []uint16{40}
	}

	// Letters A-Z: VK 0x41-0x5A. Digits 0-9: VK 0x30-0x39.
	if len(keyName) == 1 {
		c := keyName[0]
		if c >= 'a' && c <= 'z' {
			return []uint16{uint16(c-'a') + 65}
		}
		if c >= '0' && c <= '9' {
			return []uint16{uint16(c-'0') + 48}
		}
	}

	// Function keys F1-F24: VK 112-135.
	if strings.HasPrefix(keyName, "f") {
		if n, err := strconv.Atoi(keyName[1:]); err == nil && n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)}
		}
	}

	log.Printf("Hotkey: unknown key name %q, cannot map to rawcode", keyName)
	return nil
}
