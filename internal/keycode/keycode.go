// Package keycode defines the button and key codes shared by the listener and
// the engine. Values follow the Linux evdev numbering.
package keycode

import (
	"fmt"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// Code is an EV_KEY code. None means "no output".
type Code int

// None is the sentinel for an unbound slot or a disabled output.
const None Code = -1

// Pointer buttons.
const (
	BtnLeft   = Code(evdev.BTN_LEFT)
	BtnRight  = Code(evdev.BTN_RIGHT)
	BtnMiddle = Code(evdev.BTN_MIDDLE)
	BtnSide   = Code(evdev.BTN_SIDE)
	BtnExtra  = Code(evdev.BTN_EXTRA)
)

// Keys with special meaning.
const (
	KeyEsc        = Code(evdev.KEY_ESC)
	KeyW          = Code(evdev.KEY_W)
	KeyS          = Code(evdev.KEY_S)
	KeyLeftShift  = Code(evdev.KEY_LEFTSHIFT)
	KeyRightShift = Code(evdev.KEY_RIGHTSHIFT)
	KeyF6         = Code(evdev.KEY_F6)
	KeyF7         = Code(evdev.KEY_F7)
)

// IsPointer reports whether c is one of the primary/secondary pointer buttons.
// These are the buttons the engine itself injects in pointer mode.
func IsPointer(c Code) bool {
	return c == BtnLeft || c == BtnRight
}

var friendly = map[Code]string{
	BtnLeft:       "Left Click",
	BtnRight:      "Right Click",
	BtnMiddle:     "Middle Click",
	KeyRightShift: "Right Shift",
	KeyLeftShift:  "Left Shift",
}

// DisplayName returns the label shown for a bound code, e.g. "Left Click",
// "F6" or "Pageup". None renders as the unbound placeholder.
func DisplayName(c Code) string {
	if c == None {
		return "Select Key..."
	}
	if s, ok := friendly[c]; ok {
		return s
	}
	name := fmt.Sprintf("KEY_%d", int(c))
	if c >= 0 && c <= 0xffff {
		if n, ok := evdev.KEYToString[evdev.EvCode(c)]; ok {
			name = n
		}
	}
	name = strings.TrimPrefix(name, "KEY_")
	name = strings.TrimPrefix(name, "BTN_")
	return titleCase(strings.ReplaceAll(name, "_", " "))
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
