// Package trigger turns physical key and button events into channel
// start/stop commands, visibility toggles and rebinds.
//
// Resolver holds the decision logic and is pure: events in, actions out.
// Listener multiplexes the physical devices, feeds the Resolver and invokes
// the Owner callbacks.
package trigger

import (
	"errors"
	"fmt"

	"github.com/sweeney/cadence-clicker/internal/keycode"
)

// ErrNoDevices is returned by an Enumerator that found nothing usable.
var ErrNoDevices = errors.New("trigger: no input devices")

// ErrDeviceClosed is returned by reads on a device after Close.
var ErrDeviceClosed = errors.New("trigger: device closed")

// Role is a logical trigger role, one per engine channel.
type Role int

const (
	Primary Role = iota
	Secondary
)

func (r Role) String() string {
	switch r {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

var roles = [...]Role{Primary, Secondary}

// Slot names a rebindable binding.
type Slot string

const (
	SlotNone             Slot = ""
	SlotTriggerPrimary   Slot = "trigger_primary"
	SlotTriggerSecondary Slot = "trigger_secondary"
	SlotHide             Slot = "hide"
	// SlotTarget captures the key-mode output code. It has no collision
	// rules and does not change listener bindings.
	SlotTarget Slot = "target"
)

// ParseSlot validates a slot name.
func ParseSlot(s string) (Slot, bool) {
	switch sl := Slot(s); sl {
	case SlotTriggerPrimary, SlotTriggerSecondary, SlotHide, SlotTarget:
		return sl, true
	}
	return SlotNone, false
}

// Style selects trigger semantics.
type Style string

const (
	// StyleToggle flips a channel on each press.
	StyleToggle Style = "toggle"
	// StyleHold runs a channel while the trigger is held.
	StyleHold Style = "hold"
)

// Event values as reported by evdev.
const (
	ValueRelease int32 = 0
	ValuePress   int32 = 1
	ValueRepeat  int32 = 2
)

// Event is one key or button transition from a physical device.
type Event struct {
	Code  keycode.Code
	Value int32
}

// Bindings maps roles to physical codes.
type Bindings struct {
	Primary   keycode.Code `json:"trigger_primary"`
	Secondary keycode.Code `json:"trigger_secondary"`
	Hide      keycode.Code `json:"hide"`
}

// DefaultBindings returns F6/F7 triggers and Right Shift to hide.
func DefaultBindings() Bindings {
	return Bindings{
		Primary:   keycode.KeyF6,
		Secondary: keycode.KeyF7,
		Hide:      keycode.KeyRightShift,
	}
}

func (b Bindings) trigger(r Role) keycode.Code {
	if r == Secondary {
		return b.Secondary
	}
	return b.Primary
}

// ActionKind enumerates resolver outputs.
type ActionKind int

const (
	ActToggle ActionKind = iota
	ActStart
	ActStop
	ActRebind
	ActVisibility
)

// Action is one resolved outcome. Which fields are set depends on Kind.
type Action struct {
	Kind ActionKind
	Role Role

	// On is the new enabled state for ActToggle.
	On bool

	// Rebind result.
	Name string
	Code keycode.Code
	Slot Slot

	// Visible is the new GUI visibility for ActVisibility.
	Visible bool
}

// Owner receives resolved actions. Calls are made from the listener
// goroutine, or from the goroutine calling a Listener setter, never while the
// listener's lock is held.
type Owner interface {
	OnToggle(role Role, on bool)
	OnStart(role Role)
	OnStop(role Role)
	OnRebindCommitted(name string, code keycode.Code, slot Slot)
	OnVisibilityToggle(visible bool)
}

// Device is a physical input device producing key events.
type Device interface {
	Name() string
	Path() string
	// ReadEvent blocks until the next key event. It returns an error once
	// the device is closed or unplugged.
	ReadEvent() (Event, error)
	Close() error
}

// Enumerator opens the current set of input devices.
type Enumerator interface {
	Enumerate() ([]Device, error)
}

// MultiEnumerator concatenates the devices of several enumerators. Member
// errors are only returned when no member produced a device.
type MultiEnumerator []Enumerator

// Enumerate implements Enumerator.
func (m MultiEnumerator) Enumerate() ([]Device, error) {
	var all []Device
	var errs []error
	for _, e := range m {
		devs, err := e.Enumerate()
		if err != nil {
			errs = append(errs, err)
		}
		all = append(all, devs...)
	}
	if len(all) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, ErrNoDevices
	}
	return all, nil
}
