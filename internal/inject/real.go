//go:build linux

package inject

import (
	"errors"
	"fmt"
	"os"

	evdev "github.com/holoplot/go-evdev"

	"github.com/sweeney/cadence-clicker/internal/keycode"
)

// RealSink writes to a uinput device.
type RealSink struct {
	dev *evdev.InputDevice
}

// NewRealSink creates a virtual keyboard+pointer device with the given name.
// Returns an error wrapping ErrPermissionDenied when /dev/uinput is not
// writable by this process.
func NewRealSink(name string) (*RealSink, error) {
	id := evdev.InputID{
		BusType: uint16(evdev.BUS_VIRTUAL),
		Vendor:  0x1234,
		Product: 0x5678,
		Version: 1,
	}
	dev, err := evdev.CreateDevice(name, id, capabilities())
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("create uinput device %q: %w", name, err)
	}
	return &RealSink{dev: dev}, nil
}

// capabilities advertises every standard keyboard key, the pointer buttons and
// relative motion so both pointer and key targets can be emitted.
func capabilities() map[evdev.EvType][]evdev.EvCode {
	keys := make([]evdev.EvCode, 0, 260)
	for c := evdev.EvCode(evdev.KEY_ESC); c <= evdev.EvCode(evdev.KEY_MICMUTE); c++ {
		keys = append(keys, c)
	}
	keys = append(keys,
		evdev.BTN_LEFT, evdev.BTN_RIGHT, evdev.BTN_MIDDLE, evdev.BTN_SIDE, evdev.BTN_EXTRA,
	)
	return map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: keys,
		evdev.EV_REL: {evdev.REL_X, evdev.REL_Y, evdev.REL_WHEEL},
	}
}

// Press writes a key-down for code.
func (s *RealSink) Press(code keycode.Code) error {
	return s.write(evdev.EV_KEY, evdev.EvCode(code), 1)
}

// Release writes a key-up for code.
func (s *RealSink) Release(code keycode.Code) error {
	return s.write(evdev.EV_KEY, evdev.EvCode(code), 0)
}

// MoveRelative writes relative pointer motion on both axes.
func (s *RealSink) MoveRelative(dx, dy int32) error {
	if err := s.write(evdev.EV_REL, evdev.REL_X, dx); err != nil {
		return err
	}
	return s.write(evdev.EV_REL, evdev.REL_Y, dy)
}

// Flush writes a SYN_REPORT, making preceding writes visible atomically.
func (s *RealSink) Flush() error {
	return s.write(evdev.EV_SYN, evdev.SYN_REPORT, 0)
}

// Close destroys the virtual device.
func (s *RealSink) Close() error {
	if s.dev == nil {
		return nil
	}
	err := s.dev.Close()
	s.dev = nil
	return err
}

func (s *RealSink) write(t evdev.EvType, c evdev.EvCode, v int32) error {
	if s.dev == nil {
		return errors.New("inject: device closed")
	}
	ev := evdev.InputEvent{Type: t, Code: c, Value: v}
	if err := s.dev.WriteOne(&ev); err != nil {
		return fmt.Errorf("write type=%d code=%d value=%d: %w", t, c, v, err)
	}
	return nil
}
