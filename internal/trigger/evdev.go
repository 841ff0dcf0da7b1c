//go:build linux

package trigger

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	evdev "github.com/holoplot/go-evdev"

	"github.com/sweeney/cadence-clicker/internal/keycode"
)

const (
	devicePattern = "/dev/input/event*"

	// pollInterval paces reads on a non-blocking device with nothing queued.
	pollInterval = 10 * time.Millisecond
)

// EvdevEnumerator opens every evdev device that can report key events,
// skipping any device named Exclude.
type EvdevEnumerator struct {
	Exclude string
}

// DeviceInfo describes one enumerable device for listing.
type DeviceInfo struct {
	Path     string
	Name     string
	Excluded bool
}

// List returns every evdev device without keeping it open.
func (e EvdevEnumerator) List() ([]DeviceInfo, error) {
	paths, err := filepath.Glob(devicePattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", devicePattern, err)
	}
	var out []DeviceInfo
	for _, p := range paths {
		dev, err := evdev.Open(p)
		if err != nil {
			continue
		}
		name, _ := dev.Name()
		dev.Close()
		out = append(out, DeviceInfo{Path: p, Name: name, Excluded: name == e.Exclude})
	}
	return out, nil
}

// Enumerate implements Enumerator.
func (e EvdevEnumerator) Enumerate() ([]Device, error) {
	paths, err := filepath.Glob(devicePattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", devicePattern, err)
	}

	var out []Device
	denied := 0
	for _, p := range paths {
		dev, err := evdev.Open(p)
		if err != nil {
			if os.IsPermission(err) {
				denied++
			}
			continue
		}
		name, _ := dev.Name()
		if name == e.Exclude || !hasKeys(dev) {
			dev.Close()
			continue
		}
		if err := dev.NonBlock(); err != nil {
			log.Printf("listener: nonblocking %s: %v", p, err)
			dev.Close()
			continue
		}
		out = append(out, newEvdevDevice(dev, name, p))
	}
	if denied > 0 {
		log.Printf("listener: permission denied on %d devices (add the user to the 'input' group)", denied)
	}
	if len(out) == 0 {
		return nil, ErrNoDevices
	}
	return out, nil
}

func hasKeys(dev *evdev.InputDevice) bool {
	for _, t := range dev.CapableTypes() {
		if t == evdev.EV_KEY {
			return true
		}
	}
	return false
}

// evdevDevice reads a non-blocking evdev node. A blocking read cannot be
// interrupted by Close, so ReadEvent polls and checks for Close between reads.
type evdevDevice struct {
	dev  *evdev.InputDevice
	name string
	path string

	once   sync.Once
	closed chan struct{}
}

func newEvdevDevice(dev *evdev.InputDevice, name, path string) *evdevDevice {
	return &evdevDevice{dev: dev, name: name, path: path, closed: make(chan struct{})}
}

func (d *evdevDevice) Name() string { return d.name }
func (d *evdevDevice) Path() string { return d.path }

func (d *evdevDevice) Close() error {
	var err error
	d.once.Do(func() {
		close(d.closed)
		err = d.dev.Close()
	})
	return err
}

// ReadEvent skips everything but EV_KEY.
func (d *evdevDevice) ReadEvent() (Event, error) {
	for {
		select {
		case <-d.closed:
			return Event{}, ErrDeviceClosed
		default:
		}
		ev, err := d.dev.ReadOne()
		if err != nil {
			if isWouldBlock(err) {
				time.Sleep(pollInterval)
				continue
			}
			return Event{}, err
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		return Event{Code: keycode.Code(ev.Code), Value: ev.Value}, nil
	}
}

func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}
