//go:build !linux

package trigger

import "errors"

var errUnsupported = errors.New("trigger: evdev not supported on this platform (requires Linux)")

// EvdevEnumerator is not available on non-Linux platforms.
type EvdevEnumerator struct {
	Exclude string
}

// DeviceInfo describes one enumerable device for listing.
type DeviceInfo struct {
	Path     string
	Name     string
	Excluded bool
}

// List returns an error on non-Linux platforms.
func (e EvdevEnumerator) List() ([]DeviceInfo, error) {
	return nil, errUnsupported
}

// Enumerate returns an error on non-Linux platforms.
func (e EvdevEnumerator) Enumerate() ([]Device, error) {
	return nil, errUnsupported
}
