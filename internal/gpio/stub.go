//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/cadence-clicker/internal/trigger"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPedal is not available on non-Linux platforms.
type RealPedal struct {
	*pedal
}

// NewRealPedal returns an error on non-Linux platforms.
func NewRealPedal(cfg Config) (*RealPedal, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (p *RealPedal) Close() error {
	return nil
}

// Enumerator is not available on non-Linux platforms.
type Enumerator struct {
	Config Config
}

// Enumerate returns an error on non-Linux platforms.
func (e Enumerator) Enumerate() ([]trigger.Device, error) {
	return nil, errUnsupported
}
