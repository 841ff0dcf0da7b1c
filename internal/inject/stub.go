//go:build !linux

package inject

import (
	"errors"

	"github.com/sweeney/cadence-clicker/internal/keycode"
)

var errUnsupported = errors.New("inject: uinput not supported on this platform (requires Linux)")

// RealSink is not available on non-Linux platforms.
type RealSink struct{}

// NewRealSink returns an error on non-Linux platforms.
func NewRealSink(name string) (*RealSink, error) {
	return nil, errUnsupported
}

func (s *RealSink) Press(code keycode.Code) error   { return errUnsupported }
func (s *RealSink) Release(code keycode.Code) error { return errUnsupported }
func (s *RealSink) MoveRelative(dx, dy int32) error { return errUnsupported }
func (s *RealSink) Flush() error                    { return errUnsupported }
func (s *RealSink) Close() error                    { return nil }
