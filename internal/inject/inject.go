// Package inject emits synthetic input through a virtual input device.
// The real implementation uses a Linux uinput device.
// The fake implementation records emitted events for tests.
package inject

import (
	"errors"

	"github.com/sweeney/cadence-clicker/internal/keycode"
)

// DefaultDeviceName is the name of the virtual device. The trigger listener
// skips any physical device carrying this name to avoid feedback loops.
const DefaultDeviceName = "Cadence Virtual HID"

// ErrPermissionDenied is returned when the process may not create a virtual
// input device. It is fatal for the engine.
var ErrPermissionDenied = errors.New("inject: permission denied creating virtual input device")

// Sink emits key/button transitions and relative pointer motion.
// Writes become visible to the OS only after Flush.
type Sink interface {
	Press(code keycode.Code) error
	Release(code keycode.Code) error
	MoveRelative(dx, dy int32) error
	Flush() error
	// Close destroys the virtual device.
	Close() error
}
