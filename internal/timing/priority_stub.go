//go:build !linux

package timing

import "runtime"

// RaisePriority pins the calling goroutine to its OS thread.
// Thread priorities are only adjusted on Linux.
func RaisePriority(nice int) error {
	runtime.LockOSThread()
	return nil
}
