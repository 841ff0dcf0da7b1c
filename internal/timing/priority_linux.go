//go:build linux

package timing

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// RaisePriority pins the calling goroutine to its OS thread and lowers that
// thread's nice value so UI and listener work cannot starve it. The goroutine
// stays locked for the rest of its life. Lacking CAP_SYS_NICE is not fatal;
// the returned error is informational.
func RaisePriority(nice int) error {
	runtime.LockOSThread()
	tid := unix.Gettid()
	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, nice); err != nil {
		return fmt.Errorf("setpriority tid=%d nice=%d: %w", tid, nice, err)
	}
	return nil
}
