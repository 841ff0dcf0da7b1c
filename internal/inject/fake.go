package inject

import (
	"errors"
	"sync"
	"time"

	"github.com/sweeney/cadence-clicker/internal/keycode"
)

// Op identifies a recorded sink call.
type Op string

const (
	OpPress   Op = "PRESS"
	OpRelease Op = "RELEASE"
	OpMove    Op = "MOVE"
	OpFlush   Op = "FLUSH"
	OpClose   Op = "CLOSE"
)

// Record is one call made on a FakeSink.
type Record struct {
	Op   Op
	Code keycode.Code
	DX   int32
	DY   int32
	At   time.Time
}

// FakeSink records every call for test assertions. Safe for concurrent use.
type FakeSink struct {
	// Now, if set, timestamps each record.
	Now func() time.Time

	// FailOn, if set, makes calls with this Op return FailErr.
	FailOn  Op
	FailErr error

	mu      sync.Mutex
	records []Record
	pressed map[keycode.Code]bool
	closed  bool
}

// NewFakeSink creates an empty FakeSink.
func NewFakeSink() *FakeSink {
	return &FakeSink{pressed: make(map[keycode.Code]bool)}
}

// Press records a key-down.
func (f *FakeSink) Press(code keycode.Code) error {
	return f.record(Record{Op: OpPress, Code: code})
}

// Release records a key-up.
func (f *FakeSink) Release(code keycode.Code) error {
	return f.record(Record{Op: OpRelease, Code: code})
}

// MoveRelative records pointer motion.
func (f *FakeSink) MoveRelative(dx, dy int32) error {
	return f.record(Record{Op: OpMove, DX: dx, DY: dy})
}

// Flush records a sync.
func (f *FakeSink) Flush() error {
	return f.record(Record{Op: OpFlush})
}

// Close marks the sink closed.
func (f *FakeSink) Close() error {
	return f.record(Record{Op: OpClose})
}

func (f *FakeSink) record(r Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("inject: fake sink closed")
	}
	if f.FailOn != "" && f.FailOn == r.Op {
		return f.FailErr
	}
	if f.Now != nil {
		r.At = f.Now()
	}
	switch r.Op {
	case OpPress:
		f.pressed[r.Code] = true
	case OpRelease:
		delete(f.pressed, r.Code)
	case OpClose:
		f.closed = true
	}
	f.records = append(f.records, r)
	return nil
}

// Records returns a copy of all recorded calls.
func (f *FakeSink) Records() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Record, len(f.records))
	copy(out, f.records)
	return out
}

// Presses returns the press records for code, in order.
func (f *FakeSink) Presses(code keycode.Code) []Record {
	var out []Record
	for _, r := range f.Records() {
		if r.Op == OpPress && r.Code == code {
			out = append(out, r)
		}
	}
	return out
}

// Pressed returns the codes currently held down.
func (f *FakeSink) Pressed() []keycode.Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []keycode.Code
	for c := range f.pressed {
		out = append(out, c)
	}
	return out
}

// IsPressed reports whether code is currently held down.
func (f *FakeSink) IsPressed(code keycode.Code) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pressed[code]
}

// Closed reports whether Close was called.
func (f *FakeSink) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears all records and state.
func (f *FakeSink) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = nil
	f.pressed = make(map[keycode.Code]bool)
	f.closed = false
	f.FailOn = ""
	f.FailErr = nil
}
