package trigger

import "sync"

// FakeDevice is a Device fed from a channel. Send events with Emit and
// simulate unplugging with Fail.
type FakeDevice struct {
	name string
	path string

	events chan deviceEvent
	once   sync.Once
	closed chan struct{}
}

// NewFakeDevice creates a FakeDevice.
func NewFakeDevice(name, path string) *FakeDevice {
	return &FakeDevice{
		name:   name,
		path:   path,
		events: make(chan deviceEvent, 64),
		closed: make(chan struct{}),
	}
}

func (d *FakeDevice) Name() string { return d.name }
func (d *FakeDevice) Path() string { return d.path }

// Emit queues an event for ReadEvent.
func (d *FakeDevice) Emit(ev Event) {
	d.events <- deviceEvent{ev: ev}
}

// Fail makes the next read return err.
func (d *FakeDevice) Fail(err error) {
	d.events <- deviceEvent{err: err}
}

// ReadEvent implements Device.
func (d *FakeDevice) ReadEvent() (Event, error) {
	select {
	case de := <-d.events:
		return de.ev, de.err
	case <-d.closed:
		return Event{}, ErrDeviceClosed
	}
}

// Close implements Device.
func (d *FakeDevice) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}

// IsClosed reports whether Close was called.
func (d *FakeDevice) IsClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

// FakeEnumerator returns a scripted sequence of device sets. Once the script
// is exhausted it returns ErrNoDevices.
type FakeEnumerator struct {
	mu     sync.Mutex
	script [][]Device
	calls  int
}

// NewFakeEnumerator creates an enumerator returning each set in turn.
func NewFakeEnumerator(sets ...[]Device) *FakeEnumerator {
	return &FakeEnumerator{script: sets}
}

// Enumerate implements Enumerator.
func (f *FakeEnumerator) Enumerate() ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.script) == 0 {
		return nil, ErrNoDevices
	}
	set := f.script[0]
	f.script = f.script[1:]
	return set, nil
}

// Calls returns how many times Enumerate ran.
func (f *FakeEnumerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
