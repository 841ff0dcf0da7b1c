package gpio

// FakePedal is a test double driven by Press and Release calls.
type FakePedal struct {
	*pedal
}

// NewFakePedal creates a FakePedal reporting cfg.Code.
func NewFakePedal(cfg Config) *FakePedal {
	return &FakePedal{pedal: newPedal(cfg)}
}

// Press simulates the pedal going down.
func (f *FakePedal) Press() { f.push(true) }

// Release simulates the pedal coming up.
func (f *FakePedal) Release() { f.push(false) }

// Fail makes the next read return err, as if the chip went away.
func (f *FakePedal) Fail(err error) { f.fail(err) }

// Close marks the pedal closed.
func (f *FakePedal) Close() error {
	f.markClosed()
	return nil
}

// Closed reports whether Close was called.
func (f *FakePedal) Closed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}
