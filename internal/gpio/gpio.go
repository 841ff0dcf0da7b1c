// Package gpio provides a foot pedal wired to a GPIO line as a trigger
// device. The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/cadence-clicker/internal/keycode"
	"github.com/sweeney/cadence-clicker/internal/trigger"
)

// Defaults for Config.
const (
	DefaultChip     = "gpiochip0"
	DefaultDebounce = 10 * time.Millisecond
)

// ErrClosed is returned by reads after Close.
var ErrClosed = errors.New("gpio: pedal closed")

// Config describes one pedal. The switch pulls the line low when pressed.
type Config struct {
	Chip     string
	Line     int
	Code     keycode.Code // key code reported to the listener
	Debounce time.Duration
}

// pedal turns press/release edges into trigger events. It is shared by the
// real and fake devices.
type pedal struct {
	cfg    Config
	events chan trigger.Event
	errs   chan error
	once   sync.Once
	closed chan struct{}
}

func newPedal(cfg Config) *pedal {
	return &pedal{
		cfg:    cfg,
		events: make(chan trigger.Event, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

// push queues a transition. It never blocks: edges arriving faster than the
// listener drains them are dropped.
func (p *pedal) push(pressed bool) {
	v := trigger.ValueRelease
	if pressed {
		v = trigger.ValuePress
	}
	select {
	case p.events <- trigger.Event{Code: p.cfg.Code, Value: v}:
	default:
		log.Printf("gpio: %s dropped edge (queue full)", p.Path())
	}
}

func (p *pedal) fail(err error) {
	select {
	case p.errs <- err:
	default:
	}
}

func (p *pedal) Name() string { return fmt.Sprintf("GPIO pedal %s/%d", p.cfg.Chip, p.cfg.Line) }
func (p *pedal) Path() string { return fmt.Sprintf("%s:%d", p.cfg.Chip, p.cfg.Line) }

// ReadEvent blocks until the next edge, a failure, or Close.
func (p *pedal) ReadEvent() (trigger.Event, error) {
	select {
	case ev := <-p.events:
		return ev, nil
	case err := <-p.errs:
		return trigger.Event{}, err
	case <-p.closed:
		return trigger.Event{}, ErrClosed
	}
}

func (p *pedal) markClosed() {
	p.once.Do(func() { close(p.closed) })
}
