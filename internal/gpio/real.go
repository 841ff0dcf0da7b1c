//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/cadence-clicker/internal/trigger"
)

// RealPedal reads a pedal from actual hardware using the GPIO character device.
type RealPedal struct {
	*pedal
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	// lastSeq is the LineSeqno of the previous edge. Only the event handler
	// goroutine touches it.
	lastSeq uint32
}

// NewRealPedal requests cfg.Line as an input with pull-up and edge events.
func NewRealPedal(cfg Config) (*RealPedal, error) {
	if cfg.Chip == "" {
		cfg.Chip = DefaultChip
	}
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	p := &RealPedal{pedal: newPedal(cfg), chip: chip}
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(p.onEdge),
	}
	if cfg.Debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(cfg.Debounce))
	}
	line, err := chip.RequestLine(cfg.Line, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pedal line %d: %w", cfg.Line, err)
	}
	p.line = line
	return p, nil
}

// onEdge maps line edges to pedal transitions. The switch is active low:
// falling = pressed, rising = released. A gap in the line sequence means the
// kernel dropped edges and the pedal state is unknown, so the read fails and
// the listener reopens the line. LineSeqno is zero on uAPI v1.
func (p *RealPedal) onEdge(evt gpiocdev.LineEvent) {
	if evt.LineSeqno != 0 {
		last := p.lastSeq
		p.lastSeq = evt.LineSeqno
		if last != 0 && evt.LineSeqno != last+1 {
			p.fail(fmt.Errorf("pedal line %d lost %d edges", p.cfg.Line, evt.LineSeqno-last-1))
			return
		}
	}
	switch evt.Type {
	case gpiocdev.LineEventFallingEdge:
		p.push(true)
	case gpiocdev.LineEventRisingEdge:
		p.push(false)
	}
}

// Close releases GPIO resources.
// Reconfigures the line to input with pull-down (matching Pi boot defaults)
// before closing so the pin is left in a clean state.
func (p *RealPedal) Close() error {
	p.markClosed()

	var errs []error
	if p.line != nil {
		if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pedal line: %w", err))
		}
		if err := p.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pedal line: %w", err))
		}
		p.line = nil
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		p.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Enumerator presents one pedal as a listener device set. Each call opens a
// fresh pedal since the listener closes its devices when it re-enumerates.
type Enumerator struct {
	Config Config
}

// Enumerate implements trigger.Enumerator.
func (e Enumerator) Enumerate() ([]trigger.Device, error) {
	p, err := NewRealPedal(e.Config)
	if err != nil {
		return nil, err
	}
	return []trigger.Device{p}, nil
}
