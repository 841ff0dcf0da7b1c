package trigger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sweeney/cadence-clicker/internal/engine"
)

// Listener defaults.
const (
	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 5 * time.Second
)

type deviceEvent struct {
	dev Device
	ev  Event
	err error
}

// Listener owns the physical device set and drives a Resolver from it.
type Listener struct {
	// MinBackoff and MaxBackoff bound the retry delay after an empty or
	// failed enumeration.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	enum  Enumerator
	owner Owner

	mu       sync.Mutex
	resolver *Resolver
	devices  []string
}

// NewListener creates a Listener. owner may be nil.
func NewListener(enum Enumerator, owner Owner, resolver *Resolver) *Listener {
	return &Listener{
		MinBackoff: DefaultMinBackoff,
		MaxBackoff: DefaultMaxBackoff,
		enum:       enum,
		owner:      owner,
		resolver:   resolver,
	}
}

// Run enumerates devices and processes their events until ctx is done.
// Read errors drop the whole device set and trigger re-enumeration.
func (l *Listener) Run(ctx context.Context) error {
	backoff := l.MinBackoff
	for {
		if ctx.Err() != nil {
			return nil
		}

		devs, err := l.enum.Enumerate()
		if err == nil && len(devs) == 0 {
			err = ErrNoDevices
		}
		if err != nil {
			if backoff == l.MinBackoff {
				log.Printf("listener: enumerate: %v (retrying)", err)
			}
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			backoff *= 2
			if backoff > l.MaxBackoff {
				backoff = l.MaxBackoff
			}
			continue
		}
		backoff = l.MinBackoff

		l.setDevices(devs)
		err = l.serve(ctx, devs)
		l.setDevices(nil)
		if err != nil {
			log.Printf("listener: %v, re-enumerating", err)
		}
	}
}

// serve fans in all device streams until one fails or ctx is done. Devices
// are closed before it returns. Readers are not waited for: a read blocked on
// an idle device may outlive Close, and it exits on its next return.
func (l *Listener) serve(ctx context.Context, devs []Device) error {
	events := make(chan deviceEvent)
	done := make(chan struct{})

	for _, d := range devs {
		go func(d Device) {
			for {
				ev, err := d.ReadEvent()
				select {
				case events <- deviceEvent{dev: d, ev: ev, err: err}:
				case <-done:
					return
				}
				if err != nil {
					return
				}
			}
		}(d)
	}

	defer func() {
		close(done)
		for _, d := range devs {
			if err := d.Close(); err != nil {
				log.Printf("listener: close %s: %v", d.Path(), err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case de := <-events:
			if de.err != nil {
				return fmt.Errorf("read %s: %w", de.dev.Path(), de.err)
			}
			l.handle(de.ev)
		}
	}
}

func (l *Listener) handle(ev Event) {
	l.mu.Lock()
	actions := l.resolver.Process(ev)
	l.mu.Unlock()
	l.dispatch(actions)
}

func (l *Listener) dispatch(actions []Action) {
	if l.owner == nil {
		return
	}
	for _, a := range actions {
		switch a.Kind {
		case ActToggle:
			l.owner.OnToggle(a.Role, a.On)
		case ActStart:
			l.owner.OnStart(a.Role)
		case ActStop:
			l.owner.OnStop(a.Role)
		case ActRebind:
			log.Printf("listener: %s bound to %s (%d)", a.Slot, a.Name, a.Code)
			l.owner.OnRebindCommitted(a.Name, a.Code, a.Slot)
		case ActVisibility:
			l.owner.OnVisibilityToggle(a.Visible)
		}
	}
}

func (l *Listener) setDevices(devs []Device) {
	var paths []string
	for _, d := range devs {
		paths = append(paths, d.Path())
	}
	l.mu.Lock()
	l.devices = paths
	l.mu.Unlock()
	if len(paths) > 0 {
		log.Printf("listener: reading %d devices", len(paths))
	}
}

// Devices returns the paths of the devices currently being read.
func (l *Listener) Devices() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.devices...)
}

// SetTriggerStyle switches trigger style. Both roles are stopped.
func (l *Listener) SetTriggerStyle(s Style) {
	l.mu.Lock()
	actions := l.resolver.SetTriggerStyle(s)
	l.mu.Unlock()
	log.Printf("listener: trigger style %s", s)
	l.dispatch(actions)
}

// SetTargetMode switches target mode. Both roles are stopped.
func (l *Listener) SetTargetMode(m engine.Mode) {
	l.mu.Lock()
	actions := l.resolver.SetTargetMode(m)
	l.mu.Unlock()
	log.Printf("listener: target mode %s", m)
	l.dispatch(actions)
}

// SetPaused drops trigger events while p is true.
func (l *Listener) SetPaused(p bool) {
	l.mu.Lock()
	actions := l.resolver.SetPaused(p)
	l.mu.Unlock()
	l.dispatch(actions)
}

// StartRebind captures the next press into slot.
func (l *Listener) StartRebind(slot Slot) {
	l.mu.Lock()
	l.resolver.StartRebind(slot)
	l.mu.Unlock()
	log.Printf("listener: waiting for %s key", slot)
}

// StopAll turns both roles off.
func (l *Listener) StopAll() {
	l.mu.Lock()
	actions := l.resolver.StopAll()
	l.mu.Unlock()
	l.dispatch(actions)
}

// Snapshot is a point-in-time copy of listener state.
type Snapshot struct {
	Bindings  Bindings
	Style     Style
	Mode      engine.Mode
	Paused    bool
	Visible   bool
	Rebinding Slot
	Devices   []string
}

// Snapshot returns the current listener state.
func (l *Listener) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.resolver
	return Snapshot{
		Bindings:  r.Bindings(),
		Style:     r.Style(),
		Mode:      r.Mode(),
		Paused:    r.Paused(),
		Visible:   r.Visible(),
		Rebinding: r.Rebinding(),
		Devices:   append([]string(nil), l.devices...),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
