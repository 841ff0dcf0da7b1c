package internal

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/cadence-clicker/internal/engine"
	"github.com/sweeney/cadence-clicker/internal/gpio"
	"github.com/sweeney/cadence-clicker/internal/inject"
	"github.com/sweeney/cadence-clicker/internal/keycode"
	"github.com/sweeney/cadence-clicker/internal/status"
	"github.com/sweeney/cadence-clicker/internal/timing"
	"github.com/sweeney/cadence-clicker/internal/trigger"
)

// forwardingOwner turns listener actions into engine commands, the way the
// daemon's controller does, and records rebinds.
type forwardingOwner struct {
	commands chan<- engine.Command

	mu      sync.Mutex
	rebinds []keycode.Code
}

func channelFor(r trigger.Role) engine.ChannelID {
	if r == trigger.Secondary {
		return engine.Secondary
	}
	return engine.Primary
}

func (o *forwardingOwner) OnToggle(r trigger.Role, on bool) {
	if on {
		o.commands <- engine.Enable(channelFor(r))
	} else {
		o.commands <- engine.Disable(channelFor(r))
	}
}

func (o *forwardingOwner) OnStart(r trigger.Role) { o.commands <- engine.Enable(channelFor(r)) }
func (o *forwardingOwner) OnStop(r trigger.Role)  { o.commands <- engine.Disable(channelFor(r)) }

func (o *forwardingOwner) OnRebindCommitted(_ string, code keycode.Code, _ trigger.Slot) {
	o.mu.Lock()
	o.rebinds = append(o.rebinds, code)
	o.mu.Unlock()
}

func (o *forwardingOwner) OnVisibilityToggle(bool) {}

// pedalEnumerator hands out one fake pedal.
type pedalEnumerator struct {
	pedal *gpio.FakePedal
	once  sync.Once
}

func (e *pedalEnumerator) Enumerate() ([]trigger.Device, error) {
	var devs []trigger.Device
	e.once.Do(func() { devs = []trigger.Device{e.pedal} })
	if devs == nil {
		return nil, trigger.ErrNoDevices
	}
	return devs, nil
}

type rig struct {
	sink     *inject.FakeSink
	keyboard *trigger.FakeDevice
	pedal    *gpio.FakePedal
	listener *trigger.Listener
	tracker  *status.Tracker
	owner    *forwardingOwner
	cancel   context.CancelFunc
	done     chan error
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		sink:     inject.NewFakeSink(),
		keyboard: trigger.NewFakeDevice("AT Translated Set 2 keyboard", "/dev/input/event3"),
		pedal:    gpio.NewFakePedal(gpio.Config{Chip: "gpiochip0", Line: 17, Code: keycode.KeyF7}),
		tracker:  status.NewTracker(time.Now(), status.Config{}),
		done:     make(chan error, 1),
	}
	commands := make(chan engine.Command, 16)
	configs := make(chan engine.ConfigDelta, 4)
	r.owner = &forwardingOwner{commands: commands}

	enum := trigger.MultiEnumerator{
		trigger.NewFakeEnumerator([]trigger.Device{r.keyboard}),
		&pedalEnumerator{pedal: r.pedal},
	}
	r.listener = trigger.NewListener(enum, r.owner,
		trigger.NewResolver(trigger.DefaultBindings(), trigger.StyleToggle, engine.ModePointer))

	eng := engine.New(r.sink, timing.NewClock(timing.NewSleeper(rand.New(rand.NewSource(1)))), rand.New(rand.NewSource(2)))
	eng.Status = r.tracker

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go func() { r.done <- eng.Run(ctx, commands, configs) }()
	go r.listener.Run(ctx)

	waitFor(t, "devices enumerated", func() bool { return len(r.listener.Devices()) == 2 })
	return r
}

func (r *rig) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.done:
		if err != nil {
			t.Errorf("engine returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func (r *rig) tap(code keycode.Code) {
	r.keyboard.Emit(trigger.Event{Code: code, Value: trigger.ValuePress})
	r.keyboard.Emit(trigger.Event{Code: code, Value: trigger.ValueRelease})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestIntegrationHotkeyTogglesPrimary drives the listener, engine and sink
// together in real time.
func TestIntegrationHotkeyTogglesPrimary(t *testing.T) {
	r := newRig(t)

	r.tap(keycode.KeyF6)
	waitFor(t, "left clicks", func() bool { return len(r.sink.Presses(keycode.BtnLeft)) >= 3 })

	r.tap(keycode.KeyF6)
	waitFor(t, "primary off", func() bool { return !r.tracker.Snapshot().Engine.Primary.Active })
	settled := len(r.sink.Presses(keycode.BtnLeft))
	time.Sleep(250 * time.Millisecond)
	if got := len(r.sink.Presses(keycode.BtnLeft)); got != settled {
		t.Errorf("clicks continued after disable: %d -> %d", settled, got)
	}

	r.stop(t)
	if !r.sink.Closed() {
		t.Error("expected sink closed after stop")
	}
	if held := r.sink.Pressed(); len(held) != 0 {
		t.Errorf("codes still held after stop: %v", held)
	}
}

func TestIntegrationPedalDrivesSecondary(t *testing.T) {
	r := newRig(t)

	r.pedal.Press()
	r.pedal.Release()
	waitFor(t, "right clicks", func() bool { return len(r.sink.Presses(keycode.BtnRight)) >= 2 })

	snap := r.tracker.Snapshot()
	if !snap.Engine.Secondary.Active {
		t.Error("expected secondary active in status")
	}
	if snap.Engine.Primary.Active {
		t.Error("primary should be off")
	}

	r.stop(t)
}

func TestIntegrationClickRateWithinBounds(t *testing.T) {
	r := newRig(t)

	r.tap(keycode.KeyF6)
	waitFor(t, "first click", func() bool { return len(r.sink.Presses(keycode.BtnLeft)) >= 1 })
	start := len(r.sink.Presses(keycode.BtnLeft))
	time.Sleep(time.Second)
	n := len(r.sink.Presses(keycode.BtnLeft)) - start
	r.stop(t)

	// The effective rate is clamped to 6..22 cps; allow scheduling slack.
	if n < 4 || n > 24 {
		t.Errorf("clicks in one second: got %d, want roughly 6..22", n)
	}
}

func TestIntegrationRebindThenUseNewKey(t *testing.T) {
	r := newRig(t)

	r.listener.StartRebind(trigger.SlotTriggerPrimary)
	r.tap(keycode.KeyW)
	waitFor(t, "rebind committed", func() bool {
		r.owner.mu.Lock()
		defer r.owner.mu.Unlock()
		return len(r.owner.rebinds) == 1
	})

	r.tap(keycode.KeyF6)
	time.Sleep(200 * time.Millisecond)
	if n := len(r.sink.Presses(keycode.BtnLeft)); n != 0 {
		t.Errorf("old binding still toggles: %d clicks", n)
	}

	r.tap(keycode.KeyW)
	waitFor(t, "clicks on new binding", func() bool { return len(r.sink.Presses(keycode.BtnLeft)) >= 2 })

	r.stop(t)
}
