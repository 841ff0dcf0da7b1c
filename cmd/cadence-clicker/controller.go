package main

import (
	"log"
	"sync"
	"time"

	"github.com/sweeney/cadence-clicker/internal/engine"
	"github.com/sweeney/cadence-clicker/internal/keycode"
	"github.com/sweeney/cadence-clicker/internal/mqtt"
	"github.com/sweeney/cadence-clicker/internal/settings"
	"github.com/sweeney/cadence-clicker/internal/trigger"
)

const sendTimeout = 250 * time.Millisecond

// listenerControl is the part of trigger.Listener the controller drives.
type listenerControl interface {
	SetTriggerStyle(s trigger.Style)
	SetTargetMode(m engine.Mode)
	SetPaused(p bool)
	StartRebind(slot trigger.Slot)
	StopAll()
}

// controller owns the trigger listener and handles remote requests. It turns
// both into engine commands and config deltas, publishes channel transitions
// and persists settings changes.
type controller struct {
	commands chan<- engine.Command
	configs  chan<- engine.ConfigDelta
	save     func(settings.Settings) error
	now      func() time.Time

	// listener is set once before any input arrives.
	listener listenerControl

	mu        sync.Mutex
	publisher mqtt.Publisher
	settings  settings.Settings
	active    [2]bool
}

func newController(commands chan<- engine.Command, configs chan<- engine.ConfigDelta, s settings.Settings, save func(settings.Settings) error, now func() time.Time) *controller {
	return &controller{
		commands: commands,
		configs:  configs,
		save:     save,
		now:      now,
		settings: s,
	}
}

func (c *controller) setPublisher(p mqtt.Publisher) {
	c.mu.Lock()
	c.publisher = p
	c.mu.Unlock()
}

func channelFor(role trigger.Role) engine.ChannelID {
	if role == trigger.Secondary {
		return engine.Secondary
	}
	return engine.Primary
}

// OnToggle implements trigger.Owner.
func (c *controller) OnToggle(role trigger.Role, on bool) {
	c.setChannel(channelFor(role), on, "trigger")
}

// OnStart implements trigger.Owner.
func (c *controller) OnStart(role trigger.Role) {
	c.setChannel(channelFor(role), true, "trigger")
}

// OnStop implements trigger.Owner.
func (c *controller) OnStop(role trigger.Role) {
	c.setChannel(channelFor(role), false, "trigger")
}

// OnRebindCommitted implements trigger.Owner.
func (c *controller) OnRebindCommitted(name string, code keycode.Code, slot trigger.Slot) {
	log.Printf("controller: %s bound to %s (%d)", slot, name, code)
	c.mu.Lock()
	ok := c.settings.ApplyRebind(slot, code)
	s := c.settings
	c.mu.Unlock()
	if !ok {
		return
	}
	c.persist(s)
	if slot == trigger.SlotTarget {
		c.sendConfig(engine.ConfigDelta{OutputCode: &code})
	}
}

// OnVisibilityToggle implements trigger.Owner. There is no window to hide;
// the flag is only reported.
func (c *controller) OnVisibilityToggle(visible bool) {
	log.Printf("controller: visible=%v", visible)
}

// HandleCommand implements mqtt.RemoteHandler.
func (c *controller) HandleCommand(cmd engine.Command) {
	switch cmd.Kind {
	case engine.CmdStop:
		// A remote STOP switches everything off; it does not end the engine.
		log.Printf("controller: remote stop")
		c.stopAll()
	case engine.CmdPause:
		c.listener.SetPaused(true)
		c.send(cmd)
	case engine.CmdResume:
		c.listener.SetPaused(false)
		c.send(cmd)
	case engine.CmdEnable, engine.CmdDisable:
		c.mu.Lock()
		mode := c.settings.Mode
		c.mu.Unlock()
		if cmd.Channel == engine.Secondary && mode == engine.ModeKey {
			log.Printf("controller: ignoring %s in key mode", cmd)
			return
		}
		c.setChannel(cmd.Channel, cmd.Kind == engine.CmdEnable, "remote")
	}
}

// HandleConfig implements mqtt.RemoteHandler.
func (c *controller) HandleConfig(d engine.ConfigDelta) {
	c.mu.Lock()
	prevMode := c.settings.Mode
	c.settings.Apply(d)
	s := c.settings
	c.mu.Unlock()

	c.persist(s)
	if d.Mode != nil && *d.Mode == engine.ModeKey && d.OutputCode == nil {
		// Key mode has no default output; carry the saved one.
		out := s.OutputCode
		d.OutputCode = &out
	}
	c.sendConfig(d)
	if d.Mode != nil && *d.Mode != prevMode {
		log.Printf("controller: mode %s", *d.Mode)
		c.listener.SetTargetMode(*d.Mode)
		c.stopAll()
	}
}

// HandleListener implements mqtt.RemoteHandler.
func (c *controller) HandleListener(req mqtt.ListenerRequest) {
	if req.TriggerStyle != nil {
		c.mu.Lock()
		c.settings.TriggerStyle = *req.TriggerStyle
		s := c.settings
		c.mu.Unlock()
		c.persist(s)
		log.Printf("controller: trigger style %s", *req.TriggerStyle)
		c.listener.SetTriggerStyle(*req.TriggerStyle)
	}
	if req.Rebind != nil {
		log.Printf("controller: waiting for %s key", *req.Rebind)
		c.listener.StartRebind(*req.Rebind)
	}
}

// stopAll stops every trigger-held role, then any channel still on from a
// remote enable.
func (c *controller) stopAll() {
	c.listener.StopAll()
	for _, ch := range []engine.ChannelID{engine.Primary, engine.Secondary} {
		c.mu.Lock()
		on := c.active[ch]
		c.mu.Unlock()
		if on {
			c.setChannel(ch, false, "remote")
		}
	}
}

func (c *controller) setChannel(ch engine.ChannelID, on bool, source string) {
	if on {
		c.send(engine.Enable(ch))
	} else {
		c.send(engine.Disable(ch))
	}

	c.mu.Lock()
	c.active[ch] = on
	event := mqtt.ChannelEvent{
		Timestamp: c.now(),
		Type:      mqtt.ChannelEventType(ch, on),
		Source:    source,
		Primary:   c.active[engine.Primary],
		Secondary: c.active[engine.Secondary],
	}
	pub := c.publisher
	c.mu.Unlock()

	log.Printf("controller: %s (%s)", event.Type, source)
	if pub == nil {
		return
	}
	if err := pub.Publish(event); err != nil {
		log.Printf("controller: publish %s: %v", event.Type, err)
	}
}

// send waits up to sendTimeout for queue space. The engine drains its queue
// every iteration, so a longer wait means it is wedged.
func (c *controller) send(cmd engine.Command) {
	select {
	case c.commands <- cmd:
		return
	default:
	}
	t := time.NewTimer(sendTimeout)
	defer t.Stop()
	select {
	case c.commands <- cmd:
	case <-t.C:
		log.Printf("controller: command queue full after %v, dropped %s", sendTimeout, cmd)
	}
}

func (c *controller) sendConfig(d engine.ConfigDelta) {
	select {
	case c.configs <- d:
		return
	default:
	}
	t := time.NewTimer(sendTimeout)
	defer t.Stop()
	select {
	case c.configs <- d:
	case <-t.C:
		log.Printf("controller: config queue full after %v, dropped update", sendTimeout)
	}
}

func (c *controller) persist(s settings.Settings) {
	if c.save == nil {
		return
	}
	if err := c.save(s); err != nil {
		log.Printf("controller: %v", err)
	}
}
