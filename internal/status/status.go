// Package status provides a thread-safe status tracker for the clicker.
// The engine writes to it through engine.StatusSink; HTTP handlers and the
// MQTT heartbeat read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/cadence-clicker/internal/engine"
	"github.com/sweeney/cadence-clicker/internal/trigger"
)

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs  int64
	Broker       string
	Topic        string
	HTTPAddr     string
	DeviceName   string
	SettingsPath string
	Pedal        string // chip:line, empty when no pedal is configured
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Engine        engine.Status
	Listener      trigger.Snapshot
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// UpdateEngine implements engine.StatusSink. It is called from the engine
// goroutine and only takes the write lock briefly.
func (t *Tracker) UpdateEngine(s engine.Status) {
	t.mu.Lock()
	t.snap.Engine = s
	t.mu.Unlock()
}

// UpdateListener records the listener state.
func (t *Tracker) UpdateListener(s trigger.Snapshot) {
	s.Devices = append([]string(nil), s.Devices...)
	t.mu.Lock()
	t.snap.Listener = s
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Listener.Devices = append([]string(nil), t.snap.Listener.Devices...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
