package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/cadence-clicker/internal/cadence"
	"github.com/sweeney/cadence-clicker/internal/engine"
	"github.com/sweeney/cadence-clicker/internal/keycode"
	"github.com/sweeney/cadence-clicker/internal/trigger"
)

func sampleEngine() engine.Status {
	return engine.Status{
		Mode: engine.ModePointer,
		Primary: engine.ChannelStatus{
			Active:   true,
			Mood:     cadence.Bursting,
			BaseRate: 12,
			Target:   keycode.BtnLeft,
			Presses:  40,
		},
		Secondary: engine.ChannelStatus{
			Mood:     cadence.Cruising,
			BaseRate: 9,
			Target:   keycode.BtnRight,
			Presses:  2,
		},
		Presses:   42,
		LastPress: time.Date(2026, 1, 1, 0, 14, 59, 500000000, time.UTC),
	}
}

func sampleListener() trigger.Snapshot {
	return trigger.Snapshot{
		Bindings: trigger.DefaultBindings(),
		Style:    trigger.StyleToggle,
		Mode:     engine.ModePointer,
		Visible:  true,
		Devices:  []string{"/dev/input/event3"},
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{HeartbeatMs: 60000, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.HTTPAddr != ":8080" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":8080")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if snap.Engine.Presses != 0 {
		t.Error("expected no presses initially")
	}
}

func TestUpdateEngine(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var sink engine.StatusSink = tr

	sink.UpdateEngine(sampleEngine())

	snap := tr.Snapshot()
	if !snap.Engine.Primary.Active {
		t.Error("expected primary active")
	}
	if snap.Engine.Presses != 42 {
		t.Errorf("Presses: got %d, want 42", snap.Engine.Presses)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(15 * time.Minute)}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	ls := sampleListener()
	tr.UpdateListener(ls)
	ls.Devices[0] = "mutated by caller"

	snap := tr.Snapshot()
	if snap.Listener.Devices[0] != "/dev/input/event3" {
		t.Error("tracker must not alias the caller's device slice")
	}
	snap.Listener.Devices[0] = "mutated by reader"
	if tr.Snapshot().Listener.Devices[0] != "/dev/input/event3" {
		t.Error("snapshot must not alias tracker state")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Engine:        sampleEngine(),
		Listener:      sampleListener(),
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Broker: "tcp://localhost:1883", Topic: "cadence-clicker", DeviceName: "Cadence Virtual HID"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status

	if s.Event != "" || s.Reason != "" {
		t.Error("web JSON should not carry event or reason")
	}
	if s.Mode != "pointer" {
		t.Errorf("Mode: got %q", s.Mode)
	}
	if s.Primary.State != "ON" || s.Secondary.State != "OFF" {
		t.Errorf("states: got %s/%s", s.Primary.State, s.Secondary.State)
	}
	if s.Primary.Mood != "BURSTING" || s.Primary.TargetName != "Left Click" {
		t.Errorf("primary: got %+v", s.Primary)
	}
	if s.Presses != 42 || s.LastPress != "2026-01-01T00:14:59.5Z" {
		t.Errorf("presses: got %d at %q", s.Presses, s.LastPress)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if s.Listener.Bindings.TriggerPrimary.Name != "F6" || s.Listener.Bindings.Hide.Name != "Right Shift" {
		t.Errorf("bindings: got %+v", s.Listener.Bindings)
	}
	if len(s.Listener.Devices) != 1 {
		t.Errorf("devices: got %v", s.Listener.Devices)
	}
	if !s.MQTT.Connected || s.MQTT.Topic != "cadence-clicker" {
		t.Errorf("mqtt: got %+v", s.MQTT)
	}
}

func TestFormatJSONBeforeFirstReport(t *testing.T) {
	snap := Snapshot{StartTime: time.Now(), Now: time.Now()}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Mode != "UNKNOWN" || parsed.Status.Listener.Style != "UNKNOWN" {
		t.Errorf("expected UNKNOWN placeholders, got mode=%q style=%q", parsed.Status.Mode, parsed.Status.Listener.Style)
	}
	if parsed.Status.LastPress != "" {
		t.Error("expected no last press")
	}
	if parsed.Status.Listener.Devices == nil {
		t.Error("expected empty device list, not null")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{Engine: sampleEngine(), StartTime: time.Now(), Now: time.Now()}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("got event=%q reason=%q", parsed.Status.Event, parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: time.Now(), Now: time.Now()}

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(FormatStatusEvent(snap, "HEARTBEAT", ""), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["status"]["reason"]; ok {
		t.Error("reason should be omitted when empty")
	}
	if raw["status"]["event"] != "HEARTBEAT" {
		t.Errorf("event: got %v", raw["status"]["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s := sampleEngine()
			s.Presses = int64(i)
			tr.UpdateEngine(s)
			tr.UpdateListener(sampleListener())
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
