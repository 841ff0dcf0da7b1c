package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/cadence-clicker/internal/engine"
	"github.com/sweeney/cadence-clicker/internal/keycode"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	Paused        bool         `json:"paused"`
	Primary       ChannelJSON  `json:"primary"`
	Secondary     ChannelJSON  `json:"secondary"`
	Presses       int64        `json:"presses"`
	LastPress     string       `json:"last_press,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Listener      ListenerJSON `json:"listener"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Config        ConfigJSON   `json:"config"`
}

// ChannelJSON is the JSON representation of one engine channel.
type ChannelJSON struct {
	State      string  `json:"state"`
	Mood       string  `json:"mood,omitempty"`
	BaseRate   float64 `json:"base_rate"`
	Target     int     `json:"target"`
	TargetName string  `json:"target_name"`
	Presses    int64   `json:"presses"`
}

// ListenerJSON is the JSON representation of the trigger listener.
type ListenerJSON struct {
	Style     string       `json:"style"`
	Visible   bool         `json:"visible"`
	Paused    bool         `json:"paused"`
	Rebinding string       `json:"rebinding,omitempty"`
	Bindings  BindingsJSON `json:"bindings"`
	Devices   []string     `json:"devices"`
}

// BindingsJSON lists the bound codes.
type BindingsJSON struct {
	TriggerPrimary   BindingJSON `json:"trigger_primary"`
	TriggerSecondary BindingJSON `json:"trigger_secondary"`
	Hide             BindingJSON `json:"hide"`
}

// BindingJSON is one code with its display name.
type BindingJSON struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Topic     string `json:"topic"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	HTTPAddr     string `json:"http_addr"`
	DeviceName   string `json:"device_name"`
	SettingsPath string `json:"settings_path"`
	Pedal        string `json:"pedal,omitempty"`
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func buildChannel(c engine.ChannelStatus) ChannelJSON {
	return ChannelJSON{
		State:      onOff(c.Active),
		Mood:       string(c.Mood),
		BaseRate:   c.BaseRate,
		Target:     int(c.Target),
		TargetName: keycode.DisplayName(c.Target),
		Presses:    c.Presses,
	}
}

func binding(c keycode.Code) BindingJSON {
	return BindingJSON{Code: int(c), Name: keycode.DisplayName(c)}
}

func buildInner(snap Snapshot) StatusInner {
	e := snap.Engine
	l := snap.Listener

	inner := StatusInner{
		Mode:          orUnknown(string(e.Mode)),
		Paused:        e.Paused,
		Primary:       buildChannel(e.Primary),
		Secondary:     buildChannel(e.Secondary),
		Presses:       e.Presses,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Listener: ListenerJSON{
			Style:     orUnknown(string(l.Style)),
			Visible:   l.Visible,
			Paused:    l.Paused,
			Rebinding: string(l.Rebinding),
			Bindings: BindingsJSON{
				TriggerPrimary:   binding(l.Bindings.Primary),
				TriggerSecondary: binding(l.Bindings.Secondary),
				Hide:             binding(l.Bindings.Hide),
			},
			Devices: append([]string{}, l.Devices...),
		},
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Topic:     snap.Config.Topic,
		},
		Config: ConfigJSON{
			HeartbeatMs:  snap.Config.HeartbeatMs,
			HTTPAddr:     snap.Config.HTTPAddr,
			DeviceName:   snap.Config.DeviceName,
			SettingsPath: snap.Config.SettingsPath,
			Pedal:        snap.Config.Pedal,
		},
	}
	if !e.LastPress.IsZero() {
		inner.LastPress = e.LastPress.UTC().Format(time.RFC3339Nano)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
