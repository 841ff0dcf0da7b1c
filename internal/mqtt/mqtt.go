// Package mqtt provides remote control and telemetry over MQTT with an
// abstraction for testing.
//
// Topics hang off a configurable prefix:
//
//	<prefix>/events   channel on/off transitions (published)
//	<prefix>/system   STARTUP, SHUTDOWN, HEARTBEAT, RECONNECTED, OFFLINE (published)
//	<prefix>/command  engine commands such as ENABLE_PRIMARY (subscribed)
//	<prefix>/config   JSON configuration deltas (subscribed)
//	<prefix>/listener JSON trigger style and rebind requests (subscribed)
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/cadence-clicker/internal/engine"
)

// DefaultPrefix is the default topic prefix.
const DefaultPrefix = "cadence-clicker"

// Topics holds the full topic names for one prefix.
type Topics struct {
	Events   string
	System   string
	Command  string
	Config   string
	Listener string
}

// NewTopics derives all topics from prefix.
func NewTopics(prefix string) Topics {
	return Topics{
		Events:   prefix + "/events",
		System:   prefix + "/system",
		Command:  prefix + "/command",
		Config:   prefix + "/config",
		Listener: prefix + "/listener",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a channel transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event ChannelEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// EventType names a channel transition.
type EventType string

const (
	EventPrimaryOn    EventType = "PRIMARY_ON"
	EventPrimaryOff   EventType = "PRIMARY_OFF"
	EventSecondaryOn  EventType = "SECONDARY_ON"
	EventSecondaryOff EventType = "SECONDARY_OFF"
)

// ChannelEventType returns the event type for ch turning on or off.
func ChannelEventType(ch engine.ChannelID, on bool) EventType {
	switch {
	case ch == engine.Secondary && on:
		return EventSecondaryOn
	case ch == engine.Secondary:
		return EventSecondaryOff
	case on:
		return EventPrimaryOn
	default:
		return EventPrimaryOff
	}
}

// ChannelEvent is one channel transition together with the resulting state
// of both channels.
type ChannelEvent struct {
	Timestamp time.Time
	Type      EventType
	Source    string // "trigger" or "remote"
	Primary   bool
	Secondary bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Clicker ClickerPayload `json:"clicker"`
}

// ClickerPayload contains the channel event details.
type ClickerPayload struct {
	Timestamp string       `json:"timestamp"`
	Event     string       `json:"event"`
	Source    string       `json:"source,omitempty"`
	Primary   ChannelState `json:"primary"`
	Secondary ChannelState `json:"secondary"`
}

// ChannelState represents a single channel's state.
type ChannelState struct {
	State string `json:"state"`
}

func stateString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// FormatPayload creates the JSON payload for a channel event.
func FormatPayload(event ChannelEvent) ([]byte, error) {
	payload := Payload{
		Clicker: ClickerPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Source:    event.Source,
			Primary:   ChannelState{State: stateString(event.Primary)},
			Secondary: ChannelState{State: stateString(event.Secondary)},
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
