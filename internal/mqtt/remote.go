package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sweeney/cadence-clicker/internal/engine"
	"github.com/sweeney/cadence-clicker/internal/trigger"
)

// ErrUnknownCommand is returned for a command payload that names no command.
var ErrUnknownCommand = errors.New("mqtt: unknown command")

// RemoteHandler receives commands and configuration from the inbound
// topics. Calls come from the MQTT client's goroutine and must not block.
type RemoteHandler interface {
	HandleCommand(cmd engine.Command)
	HandleConfig(delta engine.ConfigDelta)
	HandleListener(req ListenerRequest)
}

// ListenerRequest changes trigger listener behaviour. Nil fields are left
// alone.
type ListenerRequest struct {
	TriggerStyle *trigger.Style `json:"trigger_style,omitempty"`
	// Rebind arms capture of the next key press for the named slot.
	Rebind *trigger.Slot `json:"rebind,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r ListenerRequest) Empty() bool {
	return r.TriggerStyle == nil && r.Rebind == nil
}

type commandPayload struct {
	Command string `json:"command"`
}

// ParseCommand accepts a bare command name ("ENABLE_PRIMARY") or a JSON object
// {"command":"ENABLE_PRIMARY"}. Names are case-insensitive.
func ParseCommand(payload []byte) (engine.Command, error) {
	payload = bytes.TrimSpace(payload)
	name := string(payload)
	if len(payload) > 0 && payload[0] == '{' {
		var p commandPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return engine.Command{}, fmt.Errorf("decode command: %w", err)
		}
		name = p.Command
	}
	cmd, ok := engine.ParseCommand(strings.ToUpper(strings.TrimSpace(name)))
	if !ok {
		return engine.Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return cmd, nil
}

// ParseConfig decodes a JSON configuration delta. Unknown fields are ignored
// and out-of-range values are dropped or clamped.
func ParseConfig(payload []byte) (engine.ConfigDelta, error) {
	var d engine.ConfigDelta
	if err := json.Unmarshal(payload, &d); err != nil {
		return engine.ConfigDelta{}, fmt.Errorf("decode config: %w", err)
	}
	return d.Sanitize(), nil
}

// ParseListener decodes a listener request. Unknown styles and slots are
// dropped.
func ParseListener(payload []byte) (ListenerRequest, error) {
	var raw struct {
		TriggerStyle string `json:"trigger_style"`
		Rebind       string `json:"rebind"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return ListenerRequest{}, fmt.Errorf("decode listener request: %w", err)
	}
	var req ListenerRequest
	switch s := trigger.Style(strings.ToLower(raw.TriggerStyle)); s {
	case trigger.StyleToggle, trigger.StyleHold:
		req.TriggerStyle = &s
	}
	if slot, ok := trigger.ParseSlot(strings.ToLower(raw.Rebind)); ok {
		req.Rebind = &slot
	}
	return req, nil
}

// Dispatch routes one inbound message to h according to its topic.
// Messages on other topics are ignored.
func Dispatch(h RemoteHandler, topics Topics, topic string, payload []byte) error {
	switch topic {
	case topics.Command:
		cmd, err := ParseCommand(payload)
		if err != nil {
			return err
		}
		h.HandleCommand(cmd)
	case topics.Config:
		d, err := ParseConfig(payload)
		if err != nil {
			return err
		}
		h.HandleConfig(d)
	case topics.Listener:
		req, err := ParseListener(payload)
		if err != nil {
			return err
		}
		if req.Empty() {
			return errors.New("listener request changes nothing")
		}
		h.HandleListener(req)
	}
	return nil
}
