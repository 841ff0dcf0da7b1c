// Package engine schedules and emits synthetic clicks.
//
// The engine loop owns all cadence state exclusively. It is driven only by two
// inbound channels: commands (start/stop/pause) and configuration deltas.
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/sweeney/cadence-clicker/internal/cadence"
	"github.com/sweeney/cadence-clicker/internal/keycode"
)

// ChannelID identifies one of the two independently scheduled click sources.
type ChannelID int

const (
	Primary ChannelID = iota
	Secondary
)

func (c ChannelID) String() string {
	switch c {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Mode selects what the engine emits.
type Mode string

const (
	// ModePointer clicks the left/right pointer buttons.
	ModePointer Mode = "pointer"
	// ModeKey presses a configurable key on the primary channel only.
	ModeKey Mode = "key"
)

// CommandKind enumerates engine commands.
type CommandKind int

const (
	CmdStop CommandKind = iota
	CmdPause
	CmdResume
	CmdEnable
	CmdDisable
)

// Command is a control message for the engine loop. Channel is only
// meaningful for CmdEnable and CmdDisable.
type Command struct {
	Kind    CommandKind
	Channel ChannelID
}

// Stop ends the engine loop after cleanup.
func Stop() Command { return Command{Kind: CmdStop} }

// Pause suspends emission without changing channel state.
func Pause() Command { return Command{Kind: CmdPause} }

// Resume undoes Pause.
func Resume() Command { return Command{Kind: CmdResume} }

// Enable activates a channel.
func Enable(ch ChannelID) Command { return Command{Kind: CmdEnable, Channel: ch} }

// Disable deactivates a channel.
func Disable(ch ChannelID) Command { return Command{Kind: CmdDisable, Channel: ch} }

func (c Command) String() string {
	switch c.Kind {
	case CmdStop:
		return "STOP"
	case CmdPause:
		return "PAUSE"
	case CmdResume:
		return "RESUME"
	case CmdEnable:
		return "ENABLE_" + upper(c.Channel)
	case CmdDisable:
		return "DISABLE_" + upper(c.Channel)
	default:
		return fmt.Sprintf("COMMAND(%d)", int(c.Kind))
	}
}

func upper(ch ChannelID) string {
	switch ch {
	case Primary:
		return "PRIMARY"
	case Secondary:
		return "SECONDARY"
	default:
		return "UNKNOWN"
	}
}

// ParseCommand parses the wire form produced by Command.String.
func ParseCommand(s string) (Command, bool) {
	switch s {
	case "STOP":
		return Stop(), true
	case "PAUSE":
		return Pause(), true
	case "RESUME":
		return Resume(), true
	case "ENABLE_PRIMARY":
		return Enable(Primary), true
	case "DISABLE_PRIMARY":
		return Disable(Primary), true
	case "ENABLE_SECONDARY":
		return Enable(Secondary), true
	case "DISABLE_SECONDARY":
		return Disable(Secondary), true
	}
	return Command{}, false
}

// ConfigDelta is a partial configuration update. Nil fields leave the current
// value unchanged.
type ConfigDelta struct {
	Mode                  *Mode                 `json:"mode,omitempty"`
	RatePrimary           *float64              `json:"rate_primary,omitempty"`
	RateSecondary         *float64              `json:"rate_secondary,omitempty"`
	JitterStrength        *float64              `json:"jitter_strength,omitempty"`
	Humanization          *cadence.Humanization `json:"humanization_level,omitempty"`
	OutputCode            *keycode.Code         `json:"output_code,omitempty"`
	AssistWTapEnabled     *bool                 `json:"assist_wtap_enabled,omitempty"`
	AssistWTapChance      *float64              `json:"assist_wtap_chance,omitempty"`
	AssistBlockHitEnabled *bool                 `json:"assist_blockhit_enabled,omitempty"`
	AssistBlockHitChance  *float64              `json:"assist_blockhit_chance,omitempty"`
}

// Sanitize drops fields with unusable values and clamps the rest into range.
// It never fails: a malformed field is simply ignored.
func (d ConfigDelta) Sanitize() ConfigDelta {
	if d.Mode != nil && *d.Mode != ModePointer && *d.Mode != ModeKey {
		d.Mode = nil
	}
	d.RatePrimary = positive(d.RatePrimary)
	d.RateSecondary = positive(d.RateSecondary)
	if d.JitterStrength != nil {
		v := *d.JitterStrength
		if math.IsNaN(v) || math.IsInf(v, 0) {
			d.JitterStrength = nil
		} else if v < 0 {
			v = 0
			d.JitterStrength = &v
		}
	}
	if d.Humanization != nil && *d.Humanization != cadence.Legit && *d.Humanization != cadence.Blatant {
		d.Humanization = nil
	}
	if d.OutputCode != nil && *d.OutputCode < 0 {
		none := keycode.None
		d.OutputCode = &none
	}
	d.AssistWTapChance = percent(d.AssistWTapChance)
	d.AssistBlockHitChance = percent(d.AssistBlockHitChance)
	return d
}

func positive(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) || *p <= 0 {
		return nil
	}
	return p
}

func percent(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) {
		return nil
	}
	v := math.Max(0, math.Min(100, *p))
	return &v
}

// ChannelStatus is a point-in-time view of one channel.
type ChannelStatus struct {
	Active   bool
	Mood     cadence.Mood
	BaseRate float64
	Target   keycode.Code
	Presses  int64
}

// Status is a point-in-time view of the engine, reported to a StatusSink.
type Status struct {
	Mode      Mode
	Paused    bool
	Primary   ChannelStatus
	Secondary ChannelStatus
	Presses   int64
	LastPress time.Time
}

// StatusSink receives engine status. UpdateEngine is called from the engine
// goroutine and must not block.
type StatusSink interface {
	UpdateEngine(Status)
}
