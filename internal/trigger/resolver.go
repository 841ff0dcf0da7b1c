package trigger

import (
	"github.com/sweeney/cadence-clicker/internal/engine"
	"github.com/sweeney/cadence-clicker/internal/keycode"
)

type roleState struct {
	enabled bool
	holding bool
	// pending marks a hold started from a pointer button. No start is
	// issued for it, and its release issues no stop, so the clicks the
	// engine injects on the same button cannot retrigger the role.
	pending bool
}

// Resolver maps raw events to actions. It is not safe for concurrent use.
type Resolver struct {
	bindings Bindings
	style    Style
	mode     engine.Mode
	paused   bool
	visible  bool
	rebind   Slot
	roles    [2]roleState
}

// NewResolver creates a Resolver with the GUI considered visible.
func NewResolver(b Bindings, style Style, mode engine.Mode) *Resolver {
	return &Resolver{bindings: b, style: style, mode: mode, visible: true}
}

// Bindings returns the current bindings.
func (r *Resolver) Bindings() Bindings { return r.bindings }

// Style returns the trigger style.
func (r *Resolver) Style() Style { return r.style }

// Mode returns the target mode.
func (r *Resolver) Mode() engine.Mode { return r.mode }

// Paused reports whether trigger events are being dropped.
func (r *Resolver) Paused() bool { return r.paused }

// Visible returns the GUI visibility flag.
func (r *Resolver) Visible() bool { return r.visible }

// Rebinding returns the slot awaiting a rebind, or SlotNone.
func (r *Resolver) Rebinding() Slot { return r.rebind }

// Enabled reports whether role is currently on.
func (r *Resolver) Enabled(role Role) bool { return r.roles[role].enabled }

// Holding reports whether role's hold trigger is down.
func (r *Resolver) Holding(role Role) bool { return r.roles[role].holding }

// Pending reports whether role holds a deferred pointer-originated start.
func (r *Resolver) Pending(role Role) bool { return r.roles[role].pending }

// StartRebind arms rebind mode for slot. The next press is captured.
func (r *Resolver) StartRebind(slot Slot) {
	r.rebind = slot
}

// SetTriggerStyle switches style and stops everything.
func (r *Resolver) SetTriggerStyle(s Style) []Action {
	r.style = s
	return r.StopAll()
}

// SetTargetMode switches target mode and stops everything.
func (r *Resolver) SetTargetMode(m engine.Mode) []Action {
	r.mode = m
	return r.StopAll()
}

// SetPaused marks the listener paused. Pausing stops everything.
func (r *Resolver) SetPaused(p bool) []Action {
	r.paused = p
	if p {
		return r.StopAll()
	}
	return nil
}

// StopAll turns every enabled or held role off, emitting a stop for each,
// and clears hold bookkeeping. A second call emits nothing.
func (r *Resolver) StopAll() []Action {
	var out []Action
	for _, role := range roles {
		st := &r.roles[role]
		if st.enabled || st.holding {
			out = append(out, Action{Kind: ActStop, Role: role})
		}
		*st = roleState{}
	}
	return out
}

// Process resolves one raw event.
func (r *Resolver) Process(ev Event) []Action {
	if r.rebind != SlotNone && ev.Value == ValuePress {
		return r.processRebind(ev.Code)
	}

	if ev.Code == r.bindings.Hide && ev.Value == ValuePress {
		r.visible = !r.visible
		return []Action{{Kind: ActVisibility, Visible: r.visible}}
	}

	if r.paused {
		return nil
	}

	var out []Action
	for _, role := range roles {
		out = append(out, r.processTrigger(role, ev)...)
	}
	return out
}

func (r *Resolver) processRebind(code keycode.Code) []Action {
	slot := r.rebind

	if code == keycode.KeyEsc {
		old := keycode.None
		switch slot {
		case SlotTriggerPrimary:
			old = r.bindings.Primary
		case SlotTriggerSecondary:
			old = r.bindings.Secondary
		case SlotHide:
			old = r.bindings.Hide
		}
		r.rebind = SlotNone
		return []Action{{Kind: ActRebind, Name: keycode.DisplayName(old), Code: old, Slot: slot}}
	}

	if r.collides(slot, code) {
		return nil
	}

	switch slot {
	case SlotTriggerPrimary:
		r.bindings.Primary = code
	case SlotTriggerSecondary:
		r.bindings.Secondary = code
	case SlotHide:
		r.bindings.Hide = code
	}
	r.rebind = SlotNone
	return []Action{{Kind: ActRebind, Name: keycode.DisplayName(code), Code: code, Slot: slot}}
}

// collides reports whether code is reserved for another role while binding
// slot. Pointer buttons are reserved for the engine's own output.
func (r *Resolver) collides(slot Slot, code keycode.Code) bool {
	switch slot {
	case SlotTriggerPrimary, SlotTriggerSecondary:
		return keycode.IsPointer(code) || code == r.bindings.Hide
	case SlotHide:
		return keycode.IsPointer(code) || code == r.bindings.Primary || code == r.bindings.Secondary
	}
	return false
}

func (r *Resolver) processTrigger(role Role, ev Event) []Action {
	if role == Secondary && r.mode == engine.ModeKey {
		return nil
	}
	if ev.Code != r.bindings.trigger(role) {
		return nil
	}
	st := &r.roles[role]

	switch r.style {
	case StyleToggle:
		if ev.Value != ValuePress {
			return nil
		}
		st.enabled = !st.enabled
		return []Action{{Kind: ActToggle, Role: role, On: st.enabled}}

	case StyleHold:
		switch ev.Value {
		case ValuePress:
			if st.holding {
				return nil
			}
			st.holding = true
			if keycode.IsPointer(ev.Code) {
				st.pending = true
				return nil
			}
			st.enabled = true
			return []Action{{Kind: ActStart, Role: role}}
		case ValueRelease:
			if !st.holding {
				return nil
			}
			st.holding = false
			if st.pending {
				st.pending = false
				return nil
			}
			st.enabled = false
			return []Action{{Kind: ActStop, Role: role}}
		}
	}
	return nil
}
