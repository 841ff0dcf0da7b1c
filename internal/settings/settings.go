// Package settings persists clicker configuration between runs.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sweeney/cadence-clicker/internal/cadence"
	"github.com/sweeney/cadence-clicker/internal/engine"
	"github.com/sweeney/cadence-clicker/internal/keycode"
	"github.com/sweeney/cadence-clicker/internal/trigger"
)

// AppName names the settings directory under the user config dir.
const AppName = "cadence-clicker"

// Settings is the on-disk configuration. Fields absent from the file keep
// their defaults.
type Settings struct {
	RatePrimary           float64              `json:"rate_primary"`
	RateSecondary         float64              `json:"rate_secondary"`
	JitterStrength        float64              `json:"jitter_strength"`
	Humanization          cadence.Humanization `json:"humanization_level"`
	Mode                  engine.Mode          `json:"mode"`
	OutputCode            keycode.Code         `json:"output_code"`
	TriggerStyle          trigger.Style        `json:"trigger_style"`
	TriggerPrimary        keycode.Code         `json:"trigger_primary"`
	TriggerSecondary      keycode.Code         `json:"trigger_secondary"`
	Hide                  keycode.Code         `json:"hide"`
	AssistWTapEnabled     bool                 `json:"assist_wtap_enabled"`
	AssistWTapChance      float64              `json:"assist_wtap_chance"`
	AssistBlockHitEnabled bool                 `json:"assist_blockhit_enabled"`
	AssistBlockHitChance  float64              `json:"assist_blockhit_chance"`
}

// Default returns the settings used when no file exists.
func Default() Settings {
	b := trigger.DefaultBindings()
	return Settings{
		RatePrimary:          12,
		RateSecondary:        12,
		JitterStrength:       2,
		Humanization:         cadence.Legit,
		Mode:                 engine.ModePointer,
		OutputCode:           keycode.None,
		TriggerStyle:         trigger.StyleToggle,
		TriggerPrimary:       b.Primary,
		TriggerSecondary:     b.Secondary,
		Hide:                 b.Hide,
		AssistWTapChance:     5,
		AssistBlockHitChance: 10,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/cadence-clicker/config.json, falling
// back to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, AppName, "config.json")
}

// Load reads settings from path. A missing file yields defaults and no
// error. A malformed file yields defaults and an error.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("decode settings %s: %w", path, err)
	}
	return s.normalize(), nil
}

// Save writes the whole file, creating its directory if needed.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// normalize replaces values the engine would reject with defaults.
func (s Settings) normalize() Settings {
	d := Default()
	if s.Mode != engine.ModePointer && s.Mode != engine.ModeKey {
		s.Mode = d.Mode
	}
	if s.Humanization != cadence.Legit && s.Humanization != cadence.Blatant {
		s.Humanization = d.Humanization
	}
	if s.TriggerStyle != trigger.StyleToggle && s.TriggerStyle != trigger.StyleHold {
		s.TriggerStyle = d.TriggerStyle
	}
	if s.RatePrimary <= 0 {
		s.RatePrimary = d.RatePrimary
	}
	if s.RateSecondary <= 0 {
		s.RateSecondary = d.RateSecondary
	}
	if s.JitterStrength < 0 {
		s.JitterStrength = 0
	}
	return s
}

// Delta returns a ConfigDelta carrying every engine-facing field.
func (s Settings) Delta() engine.ConfigDelta {
	mode := s.Mode
	rp, rs := s.RatePrimary, s.RateSecondary
	jitter := s.JitterStrength
	hum := s.Humanization
	out := s.OutputCode
	wt, wtc := s.AssistWTapEnabled, s.AssistWTapChance
	bh, bhc := s.AssistBlockHitEnabled, s.AssistBlockHitChance
	d := engine.ConfigDelta{
		Mode:                  &mode,
		RatePrimary:           &rp,
		RateSecondary:         &rs,
		JitterStrength:        &jitter,
		Humanization:          &hum,
		OutputCode:            &out,
		AssistWTapEnabled:     &wt,
		AssistWTapChance:      &wtc,
		AssistBlockHitEnabled: &bh,
		AssistBlockHitChance:  &bhc,
	}
	return d.Sanitize()
}

// Bindings returns the listener bindings.
func (s Settings) Bindings() trigger.Bindings {
	return trigger.Bindings{
		Primary:   s.TriggerPrimary,
		Secondary: s.TriggerSecondary,
		Hide:      s.Hide,
	}
}

// ApplyRebind stores a committed rebind. It reports whether slot was
// recognised.
func (s *Settings) ApplyRebind(slot trigger.Slot, code keycode.Code) bool {
	switch slot {
	case trigger.SlotTriggerPrimary:
		s.TriggerPrimary = code
	case trigger.SlotTriggerSecondary:
		s.TriggerSecondary = code
	case trigger.SlotHide:
		s.Hide = code
	case trigger.SlotTarget:
		s.OutputCode = code
	default:
		return false
	}
	return true
}

// Apply folds a ConfigDelta received at runtime into the settings so it
// survives a restart.
func (s *Settings) Apply(d engine.ConfigDelta) {
	if d.Mode != nil {
		s.Mode = *d.Mode
	}
	if d.RatePrimary != nil {
		s.RatePrimary = *d.RatePrimary
	}
	if d.RateSecondary != nil {
		s.RateSecondary = *d.RateSecondary
	}
	if d.JitterStrength != nil {
		s.JitterStrength = *d.JitterStrength
	}
	if d.Humanization != nil {
		s.Humanization = *d.Humanization
	}
	if d.OutputCode != nil {
		s.OutputCode = *d.OutputCode
	}
	if d.AssistWTapEnabled != nil {
		s.AssistWTapEnabled = *d.AssistWTapEnabled
	}
	if d.AssistWTapChance != nil {
		s.AssistWTapChance = *d.AssistWTapChance
	}
	if d.AssistBlockHitEnabled != nil {
		s.AssistBlockHitEnabled = *d.AssistBlockHitEnabled
	}
	if d.AssistBlockHitChance != nil {
		s.AssistBlockHitChance = *d.AssistBlockHitChance
	}
}
