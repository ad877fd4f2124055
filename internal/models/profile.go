package models

import (
	"sort"
	"strings"
)

// Canonical profile names.
const (
	ProfilePerformance = "performance"
	ProfileBalanced    = "balanced"
	ProfilePowersave   = "powersave"
)

// DisabledValue marks a knob the profile leaves untouched. Compared case-insensitively.
const DisabledValue = "disabled"

// KnobKind names one controllable hardware aspect.
type KnobKind string

const (
	KnobCPUGovernor         KnobKind = "cpu_governor"
	KnobACPIPlatformProfile KnobKind = "acpi_platform_profile"
	KnobASPM                KnobKind = "aspm"
	KnobEPP                 KnobKind = "epp_profile"
)

// KnobOrder is the order knobs are written in during an apply.
var KnobOrder = []KnobKind{KnobCPUGovernor, KnobACPIPlatformProfile, KnobASPM, KnobEPP}

// ParseKnobKind maps a config key to a known knob.
func ParseKnobKind(s string) (KnobKind, bool) {
	k := KnobKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KnobOrder {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// PerCPU reports whether the knob exists once per CPU or cpufreq policy.
func (k KnobKind) PerCPU() bool {
	return k == KnobCPUGovernor || k == KnobEPP
}

// IsDisabled reports whether v is the "leave untouched" sentinel.
func IsDisabled(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), DisabledValue)
}

// HardwareKnob is the control file of a knob and the values it accepts.
type HardwareKnob struct {
	Path  string   `json:"path"`
	Modes []string `json:"modes,omitempty"`
}

// Allows reports whether v is a legal value. An empty mode list accepts anything.
func (k HardwareKnob) Allows(v string) bool {
	if len(k.Modes) == 0 {
		return true
	}
	for _, m := range k.Modes {
		if m == v {
			return true
		}
	}
	return false
}

// ProfileSetting holds the per-knob target values of one profile.
type ProfileSetting map[KnobKind]string

// Value returns the trimmed target for k, or "" when the profile does not set it.
func (p ProfileSetting) Value(k KnobKind) string {
	return strings.TrimSpace(p[k])
}

// RootFeature is a sysfs value switched with the power source.
type RootFeature struct {
	Enabled      bool   `json:"enabled"`
	Path         string `json:"path"`
	ACValue      string `json:"ac_value"`
	BatteryValue string `json:"battery_value"`
}

// ValueFor returns the value to write for src.
func (f RootFeature) ValueFor(src PowerSource) string {
	if src.OnBattery() {
		return f.BatteryValue
	}
	return f.ACValue
}

// RootFeatures is the list of power-source features plus the disclaimer gate.
type RootFeatures struct {
	DisclaimerAccepted bool          `json:"disclaimer_accepted"`
	Items              []RootFeature `json:"items,omitempty"`
}

// Catalog is everything reloaded together from the configuration file.
// It is replaced as a whole and never mutated after construction.
type Catalog struct {
	Thresholds Thresholds
	Profiles   map[string]ProfileSetting
	Hardware   map[KnobKind]HardwareKnob
	Features   RootFeatures
}

// Has reports whether the catalog defines the named profile.
func (c *Catalog) Has(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Profiles[name]
	return ok
}

// Names lists profiles with the canonical ones first, then the rest alphabetically.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Profiles))
	for _, name := range []string{ProfilePerformance, ProfileBalanced, ProfilePowersave} {
		if _, ok := c.Profiles[name]; ok {
			out = append(out, name)
		}
	}
	var extra []string
	for name := range c.Profiles {
		switch name {
		case ProfilePerformance, ProfileBalanced, ProfilePowersave:
			continue
		}
		extra = append(extra, name)
	}
	sort.Strings(extra)
	return append(out, extra...)
}
