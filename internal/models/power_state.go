package models

import "time"

// PowerSource is where the host currently draws power from.
type PowerSource int

const (
	PowerSourceAC PowerSource = iota
	PowerSourceBattery
)

func (p PowerSource) String() string {
	if p == PowerSourceBattery {
		return "battery"
	}
	return "ac"
}

// OnBattery reports whether p is the battery.
func (p PowerSource) OnBattery() bool { return p == PowerSourceBattery }

// PowerSourceFromBool maps an UPower style OnBattery flag to a PowerSource.
func PowerSourceFromBool(onBattery bool) PowerSource {
	if onBattery {
		return PowerSourceBattery
	}
	return PowerSourceAC
}

// Thresholds are the load-average boundaries between the baseline bands.
type Thresholds struct {
	Low  float64 `json:"low" mapstructure:"low"`
	High float64 `json:"high" mapstructure:"high"`
}

// IsZero reports the (0,0) pair, which on a requested pair means "no override".
func (t Thresholds) IsZero() bool { return t.Low == 0 && t.High == 0 }

// PowerState is a read-only snapshot of the daemon's runtime state.
type PowerState struct {
	ActiveProfile        string     `json:"active_profile"`
	TargetProfile        string     `json:"target_profile"`
	PowerSource          string     `json:"power_source"`
	OnBattery            bool       `json:"on_battery"`
	GraceActive          bool       `json:"grace_active"`
	Load1                float64    `json:"load1"`
	OverrideProfile      string     `json:"override_profile,omitempty"`
	OverridePrivileged   bool       `json:"override_privileged"`
	ConfiguredThresholds Thresholds `json:"configured_thresholds"`
	RequestedThresholds  Thresholds `json:"requested_thresholds"`
	EffectiveThresholds  Thresholds `json:"effective_thresholds"`
	Profiles             []string   `json:"profiles"`
	KnobErrors           []string   `json:"knob_errors,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
