package models

import "time"

// Event types recorded in the power event log.
const (
	EventProfileApplied  = "PROFILE_APPLIED"
	EventKnobError       = "KNOB_ERROR"
	EventUnknownProfile  = "UNKNOWN_PROFILE"
	EventOverride        = "OVERRIDE"
	EventThresholds      = "THRESHOLDS"
	EventPowerSource     = "POWER_SOURCE"
	EventGraceEnded      = "GRACE_ENDED"
	EventConfigReloaded  = "CONFIG_RELOADED"
	EventConfigRejected  = "CONFIG_REJECTED"
	EventRootFeatureFail = "ROOT_FEATURE_ERROR"
)

// EventTypes lists every type the daemon records.
var EventTypes = []string{
	EventProfileApplied,
	EventKnobError,
	EventUnknownProfile,
	EventOverride,
	EventThresholds,
	EventPowerSource,
	EventGraceEnded,
	EventConfigReloaded,
	EventConfigRejected,
	EventRootFeatureFail,
}

// IsEventType reports whether s is one of EventTypes. Case matters.
func IsEventType(s string) bool {
	for _, t := range EventTypes {
		if t == s {
			return true
		}
	}
	return false
}

// PowerEvent is a single log entry.
type PowerEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
