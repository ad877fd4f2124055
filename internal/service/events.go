package service

// EventType identifies an input to the control loop.
type EventType int

const (
	EventPowerSource EventType = iota
	EventSetProfile
	EventSetThresholds
	EventConfigReloaded
	EventConfigRejected
	EventSnapshot
)

func (t EventType) String() string {
	switch t {
	case EventPowerSource:
		return "power_source"
	case EventSetProfile:
		return "set_profile"
	case EventSetThresholds:
		return "set_thresholds"
	case EventConfigReloaded:
		return "config_reloaded"
	case EventConfigRejected:
		return "config_rejected"
	case EventSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Event is queued onto the control loop. Data depends on Type:
//
//	EventPowerSource     models.PowerSource
//	EventSetProfile      OverrideRequest
//	EventSetThresholds   models.Thresholds
//	EventConfigReloaded  *models.Catalog
//	EventConfigRejected  error
//	EventSnapshot        chan models.PowerState (buffered, size 1)
type Event struct {
	Type EventType
	Data any
}

// OverrideRequest is an external profile request. An empty Name clears it.
type OverrideRequest struct {
	Name       string
	Privileged bool
}
