package bus

import (
	"context"
	"errors"
	"time"

	"dynamic_power/internal/logger"
	"dynamic_power/internal/models"
	"dynamic_power/internal/service"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	DaemonBusName                   = "org.dynamic_power.Daemon"
	DaemonPath      dbus.ObjectPath = "/org/dynamic_power/Daemon"
	DaemonInterface                 = "org.dynamic_power.Daemon"

	SignalPowerStateChanged = "PowerStateChanged"

	pongReply     = "Pong from dynamic_power"
	noProfileName = "Error"
	callTimeout   = 2 * time.Second
)

// daemonObject implements org.dynamic_power.Daemon. Domain rejections are
// false replies; only an unreachable control loop is a D-Bus error.
type daemonObject struct {
	ctl Controller
	log *logger.Logger
	now func() time.Time
}

func newDaemonObject(ctl Controller, log *logger.Logger) *daemonObject {
	return &daemonObject{ctl: ctl, log: log, now: time.Now}
}

func (d *daemonObject) Ping() (string, *dbus.Error) {
	d.log.Infow("dbus_ping")
	return pongReply, nil
}

func (d *daemonObject) GetDaemonState() (map[string]dbus.Variant, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	s, err := d.ctl.GetState(ctx)
	if err != nil {
		d.log.Warnw("dbus_get_state_failed", "err", err)
		return nil, dbus.MakeFailedError(err)
	}
	return stateMap(s, d.now()), nil
}

// GetState is the short name used by older clients.
func (d *daemonObject) GetState() (map[string]dbus.Variant, *dbus.Error) {
	return d.GetDaemonState()
}

func (d *daemonObject) SetLoadThresholds(low, high float64) (bool, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	err := d.ctl.SetThresholds(ctx, models.Thresholds{Low: low, High: high})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, service.ErrInvalidThresholds):
		d.log.Warnw("dbus_thresholds_rejected", "low", low, "high", high, "err", err)
		return false, nil
	default:
		return false, dbus.MakeFailedError(err)
	}
}

func (d *daemonObject) SetProfile(name string, privileged bool) (bool, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	d.log.Debugw("dbus_set_profile", "profile", name, "privileged", privileged)
	if err := d.ctl.SetProfile(ctx, name, privileged); err != nil {
		return false, dbus.MakeFailedError(err)
	}
	return true, nil
}

func (d *daemonObject) SetPollInterval(interval uint32) (bool, *dbus.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if err := d.ctl.SetPollInterval(ctx, interval); err != nil {
		return false, dbus.MakeFailedError(err)
	}
	return true, nil
}

// stateMap renders s as the a{sv} reply of GetDaemonState.
func stateMap(s models.PowerState, now time.Time) map[string]dbus.Variant {
	active := s.ActiveProfile
	if active == "" {
		active = noProfileName
	}
	return map[string]dbus.Variant{
		"active_profile": dbus.MakeVariant(active),
		"threshold_low":  dbus.MakeVariant(s.EffectiveThresholds.Low),
		"threshold_high": dbus.MakeVariant(s.EffectiveThresholds.High),
		"timestamp":      dbus.MakeVariant(now.Unix()),
		"power_source":   dbus.MakeVariant(s.PowerSource),
		"on_battery":     dbus.MakeVariant(s.OnBattery),
		"grace_active":   dbus.MakeVariant(s.GraceActive),
	}
}

func daemonIntrospection(d *daemonObject) introspect.Introspectable {
	node := &introspect.Node{
		Name: string(DaemonPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    DaemonInterface,
				Methods: introspect.Methods(d),
				Signals: []introspect.Signal{{Name: SignalPowerStateChanged}},
			},
		},
	}
	return introspect.NewIntrospectable(node)
}
