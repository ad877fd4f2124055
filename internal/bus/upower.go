package bus

import (
	"context"
	"errors"
	"time"

	"dynamic_power/internal/logger"
	"dynamic_power/internal/models"
	"dynamic_power/internal/service"

	"github.com/godbus/dbus/v5"
)

const (
	upowerService                   = "org.freedesktop.UPower"
	upowerPath      dbus.ObjectPath = "/org/freedesktop/UPower"
	upowerInterface                 = "org.freedesktop.UPower"
	upowerOnBattery                 = "OnBattery"

	propertiesChanged = propertiesInterface + ".PropertiesChanged"
	signalBuffer      = 16
)

var errSignalsClosed = errors.New("signal channel closed")

// PowerSourceSink receives every observation. Duplicates are allowed.
type PowerSourceSink interface {
	ReportPowerSource(src models.PowerSource)
}

// SupplyReader reads the power source without a bus.
type SupplyReader interface {
	PowerSource() (models.PowerSource, error)
}

// PowerSourceMonitor follows UPower's OnBattery property and falls back to
// polling SupplyReader when UPower cannot be used.
type PowerSourceMonitor struct {
	conn     *dbus.Conn
	probe    SupplyReader
	sink     PowerSourceSink
	interval time.Duration
	log      *logger.Logger
}

// NewPowerSourceMonitor builds a monitor. conn may be nil, in which case only
// the sysfs fallback runs.
func NewPowerSourceMonitor(conn *dbus.Conn, probe SupplyReader, sink PowerSourceSink, interval time.Duration, log *logger.Logger) *PowerSourceMonitor {
	if interval <= 0 {
		interval = service.DefaultTick
	}
	return &PowerSourceMonitor{conn: conn, probe: probe, sink: sink, interval: interval, log: log}
}

// Run blocks until ctx is canceled.
func (m *PowerSourceMonitor) Run(ctx context.Context) {
	if m.conn != nil {
		err := m.watchUPower(ctx)
		if ctx.Err() != nil {
			return
		}
		m.log.Warnw("upower_unavailable_polling_sysfs", "err", err, "interval", m.interval.String())
	}
	m.pollSupply(ctx)
}

func (m *PowerSourceMonitor) watchUPower(ctx context.Context) error {
	onBattery, err := m.queryOnBattery(ctx)
	if err != nil {
		return &ConnectError{Op: "get UPower.OnBattery", Err: err}
	}
	m.sink.ReportPowerSource(models.PowerSourceFromBool(onBattery))

	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(upowerPath),
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
	}
	if err := m.conn.AddMatchSignalContext(ctx, match...); err != nil {
		return &ConnectError{Op: "subscribe UPower PropertiesChanged", Err: err}
	}
	defer func() { _ = m.conn.RemoveMatchSignal(match...) }()

	signals := make(chan *dbus.Signal, signalBuffer)
	m.conn.Signal(signals)
	defer m.conn.RemoveSignal(signals)

	m.log.Infow("upower_subscribed", "on_battery", onBattery)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return errSignalsClosed
			}
			if onBattery, ok := parseOnBattery(sig); ok {
				m.log.Debugw("upower_on_battery_changed", "on_battery", onBattery)
				m.sink.ReportPowerSource(models.PowerSourceFromBool(onBattery))
			}
		}
	}
}

func (m *PowerSourceMonitor) queryOnBattery(ctx context.Context) (bool, error) {
	var v dbus.Variant
	err := m.conn.Object(upowerService, upowerPath).
		CallWithContext(ctx, propertiesInterface+".Get", 0, upowerInterface, upowerOnBattery).
		Store(&v)
	if err != nil {
		return false, err
	}
	onBattery, ok := v.Value().(bool)
	if !ok {
		return false, errors.New("OnBattery is not a boolean: " + v.Signature().String())
	}
	return onBattery, nil
}

// parseOnBattery extracts OnBattery from a UPower PropertiesChanged signal.
func parseOnBattery(sig *dbus.Signal) (bool, bool) {
	if sig == nil || sig.Path != upowerPath || sig.Name != propertiesChanged || len(sig.Body) < 2 {
		return false, false
	}
	if iface, ok := sig.Body[0].(string); !ok || iface != upowerInterface {
		return false, false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false, false
	}
	v, ok := changed[upowerOnBattery]
	if !ok {
		return false, false
	}
	onBattery, ok := v.Value().(bool)
	return onBattery, ok
}

func (m *PowerSourceMonitor) pollSupply(ctx context.Context) {
	if m.probe == nil {
		m.log.Warnw("power_source_unknown", "reason", "no UPower and no sysfs probe")
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var failing bool
	for {
		src, err := m.probe.PowerSource()
		switch {
		case err != nil && !failing:
			failing = true
			m.log.Warnw("power_supply_read_failed", "err", err)
		case err == nil:
			failing = false
			m.sink.ReportPowerSource(src)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
