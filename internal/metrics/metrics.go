// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dynamic_power"

// Load1 is the last one-minute load average sample.
var Load1 = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "load1",
	Help:      "Last sampled one-minute load average.",
})

// Thresholds are the effective load thresholds, labelled low/high.
var Thresholds = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "effective_threshold",
	Help:      "Effective load-average threshold.",
}, []string{"bound"})

// OnBattery is 1 while the host runs on battery.
var OnBattery = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "on_battery",
	Help:      "1 when running on battery, 0 on AC.",
})

// GraceActive is 1 until the start-up grace period ends.
var GraceActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "grace_active",
	Help:      "1 while the start-up grace period is active.",
})

// ActiveProfile is 1 for the applied profile and 0 for the others.
var ActiveProfile = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "active_profile",
	Help:      "Currently applied profile (1) by name.",
}, []string{"profile"})

// ProfileApplies counts apply attempts by profile and result (ok, partial).
var ProfileApplies = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "profile_applies_total",
	Help:      "Profile apply attempts.",
}, []string{"profile", "result"})

// KnobWriteErrors counts failed knob writes.
var KnobWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "knob_write_errors_total",
	Help:      "Failed hardware knob writes.",
}, []string{"knob"})

// ConfigReloads counts reload attempts by result (ok, rejected).
var ConfigReloads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "config_reloads_total",
	Help:      "Configuration reload attempts.",
}, []string{"result"})

// SetActiveProfile marks name as the only active profile.
func SetActiveProfile(name string) {
	ActiveProfile.Reset()
	if name != "" {
		ActiveProfile.WithLabelValues(name).Set(1)
	}
}

// SetBool sets g to 1 or 0.
func SetBool(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
