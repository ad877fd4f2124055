package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"dynamic_power/internal/config"
	"dynamic_power/internal/hardware"
	"dynamic_power/internal/logger"
	"dynamic_power/internal/metrics"
	"dynamic_power/internal/models"
)

const (
	DefaultTick    = 5 * time.Second
	eventQueueSize = 100
)

var ErrEngineStopped = errors.New("control loop stopped")

type LoadSource interface {
	Load1() (float64, error)
}

type ProfileActuator interface {
	Apply(name string, cat *models.Catalog) (attempted bool, err error)
	Current() string
	Invalidate()
}

type FeatureWriter interface {
	Apply(features models.RootFeatures, src models.PowerSource) error
}

// EngineDeps are the collaborators of the control loop. Features and Journal may be nil.
type EngineDeps struct {
	Load     LoadSource
	Actuator ProfileActuator
	Features FeatureWriter
	Journal  Journal
	Log      *logger.Logger
}

// EngineConfig is the start-up configuration of the control loop.
type EngineConfig struct {
	Catalog     *models.Catalog
	GracePeriod time.Duration
	Tick        time.Duration
}

// daemonState is only ever touched from Run's goroutine.
type daemonState struct {
	source      models.PowerSource
	sourceKnown bool
	graceActive bool
	override    string
	privileged  bool
	requested   models.Thresholds
	effective   models.Thresholds
	load        float64
	target      string
	knobErrors  []string
	lastUnknown string
}

// Engine is the single control loop. Every input arrives as an Event and is
// handled on Run's goroutine, so state needs no locking. Each pass is
// Resolve, then Apply, then notify.
type Engine struct {
	log      *logger.Logger
	load     LoadSource
	actuator ProfileActuator
	features FeatureWriter
	journal  Journal

	tick  time.Duration
	grace time.Duration

	events chan Event
	done   chan struct{}

	subsMu  sync.Mutex
	subs    map[int]chan struct{}
	nextSub int

	catalog *models.Catalog
	st      daemonState
	now     func() time.Time
}

func NewEngine(cfg EngineConfig, deps EngineDeps) *Engine {
	tick := cfg.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = &models.Catalog{}
	}
	journal := deps.Journal
	if journal == nil {
		journal = nopJournal{}
	}
	return &Engine{
		log:      deps.Log,
		load:     deps.Load,
		actuator: deps.Actuator,
		features: deps.Features,
		journal:  journal,
		tick:     tick,
		grace:    cfg.GracePeriod,
		events:   make(chan Event, eventQueueSize),
		done:     make(chan struct{}),
		subs:     make(map[int]chan struct{}),
		catalog:  cat,
		st: daemonState{
			graceActive: cfg.GracePeriod > 0,
			effective:   cat.Thresholds,
		},
		now: time.Now,
	}
}

// Run drives the loop until ctx is canceled. It must be called once.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	var graceC <-chan time.Time
	if e.st.graceActive {
		grace := time.NewTimer(e.grace)
		defer grace.Stop()
		graceC = grace.C
		e.log.Infow("grace_period_started", "duration", e.grace.String())
	}
	metrics.SetBool(metrics.GraceActive, e.st.graceActive)

	e.log.Infow("control_loop_started", "tick", e.tick.String(), "profiles", e.catalog.Names())
	if e.pass() {
		e.persist()
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Infow("control_loop_stopped")
			return
		case <-ticker.C:
			if e.pass() {
				e.persist()
			}
		case <-graceC:
			graceC = nil
			e.endGrace()
			e.pass()
			e.persist()
		case ev := <-e.events:
			if e.handle(ev) {
				e.pass()
				e.persist()
			}
		}
	}
}

// Submit queues ev for the loop.
func (e *Engine) Submit(ctx context.Context, ev Event) error {
	select {
	case e.events <- ev:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot asks the loop for a copy of its state.
func (e *Engine) Snapshot(ctx context.Context) (models.PowerState, error) {
	reply := make(chan models.PowerState, 1)
	if err := e.Submit(ctx, Event{Type: EventSnapshot, Data: reply}); err != nil {
		return models.PowerState{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-e.done:
		return models.PowerState{}, ErrEngineStopped
	case <-ctx.Done():
		return models.PowerState{}, ctx.Err()
	}
}

// Subscribe returns a channel that receives a value whenever the applied
// profile or the power source changes. Bursts coalesce into one value.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	e.subsMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subsMu.Unlock()

	return ch, func() {
		e.subsMu.Lock()
		delete(e.subs, id)
		e.subsMu.Unlock()
	}
}

// ReportPowerSource feeds a power-source observation into the loop.
func (e *Engine) ReportPowerSource(src models.PowerSource) {
	if err := e.Submit(context.Background(), Event{Type: EventPowerSource, Data: src}); err != nil {
		e.log.Debugw("power_source_dropped", "source", src.String(), "err", err)
	}
}

// ConfigReloaded implements config.Sink.
func (e *Engine) ConfigReloaded(s *config.Settings) {
	if err := e.Submit(context.Background(), Event{Type: EventConfigReloaded, Data: s.Catalog}); err != nil {
		e.log.Debugw("config_reload_dropped", "err", err)
	}
}

// ConfigRejected implements config.Sink.
func (e *Engine) ConfigRejected(err error) {
	if serr := e.Submit(context.Background(), Event{Type: EventConfigRejected, Data: err}); serr != nil {
		e.log.Debugw("config_reject_dropped", "err", serr)
	}
}

// handle applies one event to the state. It reports whether a pass should follow.
func (e *Engine) handle(ev Event) bool {
	switch ev.Type {
	case EventPowerSource:
		src, ok := ev.Data.(models.PowerSource)
		if !ok {
			return false
		}
		return e.setPowerSource(src)

	case EventSetProfile:
		req, ok := ev.Data.(OverrideRequest)
		if !ok {
			return false
		}
		e.st.override = foldProfileName(req.Name)
		e.st.privileged = e.st.override != "" && req.Privileged
		e.log.Infow("override_profile_set", "profile", e.st.override, "privileged", e.st.privileged)
		e.journal.Event(models.EventOverride, overrideDescription(e.st.override), map[string]any{
			"profile":    e.st.override,
			"privileged": e.st.privileged,
		})
		return true

	case EventSetThresholds:
		t, ok := ev.Data.(models.Thresholds)
		if !ok {
			return false
		}
		e.st.requested = t
		e.log.Infow("override_thresholds_set", "low", t.Low, "high", t.High, "cleared", t.IsZero())
		e.journal.Event(models.EventThresholds, "Requested thresholds changed", map[string]any{
			"low":     t.Low,
			"high":    t.High,
			"cleared": t.IsZero(),
		})
		return true

	case EventConfigReloaded:
		cat, ok := ev.Data.(*models.Catalog)
		if !ok || cat == nil {
			return false
		}
		e.catalog = cat
		e.actuator.Invalidate()
		metrics.ConfigReloads.WithLabelValues("ok").Inc()
		e.journal.Event(models.EventConfigReloaded, "Configuration reloaded", map[string]any{
			"profiles": cat.Names(),
			"low":      cat.Thresholds.Low,
			"high":     cat.Thresholds.High,
		})
		if e.st.sourceKnown {
			e.applyFeatures()
		}
		return true

	case EventConfigRejected:
		err, _ := ev.Data.(error)
		metrics.ConfigReloads.WithLabelValues("rejected").Inc()
		e.journal.Event(models.EventConfigRejected, "Configuration rejected; previous tables kept", map[string]any{
			"err": errString(err),
		})
		return false

	case EventSnapshot:
		if reply, ok := ev.Data.(chan models.PowerState); ok {
			reply <- e.snapshot()
		}
		return false
	}
	return false
}

func (e *Engine) setPowerSource(src models.PowerSource) bool {
	first := !e.st.sourceKnown
	changed := src != e.st.source
	if !first && !changed {
		return false
	}
	e.st.source = src
	e.st.sourceKnown = true
	metrics.SetBool(metrics.OnBattery, src.OnBattery())
	e.log.Infow("power_source", "source", src.String(), "initial", first)

	e.applyFeatures()
	if changed {
		e.journal.Event(models.EventPowerSource, "Power source changed to "+src.String(), map[string]any{
			"source": src.String(),
		})
		e.notify()
	}
	return true
}

func (e *Engine) applyFeatures() {
	if e.features == nil {
		return
	}
	err := e.features.Apply(e.catalog.Features, e.st.source)
	if err == nil || errors.Is(err, hardware.ErrDisclaimerNotAccepted) {
		return
	}
	e.log.Warnw("root_features_failed", "source", e.st.source.String(), "err", err)
	e.journal.Event(models.EventRootFeatureFail, "Root feature write failed", map[string]any{
		"source": e.st.source.String(),
		"err":    err.Error(),
	})
}

func (e *Engine) endGrace() {
	e.st.graceActive = false
	metrics.SetBool(metrics.GraceActive, false)
	e.log.Infow("grace_period_ended")
	e.journal.Event(models.EventGraceEnded, "Start-up grace period ended", nil)
}

// pass runs one Resolve, Apply, notify sequence. It reports whether hardware
// writes were attempted.
func (e *Engine) pass() bool {
	if l, err := e.load.Load1(); err != nil {
		e.log.Warnw("load_sample_failed", "err", err)
	} else {
		e.st.load = l
	}
	metrics.Load1.Set(e.st.load)

	e.st.effective = EffectiveThresholds(e.catalog.Thresholds, e.st.requested)
	metrics.Thresholds.WithLabelValues("low").Set(e.st.effective.Low)
	metrics.Thresholds.WithLabelValues("high").Set(e.st.effective.High)

	target := Resolve(ResolveInput{
		Load:        e.st.load,
		Thresholds:  e.st.effective,
		Source:      e.st.source,
		GraceActive: e.st.graceActive,
		Override:    e.st.override,
		Privileged:  e.st.privileged,
	})
	e.st.target = target

	attempted, err := e.actuator.Apply(target, e.catalog)
	if errors.Is(err, hardware.ErrUnknownProfile) {
		if e.st.lastUnknown != target {
			e.st.lastUnknown = target
			e.log.Warnw("unknown_profile", "profile", target, "known", e.catalog.Names())
			e.journal.Event(models.EventUnknownProfile, "Profile "+target+" is not configured", map[string]any{
				"profile": target,
			})
		}
		return false
	}
	e.st.lastUnknown = ""
	if !attempted {
		return false
	}

	result := "ok"
	e.st.knobErrors = nil
	var ae *hardware.ApplyError
	if errors.As(err, &ae) {
		result = "partial"
		for _, ke := range ae.Knobs {
			e.st.knobErrors = append(e.st.knobErrors, ke.Error())
			metrics.KnobWriteErrors.WithLabelValues(string(ke.Knob)).Inc()
		}
		e.journal.Event(models.EventKnobError, ae.Error(), map[string]any{
			"profile": target,
			"errors":  e.st.knobErrors,
		})
	} else if err != nil {
		e.log.Errorw("profile_apply_failed", "profile", target, "err", err)
	}

	metrics.ProfileApplies.WithLabelValues(target, result).Inc()
	metrics.SetActiveProfile(target)
	e.log.Infow("profile_applied", "profile", target, "result", result, "load1", e.st.load,
		"source", e.st.source.String(), "grace", e.st.graceActive)
	e.journal.Event(models.EventProfileApplied, "Applied profile "+target, map[string]any{
		"profile": target,
		"result":  result,
		"load1":   e.st.load,
		"source":  e.st.source.String(),
	})
	e.notify()
	return true
}

func (e *Engine) persist() {
	e.journal.State(e.snapshot())
}

func (e *Engine) notify() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (e *Engine) snapshot() models.PowerState {
	return models.PowerState{
		ActiveProfile:        e.actuator.Current(),
		TargetProfile:        e.st.target,
		PowerSource:          e.st.source.String(),
		OnBattery:            e.st.source.OnBattery(),
		GraceActive:          e.st.graceActive,
		Load1:                e.st.load,
		OverrideProfile:      e.st.override,
		OverridePrivileged:   e.st.privileged,
		ConfiguredThresholds: e.catalog.Thresholds,
		RequestedThresholds:  e.st.requested,
		EffectiveThresholds:  e.st.effective,
		Profiles:             e.catalog.Names(),
		KnobErrors:           append([]string(nil), e.st.knobErrors...),
		UpdatedAt:            e.now().UTC(),
	}
}

func overrideDescription(name string) string {
	if name == "" {
		return "Override cleared"
	}
	return "Override requested: " + name
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// foldProfileName matches the catalog, whose names are lower case once loaded.
func foldProfileName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
