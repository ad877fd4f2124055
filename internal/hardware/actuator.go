package hardware

import (
	"errors"
	"fmt"
	"strings"

	"dynamic_power/internal/logger"
	"dynamic_power/internal/models"
)

var (
	ErrUnknownProfile    = errors.New("unknown profile")
	ErrKnobNotConfigured = errors.New("no control file configured")
	ErrIllegalValue      = errors.New("value not among configured modes")
)

// KnobError is a failed write of one knob. Err may join several per-CPU failures.
type KnobError struct {
	Knob  models.KnobKind
	Value string
	Err   error
}

func (e *KnobError) Error() string {
	return fmt.Sprintf("%s=%q: %v", e.Knob, e.Value, e.Err)
}

func (e *KnobError) Unwrap() error { return e.Err }

// ApplyError reports a partial apply: the remaining knobs were still written.
type ApplyError struct {
	Profile string
	Knobs   []*KnobError
}

func (e *ApplyError) Error() string {
	parts := make([]string, len(e.Knobs))
	for i, k := range e.Knobs {
		parts[i] = k.Error()
	}
	return fmt.Sprintf("apply profile %q: %d knob(s) failed: %s", e.Profile, len(e.Knobs), strings.Join(parts, "; "))
}

// Actuator pushes named profiles to hardware. It is not safe for concurrent
// use; the control loop is its only caller.
type Actuator struct {
	writer  Writer
	log     *logger.Logger
	current string
	stale   bool
}

func NewActuator(w Writer, log *logger.Logger) *Actuator {
	return &Actuator{writer: w, log: log}
}

// Current is the last profile a write was attempted for, or "" before the first.
func (a *Actuator) Current() string { return a.current }

// Invalidate forces the next Apply to write even if the name is unchanged.
// Used after a reload, since the profile's contents may differ.
func (a *Actuator) Invalidate() { a.stale = true }

// Apply converges hardware on the named profile from cat.
//
// attempted is true when knob writes were tried. In that case Current is
// updated to name even if err is an *ApplyError. An unknown profile returns
// ErrUnknownProfile and leaves Current alone. Re-applying the current
// profile is a no-op.
func (a *Actuator) Apply(name string, cat *models.Catalog) (attempted bool, err error) {
	if name == a.current && !a.stale {
		return false, nil
	}
	setting, ok := cat.Profiles[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}

	var failed []*KnobError
	for _, kind := range models.KnobOrder {
		value := setting.Value(kind)
		if value == "" || models.IsDisabled(value) {
			continue
		}
		if err := a.writeKnob(kind, value, cat.Hardware); err != nil {
			ke := &KnobError{Knob: kind, Value: value, Err: err}
			a.log.Warnw("knob_write_failed", "profile", name, "knob", kind, "value", value, "err", err)
			failed = append(failed, ke)
			continue
		}
		a.log.Debugw("knob_written", "profile", name, "knob", kind, "value", value)
	}

	a.current = name
	a.stale = false
	if len(failed) > 0 {
		return true, &ApplyError{Profile: name, Knobs: failed}
	}
	return true, nil
}

func (a *Actuator) writeKnob(kind models.KnobKind, value string, hw map[models.KnobKind]models.HardwareKnob) error {
	knob, ok := hw[kind]
	if !ok || knob.Path == "" {
		return ErrKnobNotConfigured
	}
	if !knob.Allows(value) {
		return fmt.Errorf("%w %v", ErrIllegalValue, knob.Modes)
	}

	paths := []string{knob.Path}
	if kind.PerCPU() {
		paths = ExpandPerCPU(knob.Path)
	}

	var errs []error
	for _, p := range paths {
		if err := a.writer.WriteFile(p, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
