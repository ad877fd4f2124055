package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"dynamic_power/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	powerStateRowID = 1

	upsertStateSQL = `
		INSERT INTO power_state (id, active_profile, power_source, override_profile, override_privileged,
			requested_low, requested_high, knob_errors, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			active_profile=excluded.active_profile,
			power_source=excluded.power_source,
			override_profile=excluded.override_profile,
			override_privileged=excluded.override_privileged,
			requested_low=excluded.requested_low,
			requested_high=excluded.requested_high,
			knob_errors=excluded.knob_errors,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT active_profile, power_source, override_profile, override_privileged,
			requested_low, requested_high, knob_errors, updated_at
		FROM power_state WHERE id=?
	`
)

func marshalKnobErrors(errs []string) (string, error) {
	if errs == nil {
		errs = []string{}
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalKnobErrors(s string) ([]string, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var errs []string
	if err := json.Unmarshal([]byte(s), &errs); err != nil {
		return nil, err
	}
	return errs, nil
}

// Save upserts the single power_state row.
func (r *StateSQLite) Save(ctx context.Context, s models.PowerState) error {
	knobErrs, err := marshalKnobErrors(s.KnobErrors)
	if err != nil {
		return err
	}

	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	_, err = r.db.ExecContext(ctx, upsertStateSQL,
		powerStateRowID,
		s.ActiveProfile,
		s.PowerSource,
		s.OverrideProfile,
		s.OverridePrivileged,
		s.RequestedThresholds.Low,
		s.RequestedThresholds.High,
		knobErrs,
		ts,
	)
	return err
}

// Load returns the persisted row, or a zero PowerState when none exists yet.
func (r *StateSQLite) Load(ctx context.Context) (models.PowerState, error) {
	var (
		s        models.PowerState
		knobErrs sql.NullString
	)
	err := r.db.QueryRowContext(ctx, selectStateSQL, powerStateRowID).Scan(
		&s.ActiveProfile,
		&s.PowerSource,
		&s.OverrideProfile,
		&s.OverridePrivileged,
		&s.RequestedThresholds.Low,
		&s.RequestedThresholds.High,
		&knobErrs,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PowerState{}, nil
		}
		return models.PowerState{}, err
	}

	errs, err := unmarshalKnobErrors(knobErrs.String)
	if err != nil {
		return models.PowerState{}, err
	}
	s.KnobErrors = errs
	s.OnBattery = s.PowerSource == models.PowerSourceBattery.String()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
