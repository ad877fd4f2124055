package service

import (
	"context"
	"fmt"
	"math"

	"dynamic_power/internal/config"
	"dynamic_power/internal/logger"
	"dynamic_power/internal/models"
)

// ErrInvalidThresholds is returned for a requested pair that is negative,
// not a number, or has low above high.
var ErrInvalidThresholds = config.ErrInvalidThresholds

type submitter interface {
	Submit(ctx context.Context, ev Event) error
}

type ControlService struct {
	loop submitter
	log  *logger.Logger
}

func NewControlService(loop submitter, log *logger.Logger) *ControlService {
	return &ControlService{loop: loop, log: log}
}

// SetProfile requests an override. An empty name clears it. Names are not
// checked here; an unknown one is reported by the loop when it tries to apply it.
func (s *ControlService) SetProfile(ctx context.Context, name string, privileged bool) error {
	return s.loop.Submit(ctx, Event{
		Type: EventSetProfile,
		Data: OverrideRequest{Name: name, Privileged: privileged},
	})
}

// SetThresholds requests a threshold override. (0,0) clears it.
func (s *ControlService) SetThresholds(ctx context.Context, t models.Thresholds) error {
	if err := validateThresholds(t); err != nil {
		return err
	}
	return s.loop.Submit(ctx, Event{Type: EventSetThresholds, Data: t})
}

// SetPollInterval is accepted for compatibility. The tick period is fixed.
func (s *ControlService) SetPollInterval(_ context.Context, seconds uint32) error {
	s.log.Infow("poll_interval_ignored", "seconds", seconds, "tick", DefaultTick.String())
	return nil
}

func validateThresholds(t models.Thresholds) error {
	if math.IsNaN(t.Low) || math.IsNaN(t.High) || math.IsInf(t.Low, 0) || math.IsInf(t.High, 0) ||
		t.Low < 0 || t.High < 0 || t.Low > t.High {
		return fmt.Errorf("%w: low=%v high=%v", ErrInvalidThresholds, t.Low, t.High)
	}
	return nil
}
