package service

import (
	"context"
	"time"

	"dynamic_power/internal/models"
)

type stateSource interface {
	Snapshot(ctx context.Context) (models.PowerState, error)
	Subscribe() (<-chan struct{}, func())
}

type MonitoringService struct {
	loop stateSource
}

func NewMonitoringService(loop stateSource) *MonitoringService {
	return &MonitoringService{loop: loop}
}

// GetState returns the loop's current snapshot.
func (s *MonitoringService) GetState(ctx context.Context) (models.PowerState, error) {
	state, err := s.loop.Snapshot(ctx)
	if err != nil {
		return models.PowerState{}, err
	}
	state.UpdatedAt = toUTC(state.UpdatedAt)
	return state, nil
}

// Subscribe returns a channel signalled on every profile or power-source change.
func (s *MonitoringService) Subscribe() (<-chan struct{}, func()) {
	return s.loop.Subscribe()
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
