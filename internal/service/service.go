package service

import (
	"context"

	"dynamic_power/internal/logger"
	"dynamic_power/internal/models"
	"dynamic_power/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Control feeds external requests into the control loop.
type Control interface {
	SetProfile(ctx context.Context, name string, privileged bool) error
	SetThresholds(ctx context.Context, t models.Thresholds) error
	SetPollInterval(ctx context.Context, seconds uint32) error
}

// Monitoring exposes read-only state and change notifications.
type Monitoring interface {
	GetState(ctx context.Context) (models.PowerState, error)
	Subscribe() (<-chan struct{}, func())
}

// EventLog exposes the append-only power event log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.PowerEvent, error)
}

// Service aggregates all sub-services handed to the D-Bus and HTTP surfaces.
type Service struct {
	Control
	Monitoring
	EventLog
	Authorization
}

func NewService(repos *repository.Repository, engine *Engine, jwtSecret string, log *logger.Logger) *Service {
	return &Service{
		Control:       NewControlService(engine, log),
		Monitoring:    NewMonitoringService(engine),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, jwtSecret),
	}
}
