package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dynamic_power/internal/models"
	"dynamic_power/internal/repository"
)

const (
	DefaultLogLimit = 200
	MaxLogLimit     = 5000
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range: from must be <= to")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrInvalidLimit     = errors.New("limit out of range")
)

// LogFilter selects history entries.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // one of models.EventTypes, any case; "" matches all
	Limit int       // newest N; 0 means DefaultLogLimit
}

// IsFilterError reports whether err came from validating a LogFilter.
func IsFilterError(err error) bool {
	return errors.Is(err, ErrInvalidTimeRange) ||
		errors.Is(err, ErrUnknownEventType) ||
		errors.Is(err, ErrInvalidLimit)
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

// query validates f and turns it into a repository query.
func (f LogFilter) query() (repository.EventQuery, error) {
	q := repository.EventQuery{
		From:  toUTC(f.From),
		To:    toUTC(f.To),
		Type:  strings.ToUpper(strings.TrimSpace(f.Type)),
		Limit: f.Limit,
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return repository.EventQuery{}, ErrInvalidTimeRange
	}
	if q.Type != "" && !models.IsEventType(q.Type) {
		return repository.EventQuery{}, fmt.Errorf("%w %q", ErrUnknownEventType, f.Type)
	}
	switch {
	case q.Limit == 0:
		q.Limit = DefaultLogLimit
	case q.Limit < 0 || q.Limit > MaxLogLimit:
		return repository.EventQuery{}, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidLimit, f.Limit, MaxLogLimit)
	}
	return q, nil
}

// List returns matching events, oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.PowerEvent, error) {
	q, err := f.query()
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, q)
}
