package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"dynamic_power/internal/logger"
	"dynamic_power/internal/models"
)

type submitRecorder struct {
	events []Event
	err    error
}

func (s *submitRecorder) Submit(_ context.Context, ev Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func TestControlService_SetProfile(t *testing.T) {
	rec := &submitRecorder{}
	svc := NewControlService(rec, logger.Nop())

	if err := svc.SetProfile(context.Background(), "performance", true); err != nil {
		t.Fatalf("SetProfile returned error: %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Type != EventSetProfile {
		t.Fatalf("expected EventSetProfile, got %v", ev.Type)
	}
	req, ok := ev.Data.(OverrideRequest)
	if !ok || req.Name != "performance" || !req.Privileged {
		t.Fatalf("unexpected payload: %#v", ev.Data)
	}
}

func TestControlService_SetProfile_LoopStopped(t *testing.T) {
	svc := NewControlService(&submitRecorder{err: ErrEngineStopped}, logger.Nop())
	if err := svc.SetProfile(context.Background(), "", false); !errors.Is(err, ErrEngineStopped) {
		t.Fatalf("expected ErrEngineStopped, got %v", err)
	}
}

func TestControlService_SetThresholds(t *testing.T) {
	cases := []struct {
		name    string
		in      models.Thresholds
		wantErr bool
	}{
		{"valid pair", models.Thresholds{Low: 0.5, High: 3}, false},
		{"zero pair clears", models.Thresholds{}, false},
		{"equal bounds", models.Thresholds{Low: 2, High: 2}, false},
		{"low above high", models.Thresholds{Low: 3, High: 1}, true},
		{"negative low", models.Thresholds{Low: -1, High: 1}, true},
		{"nan", models.Thresholds{Low: math.NaN(), High: 1}, true},
		{"inf", models.Thresholds{Low: 0, High: math.Inf(1)}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &submitRecorder{}
			svc := NewControlService(rec, logger.Nop())

			err := svc.SetThresholds(context.Background(), tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidThresholds) {
					t.Fatalf("expected ErrInvalidThresholds, got %v", err)
				}
				if len(rec.events) != 0 {
					t.Fatalf("invalid thresholds must not reach the loop")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(rec.events) != 1 || rec.events[0].Type != EventSetThresholds {
				t.Fatalf("unexpected events: %#v", rec.events)
			}
			if got := rec.events[0].Data.(models.Thresholds); got != tc.in {
				t.Fatalf("payload = %+v, want %+v", got, tc.in)
			}
		})
	}
}

func TestControlService_SetPollInterval_IsAcceptedWithoutEffect(t *testing.T) {
	rec := &submitRecorder{}
	svc := NewControlService(rec, logger.Nop())

	if err := svc.SetPollInterval(context.Background(), 10); err != nil {
		t.Fatalf("SetPollInterval returned error: %v", err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("poll interval must not reach the loop, got %d events", len(rec.events))
	}
}
