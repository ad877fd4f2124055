package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dynamic_power/internal/logger"
	"dynamic_power/internal/models"
	"dynamic_power/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memEventRepo struct {
	mu     sync.Mutex
	events []models.PowerEvent
	err    error
}

func (r *memEventRepo) Append(_ context.Context, e models.PowerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *memEventRepo) List(context.Context, repository.EventQuery) ([]models.PowerEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.PowerEvent(nil), r.events...), nil
}

type memStateRepo struct {
	mu    sync.Mutex
	saved []models.PowerState
}

func (r *memStateRepo) Save(_ context.Context, s models.PowerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, s)
	return nil
}

func (r *memStateRepo) Load(context.Context) (models.PowerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return models.PowerState{}, nil
	}
	return r.saved[len(r.saved)-1], nil
}

func TestRecorder_WritesEventsAndState(t *testing.T) {
	events := &memEventRepo{}
	states := &memStateRepo{}
	rec := NewRecorder(events, states, logger.Nop())
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))
	rec.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	rec.Event(models.EventOverride, "Override requested: performance", map[string]any{"profile": "performance"})
	rec.Event(models.EventGraceEnded, "Start-up grace period ended", nil)
	rec.State(models.PowerState{ActiveProfile: "performance"})

	require.Eventually(t, func() bool {
		got, _ := events.List(context.Background(), repository.EventQuery{})
		last, _ := states.Load(context.Background())
		return len(got) == 2 && last.ActiveProfile == "performance"
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	got, _ := events.List(context.Background(), repository.EventQuery{})
	assert.NotEmpty(t, got[0].EventID)
	assert.Equal(t, time.UTC, got[0].OccurredAt.Location())
	assert.True(t, got[0].OccurredAt.Equal(fixed))
	assert.Equal(t, map[string]any{"profile": "performance"}, got[0].Metadata)
	assert.Nil(t, got[1].Metadata, "nil meta stays an untyped nil")
}

func TestRecorder_DrainsQueueOnShutdown(t *testing.T) {
	events := &memEventRepo{}
	rec := NewRecorder(events, &memStateRepo{}, logger.Nop())

	for i := 0; i < 5; i++ {
		rec.Event(models.EventProfileApplied, "Applied profile balanced", nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	got, _ := events.List(context.Background(), repository.EventQuery{})
	assert.Len(t, got, 5)
}

func TestRecorder_FullQueueDropsWithoutBlocking(t *testing.T) {
	rec := NewRecorder(&memEventRepo{}, &memStateRepo{}, logger.Nop())

	finished := make(chan struct{})
	go func() {
		for i := 0; i < recorderQueueSize+10; i++ {
			rec.State(models.PowerState{})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}
	assert.Len(t, rec.queue, recorderQueueSize)
}

func TestRecorder_WriteErrorsAreNotFatal(t *testing.T) {
	events := &memEventRepo{err: errors.New("disk full")}
	states := &memStateRepo{}
	rec := NewRecorder(events, states, logger.Nop())

	rec.Event(models.EventKnobError, "apply failed", nil)
	rec.State(models.PowerState{ActiveProfile: "balanced"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	last, _ := states.Load(context.Background())
	assert.Equal(t, "balanced", last.ActiveProfile)
}
