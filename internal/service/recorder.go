package service

import (
	"context"
	"time"

	"dynamic_power/internal/logger"
	"dynamic_power/internal/models"
	"dynamic_power/internal/repository"

	"github.com/google/uuid"
)

const (
	recorderQueueSize    = 256
	recorderDrainTimeout = 2 * time.Second
)

// Journal receives the loop's history. Implementations must not block.
type Journal interface {
	Event(typ, description string, meta map[string]any)
	State(s models.PowerState)
}

type nopJournal struct{}

func (nopJournal) Event(string, string, map[string]any) {}
func (nopJournal) State(models.PowerState)              {}

type journalItem struct {
	event *models.PowerEvent
	state *models.PowerState
}

// Recorder is a Journal that persists to the repositories from its own
// goroutine, so the control loop never waits on SQLite.
type Recorder struct {
	events repository.EventRepo
	state  repository.StateRepo
	log    *logger.Logger
	queue  chan journalItem
	now    func() time.Time
}

func NewRecorder(events repository.EventRepo, state repository.StateRepo, log *logger.Logger) *Recorder {
	return &Recorder{
		events: events,
		state:  state,
		log:    log,
		queue:  make(chan journalItem, recorderQueueSize),
		now:    time.Now,
	}
}

func (r *Recorder) Event(typ, description string, meta map[string]any) {
	ev := &models.PowerEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  r.now().UTC(),
		Type:        typ,
		Description: description,
	}
	if meta != nil {
		ev.Metadata = meta
	}
	r.enqueue(journalItem{event: ev})
}

func (r *Recorder) State(s models.PowerState) {
	r.enqueue(journalItem{state: &s})
}

func (r *Recorder) enqueue(it journalItem) {
	select {
	case r.queue <- it:
	default:
		r.log.Warnw("journal_queue_full", "dropped_event", it.event != nil)
	}
}

// Run writes queued items until ctx is canceled, then drains what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case it := <-r.queue:
			r.write(ctx, it)
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), recorderDrainTimeout)
	defer cancel()
	for {
		select {
		case it := <-r.queue:
			r.write(ctx, it)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, it journalItem) {
	if it.event != nil {
		if err := r.events.Append(ctx, *it.event); err != nil {
			r.log.Warnw("journal_event_write_failed", "type", it.event.Type, "err", err)
		}
	}
	if it.state != nil {
		if err := r.state.Save(ctx, *it.state); err != nil {
			r.log.Warnw("journal_state_write_failed", "err", err)
		}
	}
}
