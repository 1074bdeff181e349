package repository

import (
	"context"
	"encoding/json"

	"face-door-lock/internal/access"
	"face-door-lock/internal/core/models"
	"face-door-lock/internal/core/workerpool"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Recorder persists access events off the control loop
type Recorder struct {
	repo Repository
	pool *workerpool.WorkerPool
}

// NewRecorder creates an observer writing events through repo
func NewRecorder(repo Repository, pool *workerpool.WorkerPool) *Recorder {
	return &Recorder{repo: repo, pool: pool}
}

// OnEvent queues the event for storage
func (r *Recorder) OnEvent(ev access.Event) {
	err := r.pool.TrySubmit(workerpool.Job{
		Name: "record_event",
		Run: func(context.Context) error {
			return r.repo.SaveEvent(ToModel(ev))
		},
	})
	if err != nil {
		log.WithError(err).Warnf("Dropping %s event %s", ev.Type, ev.ID)
	}
}

// ToModel converts an access event into its database row
func ToModel(ev access.Event) *models.AccessEvent {
	row := &models.AccessEvent{
		EventID:   ev.ID,
		Type:      string(ev.Type),
		Timestamp: ev.Time.UTC(),
		Identity:  ev.Identity,
		Reason:    ev.Reason,
		DoorState: ev.DoorState,
		ImagePath: ev.ImagePath,
	}
	if len(ev.Signals) > 0 {
		if b, err := json.Marshal(ev.Signals); err == nil {
			row.Signals = datatypes.JSON(b)
		}
	}
	return row
}

// FromModel converts a stored row back into an access event
func FromModel(row models.AccessEvent) access.Event {
	ev := access.Event{
		ID:        row.EventID,
		Type:      access.EventType(row.Type),
		Time:      row.Timestamp,
		Identity:  row.Identity,
		Reason:    row.Reason,
		DoorState: row.DoorState,
		ImagePath: row.ImagePath,
	}
	if len(row.Signals) > 0 {
		var signals map[string]float64
		if err := json.Unmarshal(row.Signals, &signals); err == nil {
			ev.Signals = signals
		}
	}
	return ev
}
