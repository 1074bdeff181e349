package alert

import (
	"context"

	"face-door-lock/internal/core/workerpool"

	log "github.com/sirupsen/logrus"
)

// FailureFunc is told about notifications that could not be delivered
type FailureFunc func(n Notification, err error)

// Queue delivers notifications on a worker pool so the control loop never
// waits for a mail server.
type Queue struct {
	pool       *workerpool.WorkerPool
	dispatcher Dispatcher
	onFailure  FailureFunc
}

// NewQueue creates a queue delivering through d
func NewQueue(pool *workerpool.WorkerPool, d Dispatcher) *Queue {
	return &Queue{pool: pool, dispatcher: d}
}

// OnFailure sets the failure callback. Call it before the first Notify.
func (q *Queue) OnFailure(fn FailureFunc) {
	q.onFailure = fn
}

// Notify queues n for delivery. A full queue counts as a delivery failure.
func (q *Queue) Notify(n Notification) {
	err := q.pool.TrySubmit(workerpool.Job{
		Name: "send_alert",
		Run: func(ctx context.Context) error {
			err := Deliver(ctx, q.dispatcher, n)
			if err != nil {
				q.fail(n, err)
			}
			return err
		},
	})
	if err != nil {
		log.WithError(err).WithField("alert_id", n.ID).Error("Could not queue unknown person alert")
		q.fail(n, err)
	}
}

func (q *Queue) fail(n Notification, err error) {
	if q.onFailure != nil {
		q.onFailure(n, err)
	}
}
