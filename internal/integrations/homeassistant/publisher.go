package homeassistant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"face-door-lock/internal/access"
	"face-door-lock/internal/core/workerpool"

	log "github.com/sirupsen/logrus"
)

// Publisher mirrors access events and the controller status to MQTT. It is
// registered as an access.Observer; publishing runs on the worker pool.
type Publisher struct {
	broker Broker
	pool   *workerpool.WorkerPool

	mu            sync.Mutex
	lastDoor      string
	lastPresence  string
	publishedOnce bool
}

// NewPublisher creates a publisher
func NewPublisher(broker Broker, pool *workerpool.WorkerPool) *Publisher {
	return &Publisher{broker: broker, pool: pool}
}

// OnEvent queues the event for publishing
func (p *Publisher) OnEvent(ev access.Event) {
	err := p.pool.TrySubmit(workerpool.Job{
		Name: "mqtt_event",
		Run: func(context.Context) error {
			return p.PublishEvent(ev)
		},
	})
	if err != nil {
		log.WithError(err).Warnf("Dropping MQTT publish of %s event", ev.Type)
	}
}

// PublishEvent publishes the event JSON and the derived entity states
func (p *Publisher) PublishEvent(ev access.Event) error {
	if err := p.broker.Publish(p.broker.Topic("events", string(ev.Type)), ev); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	switch ev.Type {
	case access.EventUnlock:
		if err := p.broker.PublishRetain(p.broker.Topic("last_access"), ev); err != nil {
			return fmt.Errorf("failed to publish last access: %w", err)
		}
	case access.EventUnknownAlert:
		if err := p.broker.PublishRetain(p.broker.Topic("events", string(ev.Type)), ev); err != nil {
			return fmt.Errorf("failed to publish unknown alert: %w", err)
		}
	}
	return nil
}

// PublishStatus publishes the full status and, when they changed, the door
// and unknown presence states.
func (p *Publisher) PublishStatus(st access.Status) error {
	door := st.Door.StateName
	presence := "OFF"
	if st.Unknown.Active {
		presence = "ON"
	}

	p.mu.Lock()
	doorChanged := !p.publishedOnce || door != p.lastDoor
	presenceChanged := !p.publishedOnce || presence != p.lastPresence
	p.lastDoor, p.lastPresence, p.publishedOnce = door, presence, true
	p.mu.Unlock()

	if doorChanged {
		if err := p.broker.PublishRetain(p.broker.Topic("door", "state"), door); err != nil {
			return err
		}
	}
	if presenceChanged {
		if err := p.broker.PublishRetain(p.broker.Topic("unknown", "present"), presence); err != nil {
			return err
		}
	}
	return p.broker.Publish(p.broker.Topic("status"), st)
}

// Run publishes the status returned by status every interval until ctx ends
func (p *Publisher) Run(ctx context.Context, interval time.Duration, status func() access.Status) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PublishStatus(status()); err != nil {
				log.Debugf("Failed to publish status: %v", err)
			}
		}
	}
}
