package access

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies audit events
type EventType string

const (
	EventUnlock        EventType = "unlock"
	EventDoorClosed    EventType = "door_closed"
	EventSpoofRejected EventType = "spoof_rejected"
	EventUnknownAlert  EventType = "unknown_alert"
	EventAlertFailed   EventType = "alert_failed"
)

// Event is emitted by the controller for every decision worth auditing
type Event struct {
	ID        string             `json:"id"`
	Type      EventType          `json:"type"`
	Time      time.Time          `json:"time"`
	Identity  string             `json:"identity,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	DoorState string             `json:"door_state"`
	ImagePath string             `json:"image_path,omitempty"`
	Signals   map[string]float64 `json:"signals,omitempty"`
}

// NewEvent creates an event with a fresh id
func NewEvent(typ EventType, at time.Time) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: typ,
		Time: at,
	}
}

// Observer receives events. OnEvent is called from the control loop and
// from alert workers, so implementations must be safe for concurrent use
// and must not block.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(ev Event) { f(ev) }
