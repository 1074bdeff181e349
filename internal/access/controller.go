// Package access runs the per-tick access decision: door auto-close,
// identity matching, liveness and behaviour evaluation, unlock and
// unknown-person alerting. It has no camera or model dependency; faces
// arrive with their signals already bound.
package access

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"face-door-lock/internal/alert"
	"face-door-lock/internal/door"
	"face-door-lock/internal/matcher"
	"face-door-lock/internal/session"

	log "github.com/sirupsen/logrus"
)

var errNoEvidence = errors.New("no evidence image available")

// Face is one detection of the current tick
type Face struct {
	// Box is the face region in full-resolution frame coordinates
	Box       image.Rectangle
	Encoding  matcher.Encoding
	Probe     session.Probe
	Landmarks session.LandmarkFunc
	// Evidence writes the face crop as an image file
	Evidence func(path string) error
}

// Notifier hands alerts to the delivery stage. It must not block.
type Notifier interface {
	Notify(n alert.Notification)
}

// Config wires the state machine settings
type Config struct {
	Session     session.Config
	Door        door.Config
	AlertGrace  time.Duration
	EvidenceDir string
}

// Outcome summarizes one tick
type Outcome struct {
	Faces      int
	Recognized int
	Spoofed    int
	DoorClosed bool
	Unlocked   bool
	Alerted    bool
	// Results holds one entry per face, in input order
	Results []FaceResult
}

// FaceResult is the decision taken for one face
type FaceResult struct {
	Box      image.Rectangle
	Identity string
	Spoof    bool
}

// Status is the snapshot served to the API and MQTT publishers
type Status struct {
	UpdatedAt  time.Time     `json:"updated_at"`
	Door       door.Snapshot `json:"door"`
	Session    session.State `json:"session"`
	Unknown    alert.Window  `json:"unknown"`
	Faces      int           `json:"faces"`
	Recognized []string      `json:"recognized"`
	LastEvent  *Event        `json:"last_event,omitempty"`
	Enrolled   int           `json:"enrolled"`
}

// Controller owns SessionState, DoorState and UnknownAlertState. Tick must
// only be called from one goroutine; Status and Emit are safe from any.
type Controller struct {
	cfg      Config
	matcher  *matcher.Matcher
	engine   *session.Engine
	door     *door.Controller
	alerter  *alert.Alerter
	notifier Notifier

	// begun is set by BeginTick until the matching Tick consumes it
	begun  bool
	closed bool

	mu        sync.RWMutex
	status    Status
	observers []Observer
	logger    *log.Entry
}

// NewController assembles the state machines
func NewController(cfg Config, m *matcher.Matcher, actuator door.Actuator, notifier Notifier) *Controller {
	c := &Controller{
		cfg:      cfg,
		matcher:  m,
		engine:   session.NewEngine(cfg.Session),
		door:     door.NewController(cfg.Door, actuator),
		alerter:  alert.NewAlerter(cfg.AlertGrace),
		notifier: notifier,
		logger:   log.WithField("component", "access"),
	}
	c.status = c.snapshot(time.Time{}, 0, nil)
	return c
}

// AddObserver registers an event observer
func (c *Controller) AddObserver(o Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, o)
	c.mu.Unlock()
}

// Emit fans an event out to all observers and records it as the last event
func (c *Controller) Emit(ev Event) {
	c.mu.Lock()
	last := ev
	c.status.LastEvent = &last
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	for _, o := range observers {
		o.OnEvent(ev)
	}
}

// BeginTick runs the auto-close check of the tick at now and reports whether
// it closed the door and reset the session. Callers that bind per-session
// state into their faces call it before Tick; otherwise Tick calls it.
func (c *Controller) BeginTick(ctx context.Context, now time.Time) bool {
	c.begun = true
	c.closed = false
	if _, closed := c.door.Tick(ctx, now); closed {
		c.engine.Reset()
		c.closed = true
		c.emitDoorClosed(now)
	}
	return c.closed
}

// Tick processes the faces detected at now. The auto-close check always
// runs first so a reset from closing is visible to this tick's decisions.
func (c *Controller) Tick(ctx context.Context, now time.Time, faces []Face) Outcome {
	var out Outcome

	if !c.begun {
		c.BeginTick(ctx, now)
	}
	c.begun = false
	out.DoorClosed = c.closed

	results := make([]matcher.Result, len(faces))
	out.Results = make([]FaceResult, len(faces))
	var names []string
	for i, f := range faces {
		results[i] = c.matcher.Match(f.Encoding)
		out.Results[i] = FaceResult{Box: f.Box, Identity: results[i].Name}
		if results[i].Recognized() {
			out.Recognized++
			names = append(names, results[i].Name)
		}
	}
	out.Faces = len(faces)

	c.engine.BeginTick(len(faces), out.Recognized)
	if len(faces) == 0 || out.Recognized > 0 {
		c.alerter.Cancel()
	}

	for i, f := range faces {
		if !results[i].Recognized() {
			if out.Recognized == 0 && c.alerter.ObserveUnknown(now) && c.raiseAlert(now, f) {
				out.Alerted = true
			}
			continue
		}

		v := c.engine.Evaluate(f.Probe, f.Landmarks)
		if v.Spoof {
			out.Spoofed++
			out.Results[i].Spoof = true
			if v.NewStreak {
				ev := NewEvent(EventSpoofRejected, now)
				ev.Identity = results[i].Name
				ev.Reason = v.Reason.String()
				ev.DoorState = c.door.State().String()
				ev.Signals = map[string]float64{"texture": v.Texture}
				c.Emit(ev)
			}
			c.logger.WithFields(log.Fields{
				"identity": results[i].Name,
				"reason":   v.Reason.String(),
				"texture":  v.Texture,
			}).Debug("Spoof check rejected face")
			continue
		}

		if !v.Grant {
			continue
		}
		if _, opened := c.door.RequestOpen(ctx, now); !opened {
			continue
		}
		c.logger.WithFields(log.Fields{
			"identity": results[i].Name,
			"texture":  v.Texture,
			"blinks":   v.Behavior.BlinkCount,
			"motion":   v.Behavior.NoseVariance,
			"distance": results[i].Distance,
		}).Info("Live face verified, door unlocked")

		ev := NewEvent(EventUnlock, now)
		ev.Identity = results[i].Name
		ev.DoorState = door.Open.String()
		ev.Signals = map[string]float64{
			"texture":       v.Texture,
			"blinks":        float64(v.Behavior.BlinkCount),
			"nose_variance": v.Behavior.NoseVariance,
			"distance":      results[i].Distance,
		}
		c.engine.Reset()
		out.Unlocked = true
		c.Emit(ev)
	}

	st := c.snapshot(now, len(faces), names)
	c.mu.Lock()
	st.LastEvent = c.status.LastEvent
	c.status = st
	c.mu.Unlock()
	return out
}

func (c *Controller) raiseAlert(now time.Time, f Face) bool {
	n := alert.NewNotification(c.cfg.EvidenceDir, now, c.alerter.Elapsed(now))
	logger := c.logger.WithField("alert_id", n.ID)

	err := errNoEvidence
	if f.Evidence != nil {
		err = f.Evidence(n.ImagePath)
	}
	if err != nil {
		// retried on the next tick; reported once per window
		if c.alerter.MarkFailed() {
			logger.WithError(err).Error("Failed to capture unknown person evidence")
			ev := NewEvent(EventAlertFailed, now)
			ev.Reason = err.Error()
			ev.DoorState = c.door.State().String()
			c.Emit(ev)
		}
		return false
	}

	logger.WithField("presence", n.Presence).Warn("Unknown person present, sending alert")
	ev := NewEvent(EventUnknownAlert, now)
	ev.ID = n.ID
	ev.ImagePath = n.ImagePath
	ev.DoorState = c.door.State().String()
	ev.Signals = map[string]float64{"presence_seconds": n.Presence.Seconds()}
	c.Emit(ev)

	if c.notifier != nil {
		c.notifier.Notify(n)
	}
	c.alerter.MarkAlerted()
	return true
}

func (c *Controller) emitDoorClosed(now time.Time) {
	ev := NewEvent(EventDoorClosed, now)
	ev.DoorState = c.door.State().String()
	c.Emit(ev)
}

func (c *Controller) snapshot(now time.Time, faces int, names []string) Status {
	return Status{
		UpdatedAt:  now,
		Door:       c.door.Snapshot(),
		Session:    c.engine.State(),
		Unknown:    c.alerter.Window(),
		Faces:      faces,
		Recognized: names,
		Enrolled:   c.matcher.Size(),
	}
}

// Status returns the snapshot taken at the end of the last tick
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// ReportAlertFailure records a notification that could not be delivered
func (c *Controller) ReportAlertFailure(n alert.Notification, err error) {
	ev := NewEvent(EventAlertFailed, n.DetectedAt)
	ev.ImagePath = n.ImagePath
	ev.Reason = err.Error()
	ev.DoorState = c.Status().Door.StateName
	c.Emit(ev)
}
