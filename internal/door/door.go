// Package door implements the lock state machine: unlock with command
// debounce and timed auto-close.
package door

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrUnavailable is returned by actuators that are disconnected or not configured
var ErrUnavailable = errors.New("actuator unavailable")

// State of the door
type State int

const (
	Locked State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "OPEN"
	}
	return "LOCKED"
}

// Command is the line sent to the lock actuator
type Command string

const (
	CommandOpen  Command = "open"
	CommandClose Command = "close"
)

// Actuator drives the physical lock
type Actuator interface {
	Send(ctx context.Context, cmd Command) error
}

// NopActuator is used when no lock hardware is configured
type NopActuator struct{}

// Send reports ErrUnavailable for every command
func (NopActuator) Send(context.Context, Command) error {
	return ErrUnavailable
}

// Config holds the door timings
type Config struct {
	AutoCloseDelay time.Duration
	SendDelay      time.Duration
}

// Snapshot is a copy of the DoorState
type Snapshot struct {
	State           State     `json:"-"`
	StateName       string    `json:"state"`
	UnlockTime      time.Time `json:"unlock_time,omitempty"`
	LastCommandTime time.Time `json:"last_command_time,omitempty"`
}

// Transition describes a state change performed by the controller
type Transition struct {
	From    State
	To      State
	At      time.Time
	Command Command
	// ActuatorErr is the non-fatal error returned by the actuator, if any
	ActuatorErr error
}

// Controller owns the DoorState. Only the control loop may call it.
type Controller struct {
	cfg         Config
	actuator    Actuator
	state       State
	unlockTime  time.Time
	lastCommand time.Time
	logger      *log.Entry
}

// NewController creates a locked door. The first open request is never debounced.
func NewController(cfg Config, actuator Actuator) *Controller {
	if actuator == nil {
		actuator = NopActuator{}
	}
	return &Controller{
		cfg:      cfg,
		actuator: actuator,
		state:    Locked,
		logger:   log.WithField("component", "door"),
	}
}

// RequestOpen handles an unlock grant. It reports false when the door is
// already open or the debounce window since the last command has not elapsed;
// the grant is dropped in both cases.
func (c *Controller) RequestOpen(ctx context.Context, now time.Time) (Transition, bool) {
	if c.state == Open {
		return Transition{}, false
	}
	if !c.lastCommand.IsZero() && now.Sub(c.lastCommand) < c.cfg.SendDelay {
		c.logger.WithField("since_last_command", now.Sub(c.lastCommand)).Debug("Unlock grant dropped by command debounce")
		return Transition{}, false
	}

	tr := c.transition(ctx, now, Open, CommandOpen)
	c.unlockTime = now
	return tr, true
}

// Tick performs the auto-close check. It must run once per tick before any
// face is processed.
func (c *Controller) Tick(ctx context.Context, now time.Time) (Transition, bool) {
	if c.state != Open || now.Sub(c.unlockTime) < c.cfg.AutoCloseDelay {
		return Transition{}, false
	}
	return c.transition(ctx, now, Locked, CommandClose), true
}

func (c *Controller) transition(ctx context.Context, now time.Time, to State, cmd Command) Transition {
	tr := Transition{From: c.state, To: to, At: now, Command: cmd}

	if err := c.actuator.Send(ctx, cmd); err != nil {
		tr.ActuatorErr = err
		if errors.Is(err, ErrUnavailable) {
			c.logger.Debugf("No actuator connected, door %s without hardware command", to)
		} else {
			c.logger.WithError(err).Warnf("Actuator command %q failed", cmd)
		}
	}

	c.state = to
	c.lastCommand = now
	c.logger.WithFields(log.Fields{
		"from": tr.From.String(),
		"to":   to.String(),
	}).Info("Door state changed")
	return tr
}

// State returns the current door state
func (c *Controller) State() State {
	return c.state
}

// Snapshot returns a copy of the DoorState
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		State:           c.state,
		StateName:       c.state.String(),
		UnlockTime:      c.unlockTime,
		LastCommandTime: c.lastCommand,
	}
}
