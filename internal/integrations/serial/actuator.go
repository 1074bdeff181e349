// Package serial drives a microcontroller lock over a serial line. Commands
// are newline terminated ("open\n", "close\n").
package serial

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"face-door-lock/config"
	"face-door-lock/internal/door"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// settleDelay gives boards that reset on connect time to boot
const settleDelay = 2 * time.Second

type port interface {
	io.Writer
	Close() error
}

type opener func(name string, baud int) (port, error)

func openPort(name string, baud int) (port, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baud})
}

// Actuator writes lock commands to the serial port. A port that cannot be
// opened leaves the actuator unavailable; every command retries the open.
type Actuator struct {
	name   string
	baud   int
	open   opener
	settle time.Duration

	mu   sync.Mutex
	port port
}

// NewActuator creates an actuator for cfg.SerialPort
func NewActuator(cfg config.ActuatorConfig) *Actuator {
	return &Actuator{
		name:   cfg.SerialPort,
		baud:   cfg.BaudRate,
		open:   openPort,
		settle: settleDelay,
	}
}

// Connect opens the port. Failure is logged and tolerated.
func (a *Actuator) Connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectLocked()
}

func (a *Actuator) connectLocked() error {
	if a.port != nil {
		return nil
	}
	p, err := a.open(a.name, a.baud)
	if err != nil {
		log.WithError(err).Warnf("Could not connect to lock controller on %s", a.name)
		return fmt.Errorf("%w: %v", door.ErrUnavailable, err)
	}
	time.Sleep(a.settle)
	a.port = p
	log.Infof("Connected to lock controller on %s", a.name)
	return nil
}

// Send implements door.Actuator
func (a *Actuator) Send(ctx context.Context, cmd door.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.connectLocked(); err != nil {
		return err
	}
	if _, err := a.port.Write([]byte(string(cmd) + "\n")); err != nil {
		a.port.Close()
		a.port = nil
		return fmt.Errorf("%w: write %q: %v", door.ErrUnavailable, cmd, err)
	}
	log.Debugf("Sent %q to lock controller", cmd)
	return nil
}

// Close releases the port
func (a *Actuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port == nil {
		return nil
	}
	err := a.port.Close()
	a.port = nil
	return err
}
