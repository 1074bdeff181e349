package serial

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"face-door-lock/config"
	"face-door-lock/internal/door"
)

type fakePort struct {
	bytes.Buffer
	failWrite bool
	closed    bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.failWrite {
		return 0, errors.New("device disconnected")
	}
	return p.Buffer.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func newTestActuator(open opener) *Actuator {
	a := NewActuator(config.ActuatorConfig{SerialPort: "/dev/ttyACM0", BaudRate: 9600})
	a.open = open
	a.settle = 0
	return a
}

func TestSendWritesNewlineTerminatedCommands(t *testing.T) {
	p := &fakePort{}
	a := newTestActuator(func(name string, baud int) (port, error) {
		if name != "/dev/ttyACM0" || baud != 9600 {
			t.Fatalf("opened %s at %d baud", name, baud)
		}
		return p, nil
	})

	ctx := context.Background()
	if err := a.Send(ctx, door.CommandOpen); err != nil {
		t.Fatal(err)
	}
	if err := a.Send(ctx, door.CommandClose); err != nil {
		t.Fatal(err)
	}
	if got := p.String(); got != "open\nclose\n" {
		t.Fatalf("wrote %q", got)
	}
}

func TestMissingPortIsUnavailable(t *testing.T) {
	opens := 0
	a := newTestActuator(func(string, int) (port, error) {
		opens++
		return nil, errors.New("no such file or directory")
	})

	if err := a.Connect(); !errors.Is(err, door.ErrUnavailable) {
		t.Fatalf("Connect = %v, want ErrUnavailable", err)
	}
	if err := a.Send(context.Background(), door.CommandOpen); !errors.Is(err, door.ErrUnavailable) {
		t.Fatalf("Send = %v, want ErrUnavailable", err)
	}
	if opens != 2 {
		t.Fatalf("opened %d times, want a retry per command", opens)
	}
}

func TestWriteFailureDropsPort(t *testing.T) {
	p := &fakePort{failWrite: true}
	a := newTestActuator(func(string, int) (port, error) { return p, nil })

	if err := a.Send(context.Background(), door.CommandOpen); !errors.Is(err, door.ErrUnavailable) {
		t.Fatalf("Send = %v, want ErrUnavailable", err)
	}
	if !p.closed || a.port != nil {
		t.Fatal("failed port must be closed and forgotten")
	}
}
