package mqtt

import (
	"context"
	"errors"
	"testing"

	"face-door-lock/config"
	"face-door-lock/internal/door"
)

func TestTopic(t *testing.T) {
	c := NewClient(config.MQTTConfig{TopicPrefix: "doorlock/"})
	if got := c.Topic("door", "state"); got != "doorlock/door/state" {
		t.Fatalf("Topic = %q", got)
	}
	if got := c.AvailabilityTopic(); got != "doorlock/availability" {
		t.Fatalf("AvailabilityTopic = %q", got)
	}
}

func TestEncodePayload(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{"OPEN", "OPEN"},
		{[]byte("raw"), "raw"},
		{42, "42"},
		{true, "true"},
		{map[string]int{"faces": 2}, `{"faces":2}`},
	}
	for _, tt := range tests {
		got, err := encodePayload(tt.in)
		if err != nil || string(got) != tt.want {
			t.Fatalf("encodePayload(%v) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestDisconnectedActuatorIsUnavailable(t *testing.T) {
	c := NewClient(config.MQTTConfig{TopicPrefix: "doorlock"})
	a := NewActuator(c, "")
	if a.topic != "doorlock/lock/set" {
		t.Fatalf("default command topic %q", a.topic)
	}
	if err := a.Send(context.Background(), door.CommandOpen); !errors.Is(err, door.ErrUnavailable) {
		t.Fatalf("Send = %v, want ErrUnavailable", err)
	}
	if err := c.Publish("x", "y"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Publish = %v, want ErrNotConnected", err)
	}
}
