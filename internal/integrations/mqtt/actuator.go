package mqtt

import (
	"context"
	"fmt"

	"face-door-lock/internal/door"
)

// Actuator sends lock commands to a network attached lock controller
type Actuator struct {
	client *Client
	topic  string
}

// NewActuator publishes commands on topic, or on <prefix>/lock/set when topic is empty
func NewActuator(client *Client, topic string) *Actuator {
	if topic == "" {
		topic = client.Topic("lock", "set")
	}
	return &Actuator{client: client, topic: topic}
}

// Send publishes the command. A disconnected client reports door.ErrUnavailable.
func (a *Actuator) Send(ctx context.Context, cmd door.Command) error {
	if !a.client.IsConnected() {
		return door.ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.client.Publish(a.topic, string(cmd)); err != nil {
		return fmt.Errorf("%w: %v", door.ErrUnavailable, err)
	}
	return nil
}
