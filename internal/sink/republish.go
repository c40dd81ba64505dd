package sink

import (
	"context"
	"fmt"
)

// Publisher is the local broker connection. mqtt.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
}

// Republish forwards device state to the local broker with a fixed QoS
// and retain flag.
type Republish struct {
	publisher Publisher
	qos       byte
	retained  bool
}

// NewRepublish creates a republish sink over publisher.
func NewRepublish(publisher Publisher, qos byte, retained bool) *Republish {
	return &Republish{
		publisher: publisher,
		qos:       qos,
		retained:  retained,
	}
}

// Publish sends payload to topic. Failures are returned wrapped in
// ErrPublishFailed.
func (r *Republish) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := r.publisher.Publish(ctx, topic, payload, r.qos, r.retained); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}
