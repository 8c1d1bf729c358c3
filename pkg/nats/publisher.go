package nats

import (
	"context"
	"fmt"

	"github.com/abgdnv/verdant/pkg/messaging"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamPublisher publishes storefront events, such as completed checkouts,
// to a JetStream stream. Events that carry a message id are published with it,
// so a checkout event sent twice is stored once within the stream's duplicate window.
type JetStreamPublisher struct {
	js jetstream.JetStream
}

func NewJetStreamPublisher(js jetstream.JetStream) *JetStreamPublisher {
	return &JetStreamPublisher{js: js}
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Subject(), err)
	}
	var opts []jetstream.PublishOpt
	if id, ok := event.(messaging.Identified); ok && id.MessageID() != "" {
		opts = append(opts, jetstream.WithMsgID(id.MessageID()))
	}
	if _, err = p.js.Publish(ctx, event.Subject(), data, opts...); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", event.Subject(), err)
	}
	return nil
}
