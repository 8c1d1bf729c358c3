// Package notification confirms completed checkouts by consuming
// CartCheckedOutEvent messages from a JetStream durable consumer.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/abgdnv/verdant/pkg/config"
	"github.com/abgdnv/verdant/pkg/messaging/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// maxDeliver bounds redelivery of messages that keep failing.
const maxDeliver = 5

// ackableMsg is the part of jetstream.Msg the handler needs.
type ackableMsg interface {
	Data() []byte
	Subject() string
	Ack() error
	Nak() error
}

// Notifier delivers the order confirmation of a checkout.
type Notifier func(ctx context.Context, event events.CartCheckedOutEvent) error

// LogNotifier writes the order confirmation to logger.
func LogNotifier(logger *slog.Logger) Notifier {
	return func(ctx context.Context, event events.CartCheckedOutEvent) error {
		logger.InfoContext(ctx, "Order Placed Successfully",
			slog.String("order_id", event.OrderID.String()),
			slog.String("session_id", event.SessionID),
			slog.Int("total_items", event.TotalItems),
			slog.Float64("total_price", event.TotalPrice),
			slog.String("placed_at", event.PlacedAt.Format(time.RFC3339)))
		return nil
	}
}

type Consumer struct {
	js     jetstream.JetStream
	cfg    config.SubscriberConfig
	notify Notifier
	logger *slog.Logger
	tracer trace.Tracer
}

func NewConsumer(js jetstream.JetStream, cfg config.SubscriberConfig, notify Notifier, logger *slog.Logger) *Consumer {
	logger = logger.With("component", "notification")
	if notify == nil {
		notify = LogNotifier(logger)
	}
	return &Consumer{
		js:     js,
		cfg:    cfg,
		notify: notify,
		logger: logger,
		tracer: otel.Tracer("storefront-notification"),
	}
}

// Run creates the durable consumer and runs the configured number of workers until ctx ends.
func (c *Consumer) Run(ctx context.Context) error {
	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		FilterSubject: c.cfg.Subject,
		Durable:       c.cfg.Consumer,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    maxDeliver,
	})
	if err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Notification consumer started",
		"stream", c.cfg.Stream, "consumer", c.cfg.Consumer, "workers", c.cfg.Workers)

	g, gCtx := errgroup.WithContext(ctx)
	for range c.cfg.Workers {
		g.Go(func() error {
			return c.runWorker(gCtx, consumer)
		})
	}
	return g.Wait()
}

// runWorker fetches messages one at a time and handles them.
func (c *Consumer) runWorker(ctx context.Context, consumer jetstream.Consumer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(c.cfg.Timeout))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) {
					continue
				}
				c.logger.ErrorContext(ctx, "failed to fetch messages", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.cfg.Interval):
				}
				continue
			}
			for msg := range batch.Messages() {
				c.handleMessage(ctx, msg)
			}
		}
	}
}

// handleMessage acks a confirmed checkout and naks anything it cannot decode or deliver.
func (c *Consumer) handleMessage(ctx context.Context, msg ackableMsg) {
	if msg == nil {
		c.logger.ErrorContext(ctx, "received nil message")
		return
	}
	var event events.CartCheckedOutEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		c.logger.ErrorContext(ctx, "failed to unmarshal message", "error", err, "subject", msg.Subject())
		c.nak(ctx, msg)
		return
	}

	// continue the trace of the checkout request
	ctx = otel.GetTextMapPropagator().Extract(ctx, event.Carrier)
	ctx, span := c.tracer.Start(ctx, "notification.order_confirmation",
		trace.WithAttributes(attribute.String("order_id", event.OrderID.String())))
	defer span.End()

	if err := c.notify(ctx, event); err != nil {
		span.RecordError(err)
		c.logger.ErrorContext(ctx, "failed to send order confirmation", "order_id", event.OrderID.String(), "error", err)
		c.nak(ctx, msg)
		return
	}
	if err := msg.Ack(); err != nil {
		c.logger.ErrorContext(ctx, "failed to ack message", "error", err)
	}
}

func (c *Consumer) nak(ctx context.Context, msg ackableMsg) {
	if err := msg.Nak(); err != nil {
		c.logger.ErrorContext(ctx, "failed to nack message", "error", err)
	}
}
