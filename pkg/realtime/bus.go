package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// busTopic is the watermill topic every change travels on.
const busTopic = "xfive.changes"

// Envelope is the wire form of an event on the bus and on NATS.
type Envelope[E any] struct {
	Topic  string    `json:"topic"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
	Event  E         `json:"event"`
}

// Bus is an in-process change bus backed by a watermill go channel pub/sub.
// Events published here are stamped with the bus origin so relays can tell local from remote.
type Bus[E any] struct {
	pubsub *gochannel.GoChannel
	origin string
	logger *slog.Logger
}

// NewBus creates a bus. origin identifies this process among instances sharing a relay.
func NewBus[E any](origin string, logger *slog.Logger) *Bus[E] {
	return &Bus[E]{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			watermill.NewSlogLogger(logger),
		),
		origin: origin,
		logger: logger,
	}
}

// Origin returns the id stamped on locally published events.
func (b *Bus[E]) Origin() string {
	return b.origin
}

// Publish sends event under topic. Events published with no running subscriber are dropped.
func (b *Bus[E]) Publish(ctx context.Context, topic string, event E) error {
	return b.publishEnvelope(ctx, Envelope[E]{
		Topic:  topic,
		Origin: b.origin,
		At:     time.Now().UTC(),
		Event:  event,
	})
}

func (b *Bus[E]) publishEnvelope(ctx context.Context, env Envelope[E]) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("topic", env.Topic)
	msg.Metadata.Set("origin", env.Origin)
	msg.SetContext(ctx)
	if err := b.pubsub.Publish(busTopic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", env.Topic, err)
	}
	return nil
}

// Subscribe returns decoded envelopes until ctx ends or the bus closes.
func (b *Bus[E]) Subscribe(ctx context.Context) (<-chan Envelope[E], error) {
	messages, err := b.pubsub.Subscribe(ctx, busTopic)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	out := make(chan Envelope[E], 64)
	go func() {
		defer close(out)
		for msg := range messages {
			env, err := decodeEnvelope[E](msg.Payload)
			msg.Ack()
			if err != nil {
				b.logger.WarnContext(ctx, "Dropping malformed change",
					slog.String("message_uuid", msg.UUID),
					slog.Any("error", err),
				)
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Run pumps bus events into hub until ctx ends.
func (b *Bus[E]) Run(ctx context.Context, hub *Hub[E]) error {
	envs, err := b.Subscribe(ctx)
	if err != nil {
		return err
	}
	b.logger.InfoContext(ctx, "Change bus running", slog.String("origin", b.origin))
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-envs:
			if !ok {
				return nil
			}
			hub.Publish(env.Topic, env.Event)
		}
	}
}

// Close shuts the underlying pub/sub down; running subscriptions end.
func (b *Bus[E]) Close() error {
	return b.pubsub.Close()
}

func decodeEnvelope[E any](payload []byte) (Envelope[E], error) {
	var env Envelope[E]
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope[E]{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Topic == "" {
		return Envelope[E]{}, fmt.Errorf("envelope without topic")
	}
	return env, nil
}
