package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// ConnectNATS dials url, retrying in the background when the server is not up yet.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSRelay bridges a local Bus with instances sharing a NATS subject: local events are
// forwarded out, remote events are replayed into the local bus.
type NATSRelay[E any] struct {
	conn    *nats.Conn
	subject string
	bus     *Bus[E]
	logger  *slog.Logger
}

// NewNATSRelay creates a relay on subject.
func NewNATSRelay[E any](conn *nats.Conn, subject string, bus *Bus[E], logger *slog.Logger) *NATSRelay[E] {
	return &NATSRelay[E]{conn: conn, subject: subject, bus: bus, logger: logger}
}

// Run relays until ctx ends.
func (r *NATSRelay[E]) Run(ctx context.Context) error {
	local, err := r.bus.pubsub.Subscribe(ctx, busTopic)
	if err != nil {
		return fmt.Errorf("subscribe local bus: %w", err)
	}

	sub, err := r.conn.Subscribe(r.subject, func(m *nats.Msg) {
		env, err := decodeEnvelope[E](m.Data)
		if err != nil {
			r.logger.Warn("Dropping malformed remote change", slog.Any("error", err))
			return
		}
		if !isRemote(env, r.bus.origin) {
			return
		}
		if err := r.bus.publishEnvelope(ctx, env); err != nil {
			r.logger.Error("Failed to replay remote change", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			r.logger.Warn("Failed to unsubscribe relay", slog.Any("error", err))
		}
	}()

	r.logger.InfoContext(ctx, "NATS relay running",
		slog.String("subject", r.subject),
		slog.String("origin", r.bus.origin),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-local:
			if !ok {
				return nil
			}
			msg.Ack()
			if msg.Metadata.Get("origin") != r.bus.origin {
				continue
			}
			if err := r.conn.Publish(r.subject, msg.Payload); err != nil {
				r.logger.ErrorContext(ctx, "Failed to forward change",
					slog.String("subject", r.subject),
					slog.Any("error", err),
				)
			}
		}
	}
}

// isRemote reports whether env came from another instance.
func isRemote[E any](env Envelope[E], origin string) bool {
	return env.Origin != "" && env.Origin != origin
}
