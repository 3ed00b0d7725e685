// Package store holds the tournament store implementations and decorators shared by them.
package store

import (
	"context"
	"log/slog"
	"sync"

	"xfive/internal/tournament"
)

// Publisher sends change notifications. *realtime.Bus[tournament.Change] satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, c tournament.Change) error
}

// WithNotifications decorates inner so every successful write publishes a change.
// Writes made inside InTx are published after the transaction commits. The result is a
// tournament.Transactor only when inner is one.
func WithNotifications(inner tournament.Store, pub Publisher, logger *slog.Logger) tournament.Store {
	n := &Notifying{Store: inner, pub: pub, logger: logger}
	if tx, ok := inner.(tournament.Transactor); ok {
		return &notifyingTx{Notifying: n, tx: tx}
	}
	return n
}

// Notifying publishes a change after each write to the embedded store.
type Notifying struct {
	tournament.Store
	pub    Publisher
	logger *slog.Logger

	// pending collects changes while inside a transaction.
	mu      sync.Mutex
	pending *[]tournament.Change
}

func (n *Notifying) notify(ctx context.Context, err error, c tournament.Change) error {
	if err != nil {
		return err
	}
	n.mu.Lock()
	if n.pending != nil {
		*n.pending = append(*n.pending, c)
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()
	n.publish(ctx, c)
	return nil
}

func (n *Notifying) publish(ctx context.Context, c tournament.Change) {
	if err := n.pub.Publish(ctx, string(c.Topic), c); err != nil {
		n.logger.WarnContext(ctx, "Failed to publish change",
			slog.String("topic", string(c.Topic)),
			slog.String("id", c.ID),
			slog.Any("error", err),
		)
	}
}

func (n *Notifying) CreatePlayer(ctx context.Context, p tournament.Player) error {
	return n.notify(ctx, n.Store.CreatePlayer(ctx, p), tournament.Change{Topic: tournament.TopicPlayers, ID: p.ID})
}

func (n *Notifying) UpdatePlayer(ctx context.Context, id string, u tournament.PlayerUpdate) error {
	return n.notify(ctx, n.Store.UpdatePlayer(ctx, id, u), tournament.Change{Topic: tournament.TopicPlayers, ID: id})
}

func (n *Notifying) DeletePlayer(ctx context.Context, id string) error {
	return n.notify(ctx, n.Store.DeletePlayer(ctx, id), tournament.Change{Topic: tournament.TopicPlayers, ID: id})
}

func (n *Notifying) UpdateAppState(ctx context.Context, u tournament.AppStateUpdate) error {
	return n.notify(ctx, n.Store.UpdateAppState(ctx, u), tournament.Change{Topic: tournament.TopicState})
}

func (n *Notifying) SaveWheelMode(ctx context.Context, m tournament.WheelMode) error {
	return n.notify(ctx, n.Store.SaveWheelMode(ctx, m), tournament.Change{Topic: tournament.TopicModes, ID: m.ID})
}

func (n *Notifying) DeleteWheelMode(ctx context.Context, id string) error {
	return n.notify(ctx, n.Store.DeleteWheelMode(ctx, id), tournament.Change{Topic: tournament.TopicModes, ID: id})
}

type notifyingTx struct {
	*Notifying
	tx tournament.Transactor
}

// InTx runs fn in the inner transaction and publishes the collected changes once it commits.
// Repeated changes to the same topic and id are published once.
func (n *notifyingTx) InTx(ctx context.Context, fn func(ctx context.Context, tx tournament.Store) error) error {
	var pending []tournament.Change
	err := n.tx.InTx(ctx, func(ctx context.Context, inner tournament.Store) error {
		scoped := &Notifying{Store: inner, pub: n.pub, logger: n.logger, pending: &pending}
		return fn(ctx, scoped)
	})
	if err != nil {
		return err
	}
	seen := make(map[tournament.Change]bool, len(pending))
	for _, c := range pending {
		if seen[c] {
			continue
		}
		seen[c] = true
		n.publish(ctx, c)
	}
	return nil
}
