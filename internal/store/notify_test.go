package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xfive/internal/store/memory"
	"xfive/internal/tournament"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changes []tournament.Change
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, c tournament.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic != string(c.Topic) {
		panic("topic mismatch")
	}
	p.changes = append(p.changes, c)
	return p.err
}

func (p *recordingPublisher) got() []tournament.Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tournament.Change(nil), p.changes...)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestWithNotifications_PublishesAfterWrites(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := WithNotifications(memory.New(), pub, discard())

	require.NoError(t, s.CreatePlayer(ctx, tournament.Player{ID: "p", Name: "P", Room: tournament.Room1}))
	stage := tournament.StageFinals
	require.NoError(t, s.UpdateAppState(ctx, tournament.AppStateUpdate{Stage: &stage}))
	require.NoError(t, s.SaveWheelMode(ctx, tournament.WheelMode{ID: "m", Name: "M"}))

	// Failed writes publish nothing.
	assert.ErrorIs(t, s.DeletePlayer(ctx, "missing"), tournament.ErrNotFound)

	assert.Equal(t, []tournament.Change{
		{Topic: tournament.TopicPlayers, ID: "p"},
		{Topic: tournament.TopicState},
		{Topic: tournament.TopicModes, ID: "m"},
	}, pub.got())
}

func TestWithNotifications_TransactionPublishesOnCommitOnly(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := WithNotifications(memory.New(), pub, discard())
	require.NoError(t, s.CreatePlayer(ctx, tournament.Player{ID: "p", Name: "P", Room: tournament.Room1}))

	tx, ok := s.(tournament.Transactor)
	require.True(t, ok, "memory store is transactional so the decorator must be too")

	total := 5
	err := tx.InTx(ctx, func(ctx context.Context, st tournament.Store) error {
		require.NoError(t, st.UpdatePlayer(ctx, "p", tournament.PlayerUpdate{TotalScore: &total}))
		assert.Len(t, pub.got(), 1, "nothing is published before commit")
		return errors.New("rollback")
	})
	require.Error(t, err)
	assert.Len(t, pub.got(), 1)

	err = tx.InTx(ctx, func(ctx context.Context, st tournament.Store) error {
		if err := st.UpdatePlayer(ctx, "p", tournament.PlayerUpdate{TotalScore: &total}); err != nil {
			return err
		}
		return st.UpdatePlayer(ctx, "p", tournament.PlayerUpdate{TotalScore: &total})
	})
	require.NoError(t, err)
	assert.Equal(t, []tournament.Change{
		{Topic: tournament.TopicPlayers, ID: "p"},
		{Topic: tournament.TopicPlayers, ID: "p"},
	}, pub.got(), "duplicate changes inside one transaction collapse")
}

type plainStore struct{ tournament.Store }

func TestWithNotifications_NonTransactionalInner(t *testing.T) {
	s := WithNotifications(plainStore{memory.New()}, &recordingPublisher{}, discard())
	_, ok := s.(tournament.Transactor)
	assert.False(t, ok)
}

func TestWithNotifications_PublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bus closed")}
	s := WithNotifications(memory.New(), pub, discard())
	assert.NoError(t, s.CreatePlayer(context.Background(), tournament.Player{ID: "p", Room: tournament.Room2}))
}
