package realtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type change struct {
	ID string `json:"id"`
}

func newTestBus(t *testing.T) *Bus[change] {
	t.Helper()
	b := NewBus[change]("node-a", slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b := newTestBus(t)

	envs, err := b.Subscribe(ctx)
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, "players", change{ID: "p1"}))

	select {
	case env := <-envs:
		assert.Equal(t, "players", env.Topic)
		assert.Equal(t, "node-a", env.Origin)
		assert.Equal(t, change{ID: "p1"}, env.Event)
		assert.False(t, env.At.IsZero())
	case <-ctx.Done():
		t.Fatal("no envelope received")
	}
}

func TestBus_RunFeedsHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := newTestBus(t)
	hub := NewHub[change]()
	state := hub.Topic("state").Subscribe()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, hub) }()

	// Run subscribes asynchronously; keep publishing until the hub sees one.
	require.Eventually(t, func() bool {
		_ = b.Publish(ctx, "state", change{ID: "s"})
		select {
		case got := <-state:
			return got.ID == "s"
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := decodeEnvelope[change]([]byte(`{"topic":"modes","origin":"node-b","event":{"id":"m"}}`))
	require.NoError(t, err)
	assert.Equal(t, "modes", env.Topic)
	assert.Equal(t, "m", env.Event.ID)

	_, err = decodeEnvelope[change]([]byte(`{"origin":"node-b"}`))
	assert.Error(t, err)
	_, err = decodeEnvelope[change]([]byte(`not json`))
	assert.Error(t, err)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, isRemote(Envelope[change]{Origin: "node-b"}, "node-a"))
	assert.False(t, isRemote(Envelope[change]{Origin: "node-a"}, "node-a"))
	assert.False(t, isRemote(Envelope[change]{}, "node-a"))
}
