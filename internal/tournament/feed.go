package tournament

import (
	"context"
	"iter"
)

// Change announces that data under Topic was written.
type Change struct {
	Topic Topic  `json:"topic"`
	ID    string `json:"id,omitempty"`
}

// ChangeStream hands out change subscriptions. *realtime.Broadcaster[Change] satisfies it.
type ChangeStream interface {
	Subscribe() chan Change
	Unsubscribe(ch chan Change)
}

// Snapshotter reads a full tournament snapshot.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Feed turns change notifications into full snapshots.
type Feed struct {
	source  Snapshotter
	changes ChangeStream
}

// NewFeed creates a feed reading from source whenever changes signals a write.
func NewFeed(source Snapshotter, changes ChangeStream) *Feed {
	return &Feed{source: source, changes: changes}
}

// Snapshots yields the current snapshot, then a fresh one after every burst of changes, until
// ctx ends or the consumer stops. Each range over the result subscribes anew.
// Read errors are yielded and the sequence continues with the next change.
func (f *Feed) Snapshots(ctx context.Context) iter.Seq2[Snapshot, error] {
	return func(yield func(Snapshot, error) bool) {
		ch := f.changes.Subscribe()
		defer f.changes.Unsubscribe(ch)

		for {
			if ctx.Err() != nil {
				return
			}
			if !yield(f.source.Snapshot(ctx)) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
			}
			drain(ch)
		}
	}
}

// drain discards queued changes so a burst costs one snapshot.
func drain(ch chan Change) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
