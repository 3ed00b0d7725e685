package realtime

import (
	"testing"
)

func TestNewBroadcaster(t *testing.T) {
	b := NewBroadcaster[string]()
	if b == nil {
		t.Fatal("NewBroadcaster returned nil")
	}
}

func TestBroadcaster_Subscribe(t *testing.T) {
	b := NewBroadcaster[string]()
	ch := b.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe returned nil channel")
	}
	if got := b.Len(); got != 1 {
		t.Errorf("got %d subscribers, want 1", got)
	}
	b.Unsubscribe(ch)
	if got := b.Len(); got != 0 {
		t.Errorf("got %d subscribers after Unsubscribe, want 0", got)
	}
}

func TestBroadcaster_PublishDeliversToMultipleSubscribers(t *testing.T) {
	b := NewBroadcaster[int]()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish(42)
	if got := <-ch1; got != 42 {
		t.Errorf("ch1 got %d, want 42", got)
	}
	if got := <-ch2; got != 42 {
		t.Errorf("ch2 got %d, want 42", got)
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster[string]()
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	_, open := <-ch
	if open {
		t.Error("channel should be closed after Unsubscribe")
	}
	// A second Unsubscribe must not panic on the closed channel.
	b.Unsubscribe(ch)
}

func TestBroadcaster_PublishDropsWhenLagging(t *testing.T) {
	b := NewBroadcaster[int]()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(i)
	}
	if got := len(ch); got != subscriberBuffer {
		t.Errorf("got %d buffered events, want %d", got, subscriberBuffer)
	}
	if got := <-ch; got != 0 {
		t.Errorf("first event %d, want 0", got)
	}
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster[string]()
	ch := b.Subscribe()
	b.Close()
	if _, open := <-ch; open {
		t.Error("subscriber channel should be closed after Close")
	}
	b.Publish("ignored")
	late := b.Subscribe()
	if _, open := <-late; open {
		t.Error("Subscribe after Close should return a closed channel")
	}
	b.Close()
}
