package realtime

import "testing"

func TestNewHub(t *testing.T) {
	h := NewHub[string]()
	if h == nil {
		t.Fatal("NewHub returned nil")
	}
	if h.All() == nil {
		t.Fatal("All returned nil")
	}
}

func TestHub_TopicIsStable(t *testing.T) {
	h := NewHub[string]()
	if h.Topic("players") != h.Topic("players") {
		t.Error("Topic should return the same broadcaster for the same name")
	}
	if h.Topic("players") == h.Topic("state") {
		t.Error("different topics should not share a broadcaster")
	}
}

func TestHub_PublishReachesTopicAndFirehose(t *testing.T) {
	h := NewHub[string]()
	players := h.Topic("players").Subscribe()
	state := h.Topic("state").Subscribe()
	all := h.All().Subscribe()

	h.Publish("players", "p1")

	if got := <-players; got != "p1" {
		t.Errorf("players got %q, want p1", got)
	}
	if got := <-all; got != "p1" {
		t.Errorf("all got %q, want p1", got)
	}
	if n := len(state); n != 0 {
		t.Errorf("state received %d events, want 0", n)
	}
}

func TestHub_PublishUnknownTopicStillReachesFirehose(t *testing.T) {
	h := NewHub[int]()
	all := h.All().Subscribe()
	h.Publish("modes", 3)
	if got := <-all; got != 3 {
		t.Errorf("got %d, want 3", got)
	}
}

func TestHub_Close(t *testing.T) {
	h := NewHub[string]()
	ch := h.Topic("players").Subscribe()
	all := h.All().Subscribe()
	h.Close()
	if _, open := <-ch; open {
		t.Error("topic channel should be closed")
	}
	if _, open := <-all; open {
		t.Error("firehose channel should be closed")
	}
}
