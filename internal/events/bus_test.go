package events

import (
	"testing"
	"time"

	"branchpilot/pkg/models"
)

func TestPublishToTopicSubscriber(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch := b.Subscribe(TopicWorkspace, 4)
	b.Publish(TopicWorkspace, PhaseChangedEvent{
		ID:   "ws-1",
		From: models.PhaseIdle,
		To:   models.PhasePlanning,
	})

	select {
	case ev := <-ch:
		if ev.EventType() != EventTypePhaseChanged {
			t.Errorf("unexpected event type %s", ev.EventType())
		}
		if ev.WorkspaceID() != "ws-1" {
			t.Errorf("unexpected workspace ID %s", ev.WorkspaceID())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDoesNotCrossTopics(t *testing.T) {
	b := NewBus()
	defer b.Close()

	mergeCh := b.Subscribe(TopicMerge, 4)
	b.Publish(TopicWorkspace, PhaseChangedEvent{ID: "ws-1"})

	select {
	case ev := <-mergeCh:
		t.Errorf("merge subscriber received foreign event %s", ev.EventType())
	default:
	}
}

func TestSubscribeAllReceivesEveryTopic(t *testing.T) {
	b := NewBus()
	defer b.Close()

	all := b.SubscribeAll(8)
	b.Publish(TopicGroup, GroupReadyEvent{GroupID: "g1"})
	b.Publish(TopicMerge, MergeStartedEvent{ID: "ws-1"})

	got := 0
	for i := 0; i < 2; i++ {
		select {
		case <-all:
			got++
		case <-time.After(time.Second):
		}
	}
	if got != 2 {
		t.Errorf("expected 2 events on all-topic channel, got %d", got)
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := NewBus()
	defer b.Close()

	// Buffer of one and no consumer: further publishes must drop, not block.
	b.Subscribe(TopicGroup, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(TopicGroup, GroupReadyEvent{GroupID: "g"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on full subscriber channel")
	}
}

func TestCloseIdempotent(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe(TopicGroup, 1)

	b.Close()
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel to be closed")
	}

	// Publishing after close is a no-op.
	b.Publish(TopicGroup, GroupReadyEvent{GroupID: "g"})
}

func TestSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	b := NewBus()
	b.Close()

	ch := b.Subscribe(TopicGroup, 1)
	if _, ok := <-ch; ok {
		t.Error("expected closed channel from post-close subscribe")
	}
}
