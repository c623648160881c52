package event_test

import (
	"testing"
	"time"

	"github.com/prsnlassistant/client/internal/event"
	"github.com/prsnlassistant/client/internal/types"
)

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := event.NewBus()
	// Must be a silent no-op.
	bus.Publish(event.NavigateToList{})
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	bus := event.NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	want := []string{"a", "b", "c", "d"}
	for _, id := range want {
		bus.Publish(event.ConversationDeleted{ID: id})
	}

	for i, wantID := range want {
		select {
		case ev := <-sub.Events():
			deleted, ok := ev.(event.ConversationDeleted)
			if !ok {
				t.Fatalf("event %d is %T, want ConversationDeleted", i, ev)
			}
			if deleted.ID != wantID {
				t.Errorf("event %d ID = %q, want %q", i, deleted.ID, wantID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}

func TestBus_IndependentSubscribers(t *testing.T) {
	bus := event.NewBus()
	sub1 := bus.Subscribe()
	defer sub1.Close()
	sub2 := bus.Subscribe()
	defer sub2.Close()

	bus.Publish(event.ConnectionChanged{Status: types.StatusConnected})

	for i, sub := range []*event.Subscription{sub1, sub2} {
		select {
		case ev := <-sub.Events():
			changed, ok := ev.(event.ConnectionChanged)
			if !ok {
				t.Fatalf("subscriber %d got %T, want ConnectionChanged", i+1, ev)
			}
			if changed.Status != types.StatusConnected {
				t.Errorf("subscriber %d Status = %v, want StatusConnected", i+1, changed.Status)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i+1)
		}
	}
}

func TestBus_NoHistoricalEvents(t *testing.T) {
	bus := event.NewBus()
	bus.Publish(event.NavigateToList{})

	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(event.NavigateToChat{ConvID: "conv-1"})

	select {
	case ev := <-sub.Events():
		if _, ok := ev.(event.NavigateToChat); !ok {
			t.Errorf("first event is %T, want NavigateToChat (not the pre-subscribe event)", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	bus := event.NewBus()
	slow := bus.Subscribe()
	defer slow.Close()
	fast := bus.Subscribe()
	defer fast.Close()

	// Nobody reads from slow; publishes must still complete promptly.
	published := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.Publish(event.TypingChanged{ConvID: "conv-1", IsTyping: i%2 == 0})
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked by a slow subscriber")
	}

	// The fast subscriber still sees all events in order.
	for i := 0; i < 1000; i++ {
		select {
		case ev := <-fast.Events():
			typing := ev.(event.TypingChanged)
			if typing.IsTyping != (i%2 == 0) {
				t.Fatalf("event %d out of order", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}

func TestSubscription_CloseStopsDelivery(t *testing.T) {
	bus := event.NewBus()
	sub := bus.Subscribe()
	sub.Close()

	bus.Publish(event.NavigateToList{})

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("received event on closed subscription")
		}
	case <-time.After(time.Second):
		t.Fatal("Events channel not closed after Close")
	}
}
