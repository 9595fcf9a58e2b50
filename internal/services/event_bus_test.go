package services

import (
	"fmt"
	"testing"
)

func TestEventBusDeliversInOrder(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(TopicCards, 16)
	defer bus.Unsubscribe(sub)

	for i := 0; i < 10; i++ {
		bus.Publish(TopicCards, Event{Type: "card_created", Data: i})
	}

	for i := 0; i < 10; i++ {
		select {
		case event := <-sub.C:
			if event.Data.(int) != i {
				t.Fatalf("event %d out of order: got %v", i, event.Data)
			}
		default:
			t.Fatalf("event %d missing", i)
		}
	}
}

func TestEventBusTopicsAreIsolated(t *testing.T) {
	bus := NewEventBus()
	cards := bus.Subscribe(TopicCards, 4)
	todos := bus.Subscribe(TopicTodos, 4)
	defer bus.Unsubscribe(cards)
	defer bus.Unsubscribe(todos)

	bus.Publish(TopicCards, Event{Type: "card_created"})

	if len(cards.C) != 1 {
		t.Errorf("cards subscriber got %d events, want 1", len(cards.C))
	}
	if len(todos.C) != 0 {
		t.Errorf("todos subscriber got %d events, want 0", len(todos.C))
	}
}

// A slow subscriber must never block the publisher: overflow drops the event
// and raises the lag signal exactly once until handled.
func TestEventBusLagSignal(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(TopicCards, 2)
	defer bus.Unsubscribe(sub)

	for i := 0; i < 6; i++ {
		bus.Publish(TopicCards, Event{Type: "card_created", Data: i})
	}

	select {
	case <-sub.Lagged:
	default:
		t.Fatal("lag signal missing after overflow")
	}

	// Only one pending lag signal no matter how many events were dropped
	select {
	case <-sub.Lagged:
		t.Fatal("second lag signal queued")
	default:
	}

	// Recovery protocol: drain stale events, then resume live consumption
	sub.Drain()
	if len(sub.C) != 0 {
		t.Fatalf("drain left %d events", len(sub.C))
	}

	bus.Publish(TopicCards, Event{Type: "card_created", Data: "fresh"})
	select {
	case event := <-sub.C:
		if event.Data != "fresh" {
			t.Fatalf("post-drain event = %v", event.Data)
		}
	default:
		t.Fatal("live event missing after recovery")
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(TopicTodos, 4)

	if got := bus.SubscriberCount(TopicTodos); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}

	bus.Unsubscribe(sub)
	if got := bus.SubscriberCount(TopicTodos); got != 0 {
		t.Fatalf("subscriber count after unsubscribe = %d, want 0", got)
	}

	// Publishing to a topic with no subscribers is a no-op
	bus.Publish(TopicTodos, Event{Type: "todo_created"})
}

func TestActivityTopicPerTodo(t *testing.T) {
	if got := ActivityTopic("abc"); got != "activity:abc" {
		t.Errorf("ActivityTopic = %q", got)
	}

	bus := NewEventBus()
	a := bus.Subscribe(ActivityTopic("todo-a"), 4)
	b := bus.Subscribe(ActivityTopic("todo-b"), 4)

	for i := 0; i < 3; i++ {
		bus.Publish(ActivityTopic("todo-a"), Event{Type: "thinking", Data: fmt.Sprintf("a%d", i)})
	}

	if len(a.C) != 3 || len(b.C) != 0 {
		t.Errorf("a=%d b=%d, want 3 and 0", len(a.C), len(b.C))
	}
}
