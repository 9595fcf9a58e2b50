package services

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Broadcast topics
const (
	TopicCards = "cards"
	TopicTodos = "todos"
)

// ActivityTopic returns the broadcast topic for one todo's activity stream
func ActivityTopic(todoID string) string {
	return fmt.Sprintf("activity:%s", todoID)
}

// Event is one broadcast message. Type is the wire-level discriminator.
type Event struct {
	Type string
	Data any
}

// Subscription is one subscriber's bounded mailbox on a topic.
//
// C carries events in publish order. When the publisher would block (the
// subscriber fell behind), the event is dropped and Lagged is signalled
// instead — the subscriber must then re-sync from an authoritative snapshot
// before resuming live consumption. Either a subscriber sees every event in
// causal order, or it observes a lag signal and recovers via snapshot.
type Subscription struct {
	ID     string
	C      chan Event
	Lagged chan struct{}
	topic  string
}

// EventBus is the in-memory broadcast bus for card, todo and activity events.
// It decouples the mutating services from WebSocket lifecycle: services
// publish here, and any connected client subscribes.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscription // topic → subID → sub
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string]map[string]*Subscription)}
}

// Subscribe creates a bounded subscription on a topic
func (b *EventBus) Subscribe(topic string, bufSize int) *Subscription {
	if bufSize <= 0 {
		bufSize = 64
	}
	sub := &Subscription{
		ID:     uuid.New().String(),
		C:      make(chan Event, bufSize),
		Lagged: make(chan struct{}, 1),
		topic:  topic,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[topic]; !ok {
		b.subscribers[topic] = make(map[string]*Subscription)
	}
	b.subscribers[topic][sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription. The channel is NOT closed — the
// subscriber's goroutine exits via its own done signal and the channel is
// then collected.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subscribers[sub.topic]; ok {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(b.subscribers, sub.topic)
		}
	}
}

// Publish sends an event to every subscriber on a topic. Never blocks: a
// subscriber whose mailbox is full gets a lag signal instead of the event.
func (b *EventBus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers[topic] {
		select {
		case sub.C <- event:
		default:
			select {
			case sub.Lagged <- struct{}{}:
				log.Printf("⚠️  [EVENT-BUS] Subscriber %s lagged on %s (dropped %s)", sub.ID, topic, event.Type)
			default:
				// Lag already signalled; the pending resync covers this event too
			}
		}
	}
}

// SubscriberCount returns the number of active subscribers on a topic
func (b *EventBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// Drain empties a subscription's mailbox. Called by subscribers recovering
// from lag: stale events predate the fresh snapshot they are about to take.
func (s *Subscription) Drain() {
	for {
		select {
		case <-s.C:
		default:
			return
		}
	}
}
