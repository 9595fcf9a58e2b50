package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"aiassist/internal/database"
	"aiassist/internal/models"
)

// CardQueue is the authoritative in-memory card state. Every mutation happens
// under the exclusive lock, writes through to the store, and broadcasts on the
// bus before the lock is released, so broadcast order equals mutation order.
type CardQueue struct {
	mu      sync.RWMutex
	cards   map[string]*models.ApprovalCard
	store   *database.CardStore
	bus     *EventBus
	metrics *Metrics
	now     func() time.Time
}

// NewCardQueue creates an empty card queue backed by the given store
func NewCardQueue(store *database.CardStore, bus *EventBus, metrics *Metrics) *CardQueue {
	return &CardQueue{
		cards:   make(map[string]*models.ApprovalCard),
		store:   store,
		bus:     bus,
		metrics: metrics,
		now:     time.Now,
	}
}

// Load hydrates the queue from persisted pending cards. Cards whose TTL
// already elapsed are reclassified expired instead of re-entering the queue.
func (q *CardQueue) Load(ctx context.Context) error {
	pending, err := q.store.ListByStatus(ctx, models.CardStatusPending)
	if err != nil {
		return fmt.Errorf("load pending cards: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	loaded, expired := 0, 0
	for _, card := range pending {
		if card.Expired(now) {
			card.Status = models.CardStatusExpired
			if err := q.store.UpdateStatus(ctx, card.ID, models.CardStatusExpired, card.SuggestedReply); err != nil {
				log.Printf("❌ [CARD-QUEUE] Failed to expire card %s on load: %v", card.ID, err)
				continue
			}
			expired++
			continue
		}
		q.cards[card.ID] = card
		loaded++
	}

	log.Printf("📋 [CARD-QUEUE] Loaded %d pending cards (%d expired on load)", loaded, expired)
	return nil
}

// Submit inserts a new pending card, persists it and broadcasts CardCreated
func (q *CardQueue) Submit(ctx context.Context, card *models.ApprovalCard) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.cards[card.ID]; exists {
		return fmt.Errorf("submit card %s: %w", card.ID, database.ErrDuplicate)
	}

	card.Status = models.CardStatusPending
	if err := q.store.Insert(ctx, card); err != nil {
		return fmt.Errorf("persist card %s: %w", card.ID, err)
	}

	q.cards[card.ID] = card
	if q.metrics != nil {
		q.metrics.CardsCreated.Inc()
	}
	q.bus.Publish(TopicCards, Event{Type: models.WSTypeCardCreated, Data: cloneCard(card)})
	return nil
}

// Pending returns all live pending cards ordered by creation time. Cards past
// their TTL are reclassified expired as a side effect of the read.
func (q *CardQueue) Pending(ctx context.Context) []models.ApprovalCard {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	out := make([]models.ApprovalCard, 0, len(q.cards))
	for id, card := range q.cards {
		if card.Expired(now) {
			q.expireLocked(ctx, id, card)
			continue
		}
		out = append(out, *card)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Approve atomically transitions a pending card to approved.
// Returns nil when the card is missing or already resolved.
func (q *CardQueue) Approve(ctx context.Context, id string) *models.ApprovalCard {
	return q.resolve(ctx, id, models.CardStatusApproved, nil)
}

// Dismiss atomically transitions a pending card to dismissed.
// Returns false on missing or already-resolved cards, making repeat
// dismissals no-ops.
func (q *CardQueue) Dismiss(ctx context.Context, id string) bool {
	return q.resolve(ctx, id, models.CardStatusDismissed, nil) != nil
}

// Edit atomically transitions a pending card to edited with a replacement
// reply text. Returns nil when the card is missing or already resolved.
func (q *CardQueue) Edit(ctx context.Context, id, newText string) *models.ApprovalCard {
	return q.resolve(ctx, id, models.CardStatusEdited, &newText)
}

// Get returns a copy of a card by id, pending or not yet evicted
func (q *CardQueue) Get(id string) *models.ApprovalCard {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if card, ok := q.cards[id]; ok {
		return cloneCard(card)
	}
	return nil
}

// ExpireDue sweeps all pending cards past their TTL. Returns how many were
// reclassified. The lazy expiry on reads makes this a tidiness pass, not a
// correctness requirement.
func (q *CardQueue) ExpireDue(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	n := 0
	for id, card := range q.cards {
		if card.Expired(now) {
			q.expireLocked(ctx, id, card)
			n++
		}
	}
	return n
}

func (q *CardQueue) resolve(ctx context.Context, id string, to models.CardStatus, newText *string) *models.ApprovalCard {
	q.mu.Lock()
	defer q.mu.Unlock()

	card, ok := q.cards[id]
	if !ok || card.Status != models.CardStatusPending {
		return nil
	}
	if card.Expired(q.now()) {
		q.expireLocked(ctx, id, card)
		return nil
	}

	reply := card.SuggestedReply
	if newText != nil {
		reply = *newText
	}
	if err := q.store.UpdateStatus(ctx, id, to, reply); err != nil {
		log.Printf("❌ [CARD-QUEUE] Failed to persist card %s → %s: %v", id, to, err)
		return nil
	}

	card.Status = to
	card.SuggestedReply = reply
	card.UpdatedAt = q.now()
	delete(q.cards, id)

	if q.metrics != nil {
		q.metrics.CardsResolved.WithLabelValues(string(to)).Inc()
	}
	q.bus.Publish(TopicCards, Event{Type: models.WSTypeCardUpdated, Data: cloneCard(card)})
	return cloneCard(card)
}

// expireLocked reclassifies one card as expired. Caller holds the write lock.
func (q *CardQueue) expireLocked(ctx context.Context, id string, card *models.ApprovalCard) {
	if err := q.store.UpdateStatus(ctx, id, models.CardStatusExpired, card.SuggestedReply); err != nil {
		log.Printf("❌ [CARD-QUEUE] Failed to persist card %s expiry: %v", id, err)
		return
	}
	card.Status = models.CardStatusExpired
	card.UpdatedAt = q.now()
	delete(q.cards, id)
	if q.metrics != nil {
		q.metrics.CardsResolved.WithLabelValues(string(models.CardStatusExpired)).Inc()
	}
	q.bus.Publish(TopicCards, Event{Type: models.WSTypeCardUpdated, Data: cloneCard(card)})
}

func cloneCard(card *models.ApprovalCard) *models.ApprovalCard {
	c := *card
	return &c
}
