package channels

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"aiassist/internal/models"
)

// Manager holds the registered channel adapters. Adapters register at startup;
// the ingest job drains them and the approval flow sends replies through them.
type Manager struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewManager creates an empty adapter manager
func NewManager() *Manager {
	return &Manager{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. A later registration with the same name replaces
// the earlier one.
func (m *Manager) Register(a Adapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adapters[a.Name()] = a
	log.Printf("✅ Channel adapter registered: %s", a.Name())
}

// Get returns the adapter for a channel name
func (m *Manager) Get(name string) (Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adapters[name]
	return a, ok
}

// All returns every registered adapter
func (m *Manager) All() []Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Adapter, 0, len(m.adapters))
	for _, a := range m.adapters {
		out = append(out, a)
	}
	return out
}

// LoopbackAdapter is an in-memory adapter used in tests and local development.
// Messages queued with Push appear on the next FetchNew; sent replies are
// recorded for inspection.
type LoopbackAdapter struct {
	ChannelName string
	Allowlist   []string

	mu      sync.Mutex
	pending []models.InboundMessage
	Sent    []LoopbackSent
}

// LoopbackSent records one reply delivered through the loopback adapter
type LoopbackSent struct {
	ReplyTo string
	Subject string
	Body    string
}

// Name returns the adapter's channel name
func (l *LoopbackAdapter) Name() string { return l.ChannelName }

// Push queues a message for the next FetchNew
func (l *LoopbackAdapter) Push(msg models.InboundMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, msg)
}

// FetchNew drains queued messages
func (l *LoopbackAdapter) FetchNew(_ context.Context) ([]models.InboundMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.pending
	l.pending = nil
	return out, nil
}

// Send records the reply
func (l *LoopbackAdapter) Send(_ context.Context, replyTo, subject, body string, _ json.RawMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Sent = append(l.Sent, LoopbackSent{ReplyTo: replyTo, Subject: subject, Body: body})
	return nil
}

// IsSenderAllowed applies the shared allowlist semantics
func (l *LoopbackAdapter) IsSenderAllowed(addr string) bool {
	return SenderAllowed(l.Allowlist, addr)
}
