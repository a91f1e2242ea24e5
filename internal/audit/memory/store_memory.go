package memory

import (
	"context"
	"sync"

	"agentwallet/internal/audit"
)

// InMemoryStore keeps events in process, keyed by record.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]audit.Event
	order  []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]audit.Event)
	s.order = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Key()] = append(s.events[event.Key()], event)
	s.order = append(s.order, event)
	return nil
}

// ListByRecord returns the events for one record in emission order.
func (s *InMemoryStore) ListByRecord(_ context.Context, recordType, recordID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := audit.Event{RecordType: recordType, RecordID: recordID}.Key()
	return append([]audit.Event{}, s.events[key]...), nil
}

// ListAll returns every event in emission order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.order...), nil
}

// ListRecent returns the last limit events, oldest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := max(len(s.order)-limit, 0)
	return append([]audit.Event{}, s.order[start:]...), nil
}
