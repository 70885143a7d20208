package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	events   map[string][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]Profile),
		events:   make(map[string][]Event),
	}
}

func (s *InMemoryStore) Profile(_ context.Context, userID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (s *InMemoryStore) UpsertProfile(_ context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	s.profiles[p.UserID] = p
	return nil
}

func (s *InMemoryStore) UpdateMemory(_ context.Context, userID, memory string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = Profile{UserID: userID}
	}
	p.Memory = memory
	p.UpdatedAt = time.Now().UTC()
	s.profiles[userID] = p
	return nil
}

func (s *InMemoryStore) SaveEvent(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.events[e.UserID] = append(s.events[e.UserID], e)
	return nil
}

func (s *InMemoryStore) RecentEvents(_ context.Context, userID string, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.events[userID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	// Newest first.
	out := make([]Event, 0, limit)
	for i := len(arr) - 1; i >= len(arr)-limit; i-- {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
