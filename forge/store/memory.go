package store

import (
	"context"
	"sort"
	"sync"

	"github.com/promptforge/promptforge/forge/convstate"
)

// MemoryStore keeps encoded snapshots in memory. It runs states through the
// snapshot codec on both paths, so loads return independent copies.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, id string, state *convstate.ConversationState) error {
	data, err := convstate.EncodeSnapshot(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[id] = data
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*convstate.ConversationState, error) {
	s.mu.RLock()
	data, ok := s.snapshots[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return convstate.DecodeSnapshot(data)
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
	return nil
}

var _ ConversationStore = (*MemoryStore)(nil)
