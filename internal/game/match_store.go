// internal/game/match_store.go
package game

import (
	"sync"

	"github.com/google/uuid"
)

// MatchStore tracks active matches in memory.
type MatchStore struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*Match
}

func NewMatchStore() *MatchStore {
	return &MatchStore{
		matches: make(map[uuid.UUID]*Match),
	}
}

func (s *MatchStore) AddMatch(m *Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m
}

func (s *MatchStore) GetMatch(id uuid.UUID) (*Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, exists := s.matches[id]
	return m, exists
}

func (s *MatchStore) DeleteMatch(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matches, id)
}

// Count returns the number of live matches, for the health endpoint.
func (s *MatchStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}
