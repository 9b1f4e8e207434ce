package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. State is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]State
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]State)}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[userID]
	if !ok {
		return State{}, false, nil
	}
	return State{Step: state.Step, Data: cloneData(state.Data)}, true, nil
}

func (s *MemoryStore) SetState(_ context.Context, userID int64, step string, data map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[userID] = State{Step: step, Data: cloneData(data)}
	return nil
}

func (s *MemoryStore) Update(_ context.Context, userID int64, data map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[userID]
	if !ok {
		return ErrSessionNotFound
	}
	state.Data = mergeData(state.Data, data)
	s.sessions[userID] = state
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, userID)
	return nil
}

// Len reports the number of open sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
