package canvas

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. Data is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byName   map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*Session{},
		byName:   map[string]string{},
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, session *Session) error {
	if err := prepareSession(session, uuid.NewString); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return ErrAlreadyExists
	}
	if session.Name != "" {
		if _, exists := s.byName[session.Name]; exists {
			return ErrAlreadyExists
		}
		s.byName[session.Name] = session.ID
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (s *MemoryStore) GetSessionByName(_ context.Context, name string) (*Session, error) {
	if name == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (s *MemoryStore) ListSessions(_ context.Context, limit int) ([]*Session, error) {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		clone := *session
		clone.Elements = nil
		out = append(out, &clone)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SaveElements(_ context.Context, id string, elements []Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	session.Elements = CloneElements(elements)
	if session.Elements == nil {
		session.Elements = []Element{}
	}
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	if session.Name != "" {
		delete(s.byName, session.Name)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
