package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/code-payments/txguard/pkg/relay"
)

type store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*relay.Session
}

// New returns a new in memory relay.Store
func New() relay.Store {
	return &store{
		sessions: make(map[uuid.UUID]*relay.Session),
	}
}

// Init implements relay.Store.Init
func (s *store) Init(_ context.Context, id uuid.UUID) error {
	now := time.Now()
	session := &relay.Session{
		Id:            id,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if err := session.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		return relay.ErrSessionExists
	}
	s.sessions[id] = session
	return nil
}

// Replace implements relay.Store.Replace
func (s *store) Replace(_ context.Context, id uuid.UUID, tx []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.sessions[id]
	if !ok {
		return relay.ErrSessionNotFound
	}

	updated := item.Clone()
	updated.LatestTx = append([]byte(nil), tx...)
	updated.LastUpdatedAt = time.Now()
	if err := updated.Validate(); err != nil {
		return err
	}

	s.sessions[id] = &updated
	return nil
}

// SetWalletConnected implements relay.Store.SetWalletConnected
func (s *store) SetWalletConnected(_ context.Context, id uuid.UUID, connected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.sessions[id]
	if !ok {
		return relay.ErrSessionNotFound
	}

	item.WalletConnected = connected
	item.LastUpdatedAt = time.Now()
	return nil
}

// Get implements relay.Store.Get
func (s *store) Get(_ context.Context, id uuid.UUID) (*relay.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.sessions[id]
	if !ok {
		return nil, relay.ErrSessionNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// Clear implements relay.Store.Clear
func (s *store) Clear(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// ClearExpired implements relay.Store.ClearExpired
func (s *store) ClearExpired(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	for id, item := range s.sessions {
		if item.LastUpdatedAt.Before(olderThan) {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[uuid.UUID]*relay.Session)
}
