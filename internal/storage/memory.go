package storage

import (
	"context"
	"sync"

	"github.com/zhouzirui/eddez/backend/internal/model/chat"
	"github.com/zhouzirui/eddez/backend/internal/model/knowledge"
	"github.com/zhouzirui/eddez/backend/internal/model/settings"
	"github.com/zhouzirui/eddez/backend/internal/model/user"
)

// MemoryStore keeps everything in process memory. Data is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string][]chat.Session
	settings  map[string]settings.UserSettings
	knowledge []knowledge.Item
	accounts  map[string]user.Account
	order     []string
}

// NewMemoryStore bootstraps an in-memory store seeded with the given
// knowledge base.
func NewMemoryStore(seed []knowledge.Item) *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string][]chat.Session),
		settings:  make(map[string]settings.UserSettings),
		knowledge: append([]knowledge.Item(nil), seed...),
		accounts:  make(map[string]user.Account),
	}
}

func (s *MemoryStore) ListSessions(_ context.Context, userID string) ([]chat.Session, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.sessions[userID]
	out := make([]chat.Session, len(stored))
	for i, session := range stored {
		out[i] = session.Clone()
	}
	return out, nil
}

func (s *MemoryStore) SaveSession(_ context.Context, userID string, session chat.Session) error {
	if userID == "" {
		return ErrUserRequired
	}
	session = session.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.sessions[userID]
	for i := range list {
		if list[i].ID == session.ID {
			list[i] = session
			return nil
		}
	}
	s.sessions[userID] = append([]chat.Session{session}, list...)
	return nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, userID, sessionID string) error {
	if userID == "" {
		return ErrUserRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.sessions[userID]
	kept := list[:0:0]
	for _, session := range list {
		if session.ID != sessionID {
			kept = append(kept, session)
		}
	}
	s.sessions[userID] = kept
	return nil
}

func (s *MemoryStore) GetSettings(_ context.Context, userID string) (settings.UserSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if prefs, ok := s.settings[userID]; ok {
		return prefs, nil
	}
	return settings.Default(), nil
}

func (s *MemoryStore) SaveSettings(_ context.Context, userID string, prefs settings.UserSettings) error {
	if userID == "" {
		return ErrUserRequired
	}
	s.mu.Lock()
	s.settings[userID] = prefs
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListKnowledge(context.Context) ([]knowledge.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]knowledge.Item(nil), s.knowledge...), nil
}

func (s *MemoryStore) ReplaceKnowledge(_ context.Context, items []knowledge.Item) error {
	copied := append([]knowledge.Item(nil), items...)
	s.mu.Lock()
	s.knowledge = copied
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CreateUser(_ context.Context, account user.Account) error {
	account.Email = user.NormalizeEmail(account.Email)
	if account.Email == "" {
		return ErrUserRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Email]; ok {
		return ErrUserExists
	}
	s.accounts[account.Email] = account
	s.order = append(s.order, account.Email)
	return nil
}

func (s *MemoryStore) FindUser(_ context.Context, email string) (user.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[user.NormalizeEmail(email)]
	if !ok {
		return user.Account{}, ErrNotFound
	}
	return account, nil
}

func (s *MemoryStore) ListUsers(context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]user.User, 0, len(s.order))
	for _, email := range s.order {
		out = append(out, s.accounts[email].User)
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
