package session

import (
	"context"
	"sync"
)

// Memory keeps sessions in process memory.
type Memory struct {
	mu    sync.RWMutex
	items map[string]Session
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]Session)}
}

func (m *Memory) Load(_ context.Context, key string) (Session, error) {
	if err := validKey(key); err != nil {
		return Session{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.items[key]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) Save(_ context.Context, key string, s Session) error {
	if err := validKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	m.items[key] = s
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}
