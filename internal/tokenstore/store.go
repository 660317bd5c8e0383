// Package tokenstore tracks issued refresh tokens and the user each one
// belongs to. Entries are not expiry-aware: an expired token stays until it
// is deleted, and callers are expected to reject it through the codec.
package tokenstore

import (
	"context"
	"sync"
)

// Store maps a refresh token to the owning user id.
type Store interface {
	// Put inserts or overwrites the entry for token.
	Put(ctx context.Context, token string, userID int64) error
	// Get returns the owner of token; ok is false when no entry exists.
	Get(ctx context.Context, token string) (userID int64, ok bool, err error)
	// Delete removes token. Deleting a missing token is not an error.
	Delete(ctx context.Context, token string) error
	Close() error
}

// Memory is a process-local Store.
type Memory struct {
	mu     sync.RWMutex
	tokens map[string]int64
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{tokens: map[string]int64{}}
}

func (m *Memory) Put(_ context.Context, token string, userID int64) error {
	m.mu.Lock()
	m.tokens[token] = userID
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, token string) (int64, bool, error) {
	m.mu.RLock()
	id, ok := m.tokens[token]
	m.mu.RUnlock()
	return id, ok, nil
}

func (m *Memory) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.tokens, token)
	m.mu.Unlock()
	return nil
}

// Len reports the number of tracked tokens.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}

func (m *Memory) Close() error { return nil }
