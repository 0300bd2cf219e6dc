// Package lock provides the single-flight run lock shared by scheduled and
// startup runs.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotHeld is returned by Unlock when the token no longer owns the key.
var ErrNotHeld = errors.New("lock not held")

// Locker hands out expiring, token-owned locks.
type Locker interface {
	// TryLock acquires key for ttl. ok is false when another holder owns it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Unlock releases key if token still owns it.
	Unlock(ctx context.Context, key, token string) error
}

type entry struct {
	token     string
	expiresAt time.Time
}

// Memory is a process-local Locker.
type Memory struct {
	mu    sync.Mutex
	held  map[string]entry
	clock func() time.Time
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]entry), clock: time.Now}
}

func (m *Memory) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	if e, ok := m.held[key]; ok && now.Before(e.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	m.held[key] = entry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (m *Memory) Unlock(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.held[key]
	if !ok || e.token != token {
		return ErrNotHeld
	}
	delete(m.held, key)
	return nil
}
