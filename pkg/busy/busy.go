// Package busy provides per-trigger "submission in progress" guards.
package busy

import (
	"context"
	"sync"
)

// Lease is the holder's claim on a busy key. Only the lease that acquired a
// key can release it. Release is idempotent.
type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// Guard marks a logical trigger as busy while an operation started from it
// is in flight. TryAcquire never blocks: it returns a nil Lease when the key
// is already held.
type Guard interface {
	TryAcquire(ctx context.Context, key string) (Lease, error)
}

// Memory is a process-local Guard.
type Memory struct {
	mu   sync.Mutex
	held map[string]uint64
	next uint64
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]uint64)}
}

func (m *Memory) TryAcquire(_ context.Context, key string) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.held[key]; busy {
		return nil, nil
	}

	m.next++
	m.held[key] = m.next

	return &memoryLease{guard: m, key: key, generation: m.next}, nil
}

// Busy reports whether key is currently held.
func (m *Memory) Busy(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, busy := m.held[key]

	return busy
}

func (m *Memory) release(key string, generation uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held[key] == generation {
		delete(m.held, key)
	}
}

type memoryLease struct {
	guard      *Memory
	key        string
	generation uint64
}

func (l *memoryLease) Key() string {
	return l.key
}

func (l *memoryLease) Release(context.Context) error {
	l.guard.release(l.key, l.generation)

	return nil
}
