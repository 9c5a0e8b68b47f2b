package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
//
// WHY A JANITOR GOROUTINE?
// Get already refuses expired sessions, but a browser that never comes back
// would leave its entry in the map forever. The janitor sweeps expired
// entries every interval so memory stays bounded by the number of live
// sessions.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time

	stop chan struct{}
	done chan struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore starts a store whose janitor runs every sweepInterval.
// Call Close to stop it.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[string]Session),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.janitor(sweepInterval)
	return m
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || s.Expired(m.now()) {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Close stops the janitor. It must be called at most once.
func (m *MemoryStore) Close() error {
	close(m.stop)
	<-m.done
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) janitor(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *MemoryStore) sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
		}
	}
}
