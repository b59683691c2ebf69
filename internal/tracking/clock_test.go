package tracking

import (
	"sync"
	"time"
)

func newFakeClock() *ManualClock {
	return NewManualClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
}

// pending returns the number of armed timers.
func (c *ManualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// memStore is an in-memory Store that counts writes.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*WritingSession
	saves    int
	failSave error
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]*WritingSession)}
}

func (m *memStore) SaveSession(s *WritingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.saves++
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memStore) LoadSession(id string) (*WritingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memStore) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memStore) get(id string) *WritingSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}
