package tracking

import (
	"fmt"
	"log/slog"
	"sync"
)

// Manager holds one Recorder per writing context so independent sessions,
// such as several question responses on one page, never share state.
type Manager struct {
	mu        sync.Mutex
	recorders map[string]*Recorder
	template  Config
}

// NewManager creates a manager. Store, Clock, Logger and timing fields of
// template apply to every recorder it opens.
func NewManager(template Config) *Manager {
	template.ID = ""
	template.StartFresh = false
	if template.Logger == nil {
		template.Logger = slog.Default()
	}
	return &Manager{
		recorders: make(map[string]*Recorder),
		template:  template,
	}
}

// Open returns the recorder for id, creating it if needed. With fresh set,
// any existing recorder and persisted state for id are discarded.
func (m *Manager) Open(id string, fresh bool) (*Recorder, error) {
	if id == "" {
		return nil, fmt.Errorf("tracking: empty writing context id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.recorders[id]; ok {
		if !fresh {
			return r, nil
		}
		r.Close()
	}
	cfg := m.template
	cfg.ID = id
	cfg.StartFresh = fresh
	r := NewRecorder(cfg)
	m.recorders[id] = r
	return r, nil
}

// Get returns the recorder for id.
func (m *Manager) Get(id string) (*Recorder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recorders[id]
	return r, ok
}

// Stop seals the session for id and forgets the recorder.
func (m *Manager) Stop(id, finalText string) (*WritingSession, error) {
	m.mu.Lock()
	r, ok := m.recorders[id]
	delete(m.recorders, id)
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.Stop(finalText), nil
}

// Active returns the ids of recorders currently tracking.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, r := range m.recorders {
		if r.Tracking() {
			ids = append(ids, id)
		}
	}
	return ids
}

// CloseAll stops every recorder without sealing, leaving persisted state
// in place for resumption.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, r := range m.recorders {
		r.Close()
		m.template.Logger.Debug("closed recorder", slog.String("session_id", id))
		delete(m.recorders, id)
	}
}
