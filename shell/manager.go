package shell

import (
	"sort"
	"sync"
	"time"

	"github.com/robertftenbosch/parakeet/errors"
)

// Manager owns all active shell sessions, keyed by id. Sessions are
// created lazily on first reference and freed by explicit termination or
// the idle sweep.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the live session for id, spawning one if none
// exists or the previous one has died.
func (m *Manager) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		return nil, errors.NewKind(errors.KindValidation, "shell session id must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && s.Alive() {
		return s, nil
	}
	s, err := newSession(id, "", nil)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s
	return s, nil
}

// Execute runs a command in the named session, creating it on first use.
// Calls against the same id are serialized by the session's own lock;
// calls against different ids proceed independently.
func (m *Manager) Execute(id, command string, timeout time.Duration, env map[string]string) (*Result, error) {
	s, err := m.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	return s.Execute(command, timeout, env)
}

// List returns info for all tracked sessions, ordered by id.
func (m *Manager) List() []Info {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Terminate kills and frees the named session.
func (m *Manager) Terminate(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return errors.NewKind(errors.KindNotFound, "shell session '%s' not found", id)
	}
	s.Terminate()
	return nil
}

// TerminateAll kills and frees every session. Returns the number freed.
func (m *Manager) TerminateAll() int {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Terminate()
	}
	return len(sessions)
}

// SweepIdle terminates sessions unused for longer than threshold, plus
// any that have died on their own. Returns the number removed. The idle
// check never touches a session's command lock, so a session in the
// middle of a long command does not stall lookups of other ids.
func (m *Manager) SweepIdle(threshold time.Duration) int {
	cutoff := time.Now().Add(-threshold)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if !s.Alive() || s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Terminate()
	}
	return len(stale)
}

// StartSweeper runs SweepIdle on a ticker until the returned stop
// function is called.
func (m *Manager) StartSweeper(interval, threshold time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				m.SweepIdle(threshold)
			case <-quit:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(quit) }
}
