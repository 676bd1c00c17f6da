// Package exitwatch watches agent sessions for child-process exit and fans
// the observation out to a single registered callback. The registration
// engine uses it to abort pending registrations when the runtime dies
// underneath them.
package exitwatch

import (
	"sync"

	"github.com/stevehuang0115/agentmux/internal/debug"
)

// Backend is the slice of the session backend the monitor needs.
type Backend interface {
	OnExit(name string, cb func()) (func(), error)
}

type watch struct {
	unsubscribe func()
	runtimeType string
	role        string
}

// Monitor is constructed once in process wiring and shared by everything
// that cares about session death.
type Monitor struct {
	backend Backend

	mu      sync.Mutex
	watches map[string]*watch
	onExit  func(sessionName string)
}

func New(backend Backend) *Monitor {
	return &Monitor{
		backend: backend,
		watches: make(map[string]*watch),
	}
}

// SetOnExitDetected registers the exit callback. Exits observed before any
// callback is set are dropped.
func (m *Monitor) SetOnExitDetected(fn func(sessionName string)) {
	m.mu.Lock()
	m.onExit = fn
	m.mu.Unlock()
}

// Start begins watching a session. Watching an already-watched session is a
// no-op.
func (m *Monitor) Start(sessionName, runtimeType, role string) error {
	m.mu.Lock()
	if _, ok := m.watches[sessionName]; ok {
		m.mu.Unlock()
		return nil
	}
	// Reserve the slot before subscribing so a concurrent Start cannot
	// double-subscribe.
	m.watches[sessionName] = &watch{runtimeType: runtimeType, role: role}
	m.mu.Unlock()

	unsub, err := m.backend.OnExit(sessionName, func() {
		m.handleExit(sessionName)
	})
	if err != nil {
		m.mu.Lock()
		delete(m.watches, sessionName)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if w, ok := m.watches[sessionName]; ok {
		w.unsubscribe = unsub
	} else {
		// Stopped while we were subscribing.
		unsub()
	}
	m.mu.Unlock()

	debug.LogKV("exitwatch", "watching session", "session", sessionName, "runtime", runtimeType, "role", role)
	return nil
}

// Stop ends the watch for a session. Unknown sessions are a no-op.
func (m *Monitor) Stop(sessionName string) {
	m.mu.Lock()
	w, ok := m.watches[sessionName]
	if ok {
		delete(m.watches, sessionName)
	}
	m.mu.Unlock()

	if ok && w.unsubscribe != nil {
		w.unsubscribe()
	}
}

// Watching reports whether a session is currently monitored.
func (m *Monitor) Watching(sessionName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watches[sessionName]
	return ok
}

func (m *Monitor) handleExit(sessionName string) {
	m.mu.Lock()
	fn := m.onExit
	w, ok := m.watches[sessionName]
	if ok {
		delete(m.watches, sessionName)
	}
	m.mu.Unlock()

	if ok && w.unsubscribe != nil {
		w.unsubscribe()
	}

	debug.LogKV("exitwatch", "session exit detected", "session", sessionName)
	if fn != nil {
		fn(sessionName)
	}
}
