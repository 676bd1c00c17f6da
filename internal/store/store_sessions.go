package store

import (
	"os"
	"sort"
	"time"
)

// readSessions loads runtime.json. A missing file means no sessions.
func (s *Store) readSessions() (map[string]RegisteredSession, error) {
	sessions := make(map[string]RegisteredSession)
	if err := readJSON(s.runtimePath(), &sessions); err != nil {
		if os.IsNotExist(err) {
			return sessions, nil
		}
		return nil, err
	}
	return sessions, nil
}

func (s *Store) writeSessions(sessions map[string]RegisteredSession) error {
	path := s.runtimePath()
	return s.locks.withPathLock(path, func() error {
		return writeJSONAtomic(path, sessions)
	})
}

// RegisterSession persists a live session record. The name stops counting as
// restored: from here on it is a fresh creation of this process.
func (s *Store) RegisterSession(rec RegisteredSession) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.sessMu.Lock()
	s.freshlyCreated[rec.SessionName] = true
	s.sessMu.Unlock()

	sessions, err := s.readSessions()
	if err != nil {
		return err
	}
	sessions[rec.SessionName] = rec
	return s.writeSessions(sessions)
}

// UnregisterSession removes the record for an explicitly terminated session.
// Unknown names are a no-op.
func (s *Store) UnregisterSession(name string) error {
	sessions, err := s.readSessions()
	if err != nil {
		return err
	}
	if _, ok := sessions[name]; !ok {
		return nil
	}
	delete(sessions, name)
	return s.writeSessions(sessions)
}

func (s *Store) GetRegisteredSession(name string) (*RegisteredSession, bool) {
	sessions, err := s.readSessions()
	if err != nil {
		return nil, false
	}
	rec, ok := sessions[name]
	if !ok {
		return nil, false
	}
	return &rec, true
}

// Sessions returns all persisted session records sorted by name.
func (s *Store) Sessions() ([]RegisteredSession, error) {
	sessions, err := s.readSessions()
	if err != nil {
		return nil, err
	}
	out := make([]RegisteredSession, 0, len(sessions))
	for _, rec := range sessions {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionName < out[j].SessionName })
	return out, nil
}

// IsRestoredSession reports whether name existed at process start and has
// not been re-created fresh since. Restored sessions are resume candidates.
func (s *Store) IsRestoredSession(name string) bool {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if s.freshlyCreated[name] {
		return false
	}
	_, ok := s.restoredAtStart[name]
	return ok
}

// RestoredSessions returns the records that survived the last shutdown, in
// no particular order.
func (s *Store) RestoredSessions() []RegisteredSession {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	var out []RegisteredSession
	for name, rec := range s.restoredAtStart {
		if s.freshlyCreated[name] {
			continue
		}
		out = append(out, rec)
	}
	return out
}
