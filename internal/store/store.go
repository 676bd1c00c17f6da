package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/stevehuang0115/agentmux/internal/config"
)

// Store is the filesystem-backed state of the supervisor, rooted at the
// agentmux home directory (usually ~/.agentmux). All mutations go through
// the atomic-write protocol in atomic.go.
type Store struct {
	root  string
	locks *pathLocks

	// Snapshot of runtime.json taken at construction, used to distinguish
	// sessions that survived a restart from ones created this run.
	sessMu          sync.Mutex
	restoredAtStart map[string]RegisteredSession
	freshlyCreated  map[string]bool
}

// New opens (creating if needed) the store at root. Pass config.Home() for
// the standard location.
func New(root string) (*Store, error) {
	s := &Store{
		root:            root,
		locks:           newPathLocks(),
		restoredAtStart: make(map[string]RegisteredSession),
		freshlyCreated:  make(map[string]bool),
	}

	dirs := []string{
		root,
		filepath.Join(root, "teams"),
		filepath.Join(root, "prompts"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := s.migrateLegacyTeams(); err != nil {
		return nil, err
	}

	// Whatever runtime.json holds right now predates this process.
	sessions, err := s.readSessions()
	if err != nil {
		return nil, err
	}
	for name, rec := range sessions {
		s.restoredAtStart[name] = rec
	}

	return s, nil
}

// NewDefault opens the store at the standard agentmux home.
func NewDefault() (*Store, error) {
	return New(config.Home())
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) teamsDir() string {
	return filepath.Join(s.root, "teams")
}

func (s *Store) teamConfigPath(teamID string) string {
	return filepath.Join(s.teamsDir(), teamID, "config.json")
}

func (s *Store) orchestratorConfigPath() string {
	return filepath.Join(s.teamsDir(), "orchestrator", "config.json")
}

func (s *Store) runtimePath() string {
	return filepath.Join(s.root, "runtime.json")
}

func (s *Store) projectsPath() string {
	return filepath.Join(s.root, "projects.json")
}

func (s *Store) deliveryLogsPath() string {
	return filepath.Join(s.root, "message-delivery-logs.json")
}

func (s *Store) scheduledPath() string {
	return filepath.Join(s.root, "scheduled-messages.json")
}
