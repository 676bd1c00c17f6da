package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/stevehuang0115/agentmux/internal/hexid"
)

// pathLocks serializes mutations per target file: an in-process mutex for
// goroutines in this process plus a flock sidecar for other processes
// sharing the same home directory.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *pathLocks) forPath(path string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.locks[path]
	if !ok {
		m = &sync.Mutex{}
		p.locks[path] = m
	}
	return m
}

// withPathLock runs fn while holding both the in-process mutex and the
// cross-process advisory lock for path. The parent directory is created
// first: the flock sidecar lives next to the target, so the directory must
// exist before the lock file can be opened.
func (p *pathLocks) withPathLock(path string, fn func() error) error {
	m := p.forPath(path)
	m.Lock()
	defer m.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}

	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	defer fl.Unlock()

	return fn()
}

// writeJSONAtomic writes v to path via temp file + fsync + rename. External
// readers never observe a torn file: the rename either lands fully or the
// old content survives. The temp file is unlinked on any failure.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := fmt.Sprintf("%s.tmp.%d.%s", path, time.Now().UnixNano(), hexid.New())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
