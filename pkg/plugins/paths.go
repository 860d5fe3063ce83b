package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

// PathRegistry tracks the directories searched for modules. Each loader owns
// its own registry; nothing here touches process-wide state.
type PathRegistry struct {
	mu    sync.RWMutex
	paths []string
	log   *logrus.Logger
}

// NewPathRegistry creates an empty registry
func NewPathRegistry(log *logrus.Logger) *PathRegistry {
	if log == nil {
		log = logrus.New()
	}
	return &PathRegistry{log: log}
}

// Add appends a search path if it is not already present. A file path is
// replaced by its directory. A missing path is logged, not added, and
// reported as ErrPathNotFound.
func (r *PathRegistry) Add(path string) error {
	normalized, err := normalizeSearchPath(path)
	if err != nil {
		r.log.WithField("path", path).Warnf("Search path does not exist: %v", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.paths, normalized) {
		return nil
	}
	r.paths = append(r.paths, normalized)
	r.log.WithField("path", normalized).Debug("Added search path")
	return nil
}

// Remove drops a search path. Removing an unknown path is a logged no-op
// reported as ErrPathNotRegistered.
func (r *PathRegistry) Remove(path string) error {
	key := cleanSearchPath(path)
	if info, err := os.Stat(key); err == nil && !info.IsDir() {
		key = filepath.Dir(key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.Index(r.paths, key)
	if idx < 0 {
		r.log.WithField("path", path).Debug("Search path was never added")
		return fmt.Errorf("%w: %s", ErrPathNotRegistered, path)
	}
	r.paths = slices.Delete(r.paths, idx, idx+1)
	return nil
}

// Paths returns a copy of the search paths in insertion order
func (r *PathRegistry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.paths)
}

// Contains checks if a path is registered
func (r *PathRegistry) Contains(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.paths, cleanSearchPath(path))
}

// Len returns the number of search paths
func (r *PathRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.paths)
}

func normalizeSearchPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathNotFound)
	}

	p := cleanSearchPath(path)
	info, err := os.Stat(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	if !info.IsDir() {
		p = filepath.Dir(p)
	}
	return p, nil
}

func cleanSearchPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
