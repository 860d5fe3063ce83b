package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/anymod/pkg/observability"
)

// EventOp is the kind of change a watcher reports
type EventOp string

const (
	EventCreated EventOp = "created"
	EventRemoved EventOp = "removed"
)

// Event reports a module or package appearing or disappearing below a search path
type Event struct {
	Op   EventOp `json:"op"`
	Path string  `json:"path"`
	Name string  `json:"name"` // Import path as listed by ListImportPaths
}

// Watch reports modules and packages created or removed below the search
// paths registered when it is called. Every event purges the resolver cache.
// The channel is closed once ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	var roots []string
	for _, root := range l.paths.Paths() {
		if segment, ok := rootSegment(root); !ok {
			l.log.WithField("path", root).Warnf("Not watching search path: %q is not a valid import root", segment)
			continue
		}
		roots = append(roots, root)
		if err := l.watchTree(watcher, root); err != nil {
			watcher.Close()
			return nil, err
		}
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer watcher.Close()
		defer observability.RecoverPanic(l.log, "search path watcher")

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				out, ok := l.translate(watcher, roots, ev)
				if !ok {
					continue
				}
				l.resolver.Purge()
				l.metrics.RecordWatchEvent(string(out.Op))
				l.log.WithFields(logrus.Fields{"module": out.Name, "path": out.Path}).Debugf("Module %s", out.Op)

				select {
				case events <- out:
				case <-ctx.Done():
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.log.Warnf("Watcher error: %v", err)
			}
		}
	}()

	return events, nil
}

// watchTree watches dir and every package directory below it
func (l *Loader) watchTree(watcher *fsnotify.Watcher, dir string) error {
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		d, ok := l.scanner.describe(dir, entry)
		if !ok || !d.IsPackage {
			continue
		}
		if err := l.watchTree(watcher, d.Location); err != nil {
			l.log.WithField("path", d.Location).Warnf("Not watching package: %v", err)
		}
	}
	return nil
}

// translate maps a filesystem event to a module event
func (l *Loader) translate(watcher *fsnotify.Watcher, roots []string, ev fsnotify.Event) (Event, bool) {
	marker := l.scanner.Options().PackageMarker
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "_test.go") {
		return Event{}, false
	}

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return Event{}, false
		}
		if info.IsDir() {
			// Watch unmarked directories too so a marker written later is seen
			if err := l.watchTree(watcher, ev.Name); err != nil {
				l.log.WithField("path", ev.Name).Warnf("Not watching directory: %v", err)
			}
			if _, err := os.Stat(filepath.Join(ev.Name, marker)); err != nil {
				return Event{}, false
			}
			return l.event(roots, EventCreated, ev.Name)
		}
		if base == marker {
			return l.event(roots, EventCreated, filepath.Dir(ev.Name))
		}
		if l.hasModuleSuffix(base) {
			return l.event(roots, EventCreated, ev.Name)
		}

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if base == marker {
			return l.event(roots, EventRemoved, filepath.Dir(ev.Name))
		}
		if l.hasModuleSuffix(base) || !strings.Contains(base, ".") {
			return l.event(roots, EventRemoved, ev.Name)
		}
	}

	return Event{}, false
}

// event names path by its import path: prefix, the base name of the search
// path containing it, then the dotted path relative to that search path
func (l *Loader) event(roots []string, op EventOp, path string) (Event, bool) {
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}

		parts := strings.Split(rel, string(filepath.Separator))
		last := parts[len(parts)-1]
		for _, suffix := range l.scanner.Options().ModuleSuffixes {
			if strings.HasSuffix(last, suffix) {
				last = strings.TrimSuffix(last, suffix)
				break
			}
		}
		parts[len(parts)-1] = last

		rel = strings.Join(parts, ".")
		segment, ok := rootSegment(root)
		if !ok || !isValidModulePath(rel) {
			return Event{}, false
		}
		return Event{Op: op, Path: path, Name: l.prefix + segment + "." + rel}, true
	}
	return Event{}, false
}
