package plugins

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// EntryPoint is a declared binding from (group, name) to a loadable symbol
type EntryPoint struct {
	Group  string `json:"group" yaml:"group"`
	Name   string `json:"name" yaml:"name"`
	Target string `json:"target" yaml:"target"` // "module.path:Symbol" or "module.path.Symbol"
	Source string `json:"source,omitempty" yaml:"-"`
}

// Validate checks that the entry point is complete and its target parses
func (e EntryPoint) Validate() error {
	if e.Group == "" {
		return fmt.Errorf("%w: group is required", ErrInvalidEntryPoint)
	}
	if e.Name == "" {
		return fmt.Errorf("%w: name is required in group %s", ErrInvalidEntryPoint, e.Group)
	}
	if _, _, err := ParseTarget(e.Target); err != nil {
		return fmt.Errorf("%w: %s/%s: %w", ErrInvalidEntryPoint, e.Group, e.Name, err)
	}
	return nil
}

// ParseTarget splits a class path into module and symbol. The colon form
// "a.b:Sym" is preferred; otherwise the split happens at the last dot.
func ParseTarget(target string) (module, symbol string, err error) {
	if i := strings.LastIndex(target, ":"); i >= 0 {
		module, symbol = target[:i], target[i+1:]
	} else if i := strings.LastIndex(target, "."); i >= 0 {
		module, symbol = target[:i], target[i+1:]
	} else {
		return "", "", fmt.Errorf("%w: %q has no module portion", ErrInvalidName, target)
	}

	if !isValidModulePath(module) {
		return "", "", fmt.Errorf("%w: module portion %q of %q", ErrInvalidName, module, target)
	}
	if !identifierRegex.MatchString(symbol) {
		return "", "", fmt.Errorf("%w: symbol portion %q of %q", ErrInvalidName, symbol, target)
	}
	return module, symbol, nil
}

// EntryPointIndex holds declared entry points by group
type EntryPointIndex struct {
	mu     sync.RWMutex
	groups map[string]map[string]EntryPoint
	log    *logrus.Logger
}

// NewEntryPointIndex creates an empty index
func NewEntryPointIndex(log *logrus.Logger) *EntryPointIndex {
	if log == nil {
		log = logrus.New()
	}
	return &EntryPointIndex{
		groups: make(map[string]map[string]EntryPoint),
		log:    log,
	}
}

// DefaultEntryPoints holds compiled-in entry point declarations
var DefaultEntryPoints = NewEntryPointIndex(nil)

// RegisterEntryPoint declares an entry point in DefaultEntryPoints
func RegisterEntryPoint(group, name, target string) error {
	return DefaultEntryPoints.Add(EntryPoint{Group: group, Name: name, Target: target, Source: CatalogSource})
}

// Add records an entry point. A second declaration of the same name in a
// group replaces the first (last write wins).
func (x *EntryPointIndex) Add(ep EntryPoint) error {
	if err := ep.Validate(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	group, ok := x.groups[ep.Group]
	if !ok {
		group = make(map[string]EntryPoint)
		x.groups[ep.Group] = group
	}
	if prev, exists := group[ep.Name]; exists {
		x.log.WithFields(logrus.Fields{
			"group":    ep.Group,
			"name":     ep.Name,
			"previous": prev.Source,
			"source":   ep.Source,
		}).Warnf("Duplicate entry point, %s replaces %s", ep.Target, prev.Target)
	}
	group[ep.Name] = ep
	return nil
}

// AddManifest records every entry point a manifest declares
func (x *EntryPointIndex) AddManifest(m *Manifest, source string) error {
	if errs := ValidateManifest(m); len(errs) > 0 {
		return fmt.Errorf("manifest %s: %w: %v", source, ErrInvalidEntryPoint, errs)
	}

	groups := make([]string, 0, len(m.EntryPoints))
	for group := range m.EntryPoints {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	for _, group := range groups {
		names := make([]string, 0, len(m.EntryPoints[group]))
		for name := range m.EntryPoints[group] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ep := EntryPoint{Group: group, Name: name, Target: m.EntryPoints[group][name], Source: source}
			if err := x.Add(ep); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadManifestFile reads a manifest and records its entry points
func (x *EntryPointIndex) LoadManifestFile(path string) error {
	m, err := LoadManifest(path)
	if err != nil {
		return err
	}
	return x.AddManifest(m, path)
}

// LoadFromDirs records entry points of the package manifests found directly
// below each search path. Broken manifests are logged and skipped.
func (x *EntryPointIndex) LoadFromDirs(paths []string, marker string) error {
	manifests, err := FindManifests(paths, marker)
	if err != nil {
		return err
	}
	for _, path := range manifests {
		log := x.log.WithField("path", path)

		m, err := LoadManifestFromDir(filepath.Dir(path), filepath.Base(path))
		if err != nil {
			log.Warnf("Skipping manifest: %v", err)
			continue
		}
		log = log.WithField("package", m.Name)
		if err := x.AddManifest(m, path); err != nil {
			log.Warnf("Skipping manifest: %v", err)
			continue
		}
		log.Debug("Loaded package entry points")
	}
	return nil
}

// Merge copies every entry point of other into x
func (x *EntryPointIndex) Merge(other *EntryPointIndex) error {
	for _, group := range other.Groups() {
		for _, ep := range other.Entries(group, "") {
			if err := x.Add(ep); err != nil {
				return err
			}
		}
	}
	return nil
}

// Groups returns the known group names, sorted
func (x *EntryPointIndex) Groups() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	groups := make([]string, 0, len(x.groups))
	for g := range x.groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Entries returns the entry points of a group sorted by name, or only the
// named one when name is not empty.
func (x *EntryPointIndex) Entries(group, name string) []EntryPoint {
	x.mu.RLock()
	defer x.mu.RUnlock()

	entries := x.groups[group]
	if name != "" {
		if ep, ok := entries[name]; ok {
			return []EntryPoint{ep}
		}
		return nil
	}

	out := make([]EntryPoint, 0, len(entries))
	for _, ep := range entries {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// ByGroup loads every entry point of a group (or just the named one) with
// load and returns the results by entry name. Loading is eager: the first
// failure aborts and is returned.
func (x *EntryPointIndex) ByGroup(group, name string, load func(target string) (Symbol, error)) (map[string]Symbol, error) {
	entries := x.Entries(group, name)
	out := make(map[string]Symbol, len(entries))
	for _, ep := range entries {
		sym, err := load(ep.Target)
		if err != nil {
			return nil, fmt.Errorf("entry point %s/%s: %w", ep.Group, ep.Name, err)
		}
		out[ep.Name] = sym
	}
	return out, nil
}
