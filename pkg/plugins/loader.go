package plugins

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/anymod/pkg/observability"
)

// Import sources reported in metrics and logs
const (
	sourceCatalog      = "catalog"
	sourceSharedObject = "shared_object"
)

// Options configures a Loader. Zero values select the defaults.
type Options struct {
	Paths       []string         // Initial search paths; missing ones are logged and skipped
	Prefix      string           // Default name prefix for discovery
	Scan        ScanOptions      // Filesystem conventions
	CacheSize   int              // Resolver cache size
	Catalog     *Catalog         // Module table, Default when nil
	EntryPoints *EntryPointIndex // Compiled-in entry points, DefaultEntryPoints when nil
	Logger      *logrus.Logger
	Metrics     *observability.Metrics // Optional
	Tracer      trace.Tracer           // Global tracer when nil
}

// Loader discovers, imports and introspects plugin modules
type Loader struct {
	paths         *PathRegistry
	prefix        string
	scanner       *Scanner
	resolver      *Resolver
	catalog       *Catalog
	entryPoints   *EntryPointIndex
	sharedObjects *SharedObjectImporter
	log           *logrus.Logger
	metrics       *observability.Metrics
	tracer        trace.Tracer

	mu        sync.RWMutex
	qualified map[string][]string // import path -> catalog names it stands for
}

// NewLoader creates a new plugin loader
func NewLoader(opts Options) *Loader {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = Default
	}
	entryPoints := opts.EntryPoints
	if entryPoints == nil {
		entryPoints = DefaultEntryPoints
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.Tracer(nil)
	}

	l := &Loader{
		paths:         NewPathRegistry(log),
		prefix:        opts.Prefix,
		scanner:       NewScanner(opts.Scan, log),
		resolver:      NewResolver(opts.CacheSize, log),
		catalog:       catalog,
		entryPoints:   entryPoints,
		sharedObjects: NewSharedObjectImporter(log),
		log:           log,
		metrics:       opts.Metrics,
		tracer:        tracer,
		qualified:     make(map[string][]string),
	}
	l.resolver.OnLookup = func(hit, _ bool) {
		l.metrics.RecordResolutionLookup(hit)
	}

	for _, p := range opts.Paths {
		// Missing paths are already logged by the registry
		_ = l.paths.Add(p)
	}
	l.metrics.SetSearchPaths(l.paths.Len())

	return l
}

// Paths returns the loader's search path registry
func (l *Loader) Paths() *PathRegistry { return l.paths }

// Catalog returns the module table imports are served from
func (l *Loader) Catalog() *Catalog { return l.catalog }

// Resolver returns the capability resolver
func (l *Loader) Resolver() *Resolver { return l.resolver }

// Prefix returns the default discovery prefix
func (l *Loader) Prefix() string { return l.prefix }

// AddPath registers a search path
func (l *Loader) AddPath(path string) error {
	err := l.paths.Add(path)
	l.metrics.SetSearchPaths(l.paths.Len())
	return err
}

// RemovePath unregisters a search path
func (l *Loader) RemovePath(path string) error {
	err := l.paths.Remove(path)
	l.metrics.SetSearchPaths(l.paths.Len())
	return err
}

// Modules lazily lists the top-level modules and packages below paths (the
// registered search paths when empty) whose name starts with include. An empty
// prefix selects the loader's default prefix.
func (l *Loader) Modules(ctx context.Context, prefix string, paths []string, include string) iter.Seq2[Descriptor, error] {
	return l.countScan("flat", l.scanner.Scan(ctx, l.searchPaths(paths), l.prefixOr(prefix), include))
}

// DiscoverModules collects Modules into a slice
func (l *Loader) DiscoverModules(ctx context.Context, prefix string, paths []string, include string) (_ []Descriptor, err error) {
	ctx, span := observability.StartSpan(ctx, l.tracer, "plugins.DiscoverModules",
		attribute.String("prefix", l.prefixOr(prefix)),
		attribute.String("include", include),
	)
	defer func() { observability.EndSpan(span, err) }()

	found, err := CollectDescriptors(l.Modules(ctx, prefix, paths, include))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("discovered", len(found)))
	return found, nil
}

// ListImportPaths returns the fully qualified names of every leaf module
// below paths. Each search path contributes its base name as the first
// segment, after prefix. Search paths whose base name is not an identifier
// cannot form an import path and are skipped. Every returned name is
// accepted by Import, LoadByPath and ResolveSubclass.
func (l *Loader) ListImportPaths(ctx context.Context, prefix string, paths []string) (_ []string, err error) {
	ctx, span := observability.StartSpan(ctx, l.tracer, "plugins.ListImportPaths")
	defer func() { observability.EndSpan(span, err) }()

	prefix = l.prefixOr(prefix)
	seen := make(map[string]struct{})
	var out []string

	for _, root := range l.searchPaths(paths) {
		segment, ok := rootSegment(root)
		if !ok {
			l.log.WithField("path", root).Warnf("Skipping search path: %q is not a valid import root", segment)
			continue
		}

		rootPrefix := prefix + segment + "."
		for d, err := range l.countScan("tree", l.scanner.ScanTree(ctx, []string{root}, rootPrefix, "")) {
			if err != nil {
				return nil, err
			}
			if _, dup := seen[d.Name]; dup {
				continue
			}
			seen[d.Name] = struct{}{}
			out = append(out, d.Name)
			l.rememberQualified(d.Name, prefix, strings.TrimPrefix(d.Name, rootPrefix))
		}
	}

	span.SetAttributes(attribute.Int("discovered", len(out)))
	return out, nil
}

// FindImportPath returns the first import path from ListImportPaths whose last
// segment is name
func (l *Loader) FindImportPath(ctx context.Context, name, prefix string, paths []string) (string, bool, error) {
	all, err := l.ListImportPaths(ctx, prefix, paths)
	if err != nil {
		return "", false, err
	}
	for _, p := range all {
		if lastSegment(p) == name {
			return p, true, nil
		}
	}
	return "", false, nil
}

// Import returns the module registered under name. A qualified import path
// from ListImportPaths or Watch resolves to the module named relative to its
// search path. Names unknown to the catalog are looked up as shared objects
// on the search paths, opened and added to the catalog.
func (l *Loader) Import(ctx context.Context, name string) (_ *Module, err error) {
	ctx, span := observability.StartSpan(ctx, l.tracer, "plugins.Import", attribute.String("module", name))
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	names := l.importNames(name)
	for _, n := range names {
		if !l.catalog.Has(n) {
			continue
		}
		m, err := l.catalog.Import(n)
		l.metrics.RecordImport(sourceCatalog, err, time.Since(start))
		if err != nil {
			l.log.WithField("module", n).Warnf("Import failed: %v", err)
			return nil, err
		}
		span.SetAttributes(attribute.String("source", m.Source()))
		return m, nil
	}

	m, err := l.importSharedObject(ctx, names)
	l.metrics.RecordImport(sourceSharedObject, err, time.Since(start))
	if err != nil {
		l.log.WithField("module", name).Debugf("Import failed: %v", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("source", m.Source()))
	return m, nil
}

func (l *Loader) importSharedObject(ctx context.Context, names []string) (*Module, error) {
	if !isValidModulePath(names[0]) {
		return nil, fmt.Errorf("%w: module %q", ErrInvalidName, names[0])
	}

	for _, name := range names {
		m, found, err := l.openSharedObject(ctx, name)
		if found || err != nil {
			return m, err
		}
	}

	return nil, fmt.Errorf("%w: no module named %q", ErrImportFailure, names[0])
}

// openSharedObject opens the .so module named name relative to a search path
func (l *Loader) openSharedObject(ctx context.Context, name string) (*Module, bool, error) {
	for d, err := range l.scanner.ScanTree(ctx, l.paths.Paths(), "", name) {
		if err != nil {
			return nil, false, err
		}
		if d.Name != name || filepath.Ext(d.Location) != ".so" {
			continue
		}

		m, err := l.sharedObjects.Open(name, d.Location)
		if err != nil {
			return nil, true, err
		}
		if err := l.catalog.Add(m); err != nil {
			if errors.Is(err, ErrModuleExists) {
				// Lost a race with another importer of the same object
				m, err = l.catalog.Import(name)
				return m, true, err
			}
			return nil, true, err
		}
		l.log.WithFields(logrus.Fields{"module": name, "path": d.Location}).Info("Loaded shared object module")
		return m, true, nil
	}
	return nil, false, nil
}

// importNames returns name followed by the names it may stand for once its
// search path segment, and then the loader prefix, are removed
func (l *Loader) importNames(name string) []string {
	names := []string{name}
	add := func(n string) {
		if n != "" && !slices.Contains(names, n) {
			names = append(names, n)
		}
	}

	l.mu.RLock()
	for _, n := range l.qualified[name] {
		add(n)
	}
	l.mu.RUnlock()

	for _, root := range l.paths.Paths() {
		segment, ok := rootSegment(root)
		if !ok {
			continue
		}
		for _, prefix := range []string{l.prefix, ""} {
			if rest, ok := strings.CutPrefix(name, prefix+segment+"."); ok {
				add(prefix + rest)
				add(rest)
			}
		}
	}

	if l.prefix != "" {
		if rest, ok := strings.CutPrefix(name, l.prefix); ok {
			add(rest)
		}
	}
	return names
}

// rememberQualified records the catalog names an import path stands for, so
// paths listed from search paths that are not registered still import
func (l *Loader) rememberQualified(qualified, prefix, rel string) {
	names := []string{rel}
	if prefix != "" {
		names = []string{prefix + rel, rel}
	}

	l.mu.Lock()
	l.qualified[qualified] = names
	l.mu.Unlock()
}

// LoadByPath imports the module portion of path ("pkg.module.Symbol" or
// "pkg.module:Symbol") and returns the named symbol
func (l *Loader) LoadByPath(ctx context.Context, path string) (Symbol, error) {
	moduleName, symbolName, err := ParseTarget(path)
	if err != nil {
		return Symbol{}, err
	}

	m, err := l.Import(ctx, moduleName)
	if err != nil {
		return Symbol{}, err
	}

	sym, ok := m.Lookup(symbolName)
	if !ok {
		return Symbol{}, fmt.Errorf("%w: module %s has no symbol %q", ErrAttributeMissing, moduleName, symbolName)
	}
	return sym, nil
}

// ResolveSubclass imports moduleName and returns its implementation of
// capability, or nil when it has none
func (l *Loader) ResolveSubclass(ctx context.Context, moduleName string, capability reflect.Type) (_ *Symbol, err error) {
	ctx, span := observability.StartSpan(ctx, l.tracer, "plugins.ResolveSubclass",
		attribute.String("module", moduleName),
		attribute.String("capability", fmt.Sprint(capability)),
	)
	defer func() { observability.EndSpan(span, err) }()

	m, err := l.Import(ctx, moduleName)
	if err != nil {
		l.metrics.RecordResolution("error")
		return nil, err
	}

	sym, err := l.resolver.ResolveSubclass(m, capability)
	switch {
	case err != nil:
		l.metrics.RecordResolution("error")
		return nil, err
	case sym == nil:
		l.metrics.RecordResolution("not_found")
	default:
		l.metrics.RecordResolution("found")
		span.SetAttributes(attribute.String("symbol", sym.Name))
	}
	return sym, nil
}

// Reload rebuilds a catalog module. Shared object modules cannot be reloaded.
func (l *Loader) Reload(ctx context.Context, name string) (*Module, error) {
	_, span := observability.StartSpan(ctx, l.tracer, "plugins.Reload", attribute.String("module", name))

	m, err := l.catalog.Reload(name)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	l.log.WithField("module", name).Info("Reloaded module")
	return m, nil
}

// DiscoverPlugins imports every top-level module DiscoverModules finds.
// Modules that fail to import are logged and skipped.
func (l *Loader) DiscoverPlugins(ctx context.Context, prefix string, paths []string, include string) ([]*Module, error) {
	found, err := l.DiscoverModules(ctx, prefix, paths, include)
	if err != nil {
		return nil, err
	}

	modules := make([]*Module, 0, len(found))
	for _, d := range found {
		m, err := l.Import(ctx, d.Name)
		if err != nil {
			l.log.WithFields(logrus.Fields{"module": d.Name, "path": d.Location}).Warnf("Skipping plugin: %v", err)
			continue
		}
		modules = append(modules, m)
	}
	return modules, nil
}

// EntryPointIndex merges the compiled-in entry points with the manifests of
// the packages directly below the search paths
func (l *Loader) EntryPointIndex() (*EntryPointIndex, error) {
	index := NewEntryPointIndex(l.log)
	if err := index.Merge(l.entryPoints); err != nil {
		return nil, err
	}
	if err := index.LoadFromDirs(l.paths.Paths(), l.scanner.Options().PackageMarker); err != nil {
		return nil, err
	}
	return index, nil
}

// EntryPoints loads the symbols of every entry point in group, or only the
// named one when name is not empty
func (l *Loader) EntryPoints(ctx context.Context, group, name string) (_ map[string]Symbol, err error) {
	ctx, span := observability.StartSpan(ctx, l.tracer, "plugins.EntryPoints",
		attribute.String("group", group),
		attribute.String("name", name),
	)
	defer func() {
		l.metrics.RecordEntryPointLoad(group, err)
		observability.EndSpan(span, err)
	}()

	index, err := l.EntryPointIndex()
	if err != nil {
		return nil, err
	}
	return index.ByGroup(group, name, func(target string) (Symbol, error) {
		return l.LoadByPath(ctx, target)
	})
}

func (l *Loader) prefixOr(prefix string) string {
	if prefix == "" {
		return l.prefix
	}
	return prefix
}

func (l *Loader) searchPaths(paths []string) []string {
	if len(paths) == 0 {
		return l.paths.Paths()
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, cleanSearchPath(p))
	}
	return out
}

// rootSegment returns the first import path segment a search path
// contributes, and whether that segment is a valid identifier
func rootSegment(root string) (string, bool) {
	segment := filepath.Base(root)
	return segment, identifierRegex.MatchString(segment)
}

// countScan records the scan in metrics once the sequence is exhausted
func (l *Loader) countScan(mode string, seq iter.Seq2[Descriptor, error]) iter.Seq2[Descriptor, error] {
	if l.metrics == nil {
		return seq
	}
	return func(yield func(Descriptor, error) bool) {
		n := 0
		defer func() { l.metrics.RecordScan(mode, n) }()
		for d, err := range seq {
			if err == nil {
				n++
			}
			if !yield(d, err) {
				return
			}
		}
	}
}

// hasModuleSuffix reports whether name ends in one of the module suffixes
func (l *Loader) hasModuleSuffix(name string) bool {
	for _, suffix := range l.scanner.Options().ModuleSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// GetDefaultPluginDirectories returns the default plugin search directories
func GetDefaultPluginDirectories() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.TempDir()
	}

	return []string{
		filepath.Join(homeDir, ".anymod", "plugins"),
		"/etc/anymod/plugins",
		"./plugins", // Current directory
	}
}
