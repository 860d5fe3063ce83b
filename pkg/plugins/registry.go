package plugins

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/anymod/pkg/observability"
)

// CatalogSource is the Module.Source of modules built from registrations
const CatalogSource = "catalog"

// ModuleBuilder produces the symbols of a module. It runs on first import
// and again on every Reload.
type ModuleBuilder func() ([]Symbol, error)

// Catalog is the module table that replaces import-by-string. Plugin
// packages register their modules from init() and hosts import them by
// dotted name.
type Catalog struct {
	mu       sync.RWMutex
	builders map[string]ModuleBuilder
	modules  map[string]*Module
	imports  singleflight.Group
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		builders: make(map[string]ModuleBuilder),
		modules:  make(map[string]*Module),
	}
}

// Default is the process-wide catalog used by the package-level helpers
var Default = NewCatalog()

// Register adds a module with a fixed set of symbols
func (c *Catalog) Register(name string, symbols ...Symbol) error {
	// Copy so later mutation of the caller's slice cannot leak in
	fixed := append([]Symbol(nil), symbols...)
	return c.RegisterFunc(name, func() ([]Symbol, error) {
		return fixed, nil
	})
}

// RegisterFunc adds a module whose body is built lazily on first import
func (c *Catalog) RegisterFunc(name string, build ModuleBuilder) error {
	if !isValidModulePath(name) {
		return fmt.Errorf("%w: module %q", ErrInvalidName, name)
	}
	if build == nil {
		return fmt.Errorf("module %s: builder cannot be nil", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.builders[name]; exists {
		return fmt.Errorf("%w: %s", ErrModuleExists, name)
	}
	if _, exists := c.modules[name]; exists {
		return fmt.Errorf("%w: %s", ErrModuleExists, name)
	}

	c.builders[name] = build
	return nil
}

// Add inserts an already built module, such as one opened from a shared object
func (c *Catalog) Add(m *Module) error {
	if m == nil {
		return fmt.Errorf("cannot add nil module")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.builders[m.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrModuleExists, m.Name())
	}
	if _, exists := c.modules[m.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrModuleExists, m.Name())
	}

	c.modules[m.Name()] = m
	return nil
}

// Unregister removes a module and forgets its imported namespace
func (c *Catalog) Unregister(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, registered := c.builders[name]
	_, imported := c.modules[name]
	if !registered && !imported {
		return fmt.Errorf("module not registered: %s", name)
	}

	delete(c.builders, name)
	delete(c.modules, name)
	return nil
}

// Has checks if a module is registered or already imported
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.builders[name]; ok {
		return true
	}
	_, ok := c.modules[name]
	return ok
}

// Imported checks if a module body has already been built
func (c *Catalog) Imported(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.modules[name]
	return ok
}

// Import returns the module registered under name, building it on first use.
// Repeated imports return the same *Module.
func (c *Catalog) Import(name string) (*Module, error) {
	c.mu.RLock()
	m, ok := c.modules[name]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	v, err, _ := c.imports.Do(name, func() (interface{}, error) {
		c.mu.RLock()
		m, ok := c.modules[name]
		build, registered := c.builders[name]
		c.mu.RUnlock()
		if ok {
			return m, nil
		}
		if !registered {
			return nil, fmt.Errorf("%w: no module named %q", ErrImportFailure, name)
		}

		m, err := buildModule(name, build)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.modules[name] = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Module), nil
}

// Reload rebuilds a registered module and replaces the cached namespace.
// Modules added as prebuilt namespaces cannot be reloaded.
func (c *Catalog) Reload(name string) (*Module, error) {
	c.mu.RLock()
	build, registered := c.builders[name]
	c.mu.RUnlock()
	if !registered {
		return nil, fmt.Errorf("%w: cannot reload %q", ErrImportFailure, name)
	}

	m, err := buildModule(name, build)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.modules[name] = m
	c.mu.Unlock()
	return m, nil
}

// Names returns every registered or imported module name, sorted
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{}, len(c.builders)+len(c.modules))
	for name := range c.builders {
		seen[name] = struct{}{}
	}
	for name := range c.modules {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of known modules
func (c *Catalog) Count() int {
	return len(c.Names())
}

// Clear removes all modules from the catalog
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.builders = make(map[string]ModuleBuilder)
	c.modules = make(map[string]*Module)
}

func buildModule(name string, build ModuleBuilder) (m *Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = fmt.Errorf("%w: module %s: %w", ErrImportFailure, name, observability.MustRecover(r))
		}
	}()

	symbols, err := build()
	if err != nil {
		return nil, fmt.Errorf("%w: module %s: %w", ErrImportFailure, name, err)
	}

	m, err = NewModule(name, CatalogSource, symbols...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportFailure, err)
	}
	return m, nil
}

// Register adds a module to the Default catalog
func Register(name string, symbols ...Symbol) error {
	return Default.Register(name, symbols...)
}

// RegisterFunc adds a lazily built module to the Default catalog
func RegisterFunc(name string, build ModuleBuilder) error {
	return Default.RegisterFunc(name, build)
}

// MustRegister is Register for init() functions; it panics on error
func MustRegister(name string, symbols ...Symbol) {
	if err := Default.Register(name, symbols...); err != nil {
		panic(fmt.Sprintf("plugins: %v", err))
	}
}
