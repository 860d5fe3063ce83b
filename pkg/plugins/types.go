package plugins

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// SymbolKind describes what a module symbol holds
type SymbolKind string

const (
	SymbolKindType      SymbolKind = "type"      // Constructible concrete type
	SymbolKindInterface SymbolKind = "interface" // Capability description
	SymbolKindValue     SymbolKind = "value"     // Plain exported value
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Symbol is a named entry of a module namespace
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Type  reflect.Type
	Value any
	New   func() any
}

// TypeOf declares a constructible type symbol. newFn builds a fresh instance
// on every call to Instantiate.
func TypeOf[T any](name string, newFn func() T) Symbol {
	return Symbol{
		Name: name,
		Kind: SymbolKindType,
		Type: reflect.TypeFor[T](),
		New:  func() any { return newFn() },
	}
}

// InterfaceOf declares a capability symbol for the interface type T
func InterfaceOf[T any](name string) Symbol {
	return Symbol{
		Name: name,
		Kind: SymbolKindInterface,
		Type: reflect.TypeFor[T](),
	}
}

// ValueOf declares a plain value symbol
func ValueOf(name string, value any) Symbol {
	return Symbol{
		Name:  name,
		Kind:  SymbolKindValue,
		Type:  reflect.TypeOf(value),
		Value: value,
	}
}

// IsType reports whether the symbol describes a type rather than a value
func (s Symbol) IsType() bool {
	return s.Kind == SymbolKindType || s.Kind == SymbolKindInterface
}

// Instantiate creates a new instance of a type symbol
func (s Symbol) Instantiate() (any, error) {
	if s.New == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConstructible, s.Name)
	}
	return s.New(), nil
}

func (s Symbol) validate() error {
	if !identifierRegex.MatchString(s.Name) {
		return fmt.Errorf("%w: symbol %q", ErrInvalidName, s.Name)
	}
	if s.Type == nil {
		return fmt.Errorf("%w: symbol %q has no type", ErrInvalidName, s.Name)
	}
	switch s.Kind {
	case SymbolKindType:
		if s.New == nil {
			return fmt.Errorf("%w: type symbol %q has no constructor", ErrNotConstructible, s.Name)
		}
	case SymbolKindInterface:
		if s.Type.Kind() != reflect.Interface {
			return fmt.Errorf("%w: symbol %q is not an interface", ErrInvalidCapability, s.Name)
		}
	case SymbolKindValue:
	default:
		return fmt.Errorf("%w: symbol %q has unknown kind %q", ErrInvalidName, s.Name, s.Kind)
	}
	return nil
}

// Module is an imported namespace. Modules are owned by a Catalog and are
// immutable once built.
type Module struct {
	name    string
	source  string
	symbols map[string]Symbol
	names   []string
}

// NewModule builds a module from its symbols. Duplicate symbol names are
// rejected.
func NewModule(name, source string, symbols ...Symbol) (*Module, error) {
	if !isValidModulePath(name) {
		return nil, fmt.Errorf("%w: module %q", ErrInvalidName, name)
	}

	m := &Module{
		name:    name,
		source:  source,
		symbols: make(map[string]Symbol, len(symbols)),
		names:   make([]string, 0, len(symbols)),
	}
	for _, s := range symbols {
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("module %s: %w", name, err)
		}
		if _, exists := m.symbols[s.Name]; exists {
			return nil, fmt.Errorf("module %s: duplicate symbol %q", name, s.Name)
		}
		m.symbols[s.Name] = s
		m.names = append(m.names, s.Name)
	}
	sort.Strings(m.names)

	return m, nil
}

// Name returns the dotted module name
func (m *Module) Name() string { return m.name }

// Source describes where the module came from (catalog, or a shared object path)
func (m *Module) Source() string { return m.source }

// Lookup returns the named symbol
func (m *Module) Lookup(name string) (Symbol, bool) {
	s, ok := m.symbols[name]
	return s, ok
}

// Names returns the symbol names in sorted order
func (m *Module) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Symbols returns every symbol sorted by name
func (m *Module) Symbols() []Symbol {
	out := make([]Symbol, 0, len(m.names))
	for _, n := range m.names {
		out = append(out, m.symbols[n])
	}
	return out
}

// Descriptor identifies a discoverable module without loading it
type Descriptor struct {
	Name      string `json:"name"`       // Dotted name, prefix applied
	IsPackage bool   `json:"is_package"` // Directory holding a package marker
	Location  string `json:"location"`   // File or directory found
	Root      string `json:"root"`       // Search path it was found under
}

// ShortName returns the last segment of the dotted name
func (d Descriptor) ShortName() string {
	return lastSegment(d.Name)
}

// CapabilityFor returns the capability type for interface T
func CapabilityFor[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// CollectDescriptors drains a descriptor sequence, stopping at the first error
func CollectDescriptors(seq iter.Seq2[Descriptor, error]) ([]Descriptor, error) {
	var out []Descriptor
	for d, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ModuleDiscoverer enumerates candidate modules
type ModuleDiscoverer interface {
	Scan(ctx context.Context, paths []string, prefix, include string) iter.Seq2[Descriptor, error]
	ScanTree(ctx context.Context, paths []string, prefix, include string) iter.Seq2[Descriptor, error]
}

// ModuleImporter turns a module name into a loaded namespace
type ModuleImporter interface {
	Import(name string) (*Module, error)
}

func isValidModulePath(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if !identifierRegex.MatchString(part) {
			return false
		}
	}
	return true
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
