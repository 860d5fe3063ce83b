package plugins

import (
	"fmt"
	"plugin"

	"github.com/sirupsen/logrus"
)

// EntrySymbol is the symbol a shared object module must export. Its type
// must be func() []plugins.Symbol.
const EntrySymbol = "AnymodModule"

// SharedObjectImporter opens Go plugins (.so files) built with
// -buildmode=plugin against the same version of this package.
type SharedObjectImporter struct {
	log *logrus.Logger
}

// NewSharedObjectImporter creates an importer
func NewSharedObjectImporter(log *logrus.Logger) *SharedObjectImporter {
	if log == nil {
		log = logrus.New()
	}
	return &SharedObjectImporter{log: log}
}

// Open loads the shared object at path and builds module name from its entry symbol
func (i *SharedObjectImporter) Open(name, path string) (*Module, error) {
	i.log.WithFields(logrus.Fields{"module": name, "path": path}).Debug("Opening shared object")

	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open plugin %s: %w", ErrImportFailure, path, err)
	}

	sym, err := p.Lookup(EntrySymbol)
	if err != nil {
		return nil, fmt.Errorf("%w: plugin %s does not export %s: %w", ErrImportFailure, path, EntrySymbol, err)
	}

	entry, ok := sym.(func() []Symbol)
	if !ok {
		return nil, fmt.Errorf("%w: invalid %s signature in %s: %T", ErrImportFailure, EntrySymbol, path, sym)
	}

	m, err := NewModule(name, path, entry()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportFailure, err)
	}
	return m, nil
}
