package plugins

import "errors"

var (
	// ErrPathNotFound is returned when a search path does not exist
	ErrPathNotFound = errors.New("search path not found")

	// ErrPathNotRegistered is returned when removing a search path that was never added
	ErrPathNotRegistered = errors.New("search path not registered")

	// ErrImportFailure is returned when a module cannot be located or built
	ErrImportFailure = errors.New("import failed")

	// ErrAttributeMissing is returned when a symbol is absent from an imported module
	ErrAttributeMissing = errors.New("attribute missing")

	// ErrAmbiguousCapability is returned when more than one symbol of a module implements a capability
	ErrAmbiguousCapability = errors.New("ambiguous capability")

	// ErrInvalidCapability is returned when a capability is not an interface type
	ErrInvalidCapability = errors.New("invalid capability")

	// ErrNotConstructible is returned when instantiating a symbol that has no constructor
	ErrNotConstructible = errors.New("symbol is not constructible")

	// ErrModuleExists is returned when registering a module name twice
	ErrModuleExists = errors.New("module already registered")

	// ErrInvalidName is returned for malformed module, symbol or class paths
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidEntryPoint is returned for malformed entry point declarations
	ErrInvalidEntryPoint = errors.New("invalid entry point")
)
