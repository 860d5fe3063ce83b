// Package plugins discovers, imports and introspects plugin modules.
//
// # Overview
//
// Plugins are Go packages that register their modules with a Catalog from
// init(). A host links them in (or opens them as shared objects), points a
// Loader at one or more search paths and asks for modules by name, by
// filesystem discovery or through declared entry points. Given a module and
// a capability (an interface type) the Resolver returns the one concrete type
// of the module that implements it, which the host can then instantiate.
//
// # Filesystem Layout
//
// A package is a directory holding a plugin.yaml marker, which may be empty
// or carry a manifest with entry points. A module is a file with one of the
// module suffixes (.go and .so by default). Below a search path /opt/plugins:
//
//	/opt/plugins/
//		greeter/plugin.yaml      package "greeter"
//		greeter/english.go       module  "greeter.english"
//		shout.so                 module  "shout" (shared object)
//
// # Registering Modules
//
//	func init() {
//		plugins.MustRegister("greeter.english",
//			plugins.TypeOf("English", func() *English { return &English{} }),
//		)
//	}
//
// Shared objects built with -buildmode=plugin export
//
//	func AnymodModule() []plugins.Symbol
//
// # Usage Example
//
//	loader := plugins.NewLoader(plugins.Options{Paths: []string{"/opt/plugins"}})
//
//	found, err := loader.DiscoverModules(ctx, "", nil, "greeter")
//	sym, err := loader.ResolveSubclass(ctx, "greeter.english", plugins.CapabilityFor[greeter.Greeter]())
//	g, ok, err := plugins.Instantiate[greeter.Greeter](loader.Resolver(), module)
//
// Entry points:
//
//	symbols, err := loader.EntryPoints(ctx, "anymod.greeters", "")
//
// # Related Packages
//
//   - pkg/config: Loader configuration
//   - pkg/observability: Logging, metrics and tracing used by the loader
//   - pkg/cli: Command line front end
package plugins
