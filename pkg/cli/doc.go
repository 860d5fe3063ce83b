// Package cli provides the anymod command-line interface.
//
// # Overview
//
// The `anymod` CLI exposes the plugin loader from the terminal: it shows the
// effective search paths, discovers modules and packages, imports modules,
// resolves capability implementations and lists entry points.
//
// # Commands
//
// paths: Show the effective search paths
//
//	anymod paths -p ./plugins
//
// discover: Top-level modules and packages of each search path
//
//	anymod discover -p ./plugins --prefix ext. [include]
//
// list: Every importable module path, recursively
//
//	anymod list -p ./plugins
//
// find: Import path of a module by short name
//
//	anymod find pirate
//
// load / get: Import a module, or a single symbol
//
//	anymod load greeter.english
//	anymod get greeter.english:English
//
// resolve: Implementation of a capability provided by a module
//
//	anymod resolve greeter.pirate --capability greeter.Greeter
//
// entry-points: Declared entry points, optionally loaded
//
//	anymod entry-points anymod.greeters --load
//
// watch: Report modules as they appear and disappear
//
//	anymod watch --json
//
// # Global Flags
//
// Every command accepts --config, --path (repeatable), --prefix,
// --default-paths, --log-level, --log-format and --json. Flags override the
// configuration file and ANYMOD_* environment variables.
//
// # Related Packages
//
//   - pkg/plugins: Loader used by every command
//   - pkg/config: Configuration layering
package cli
