// Package commands defines the imxpkg CLI and wires the application context
// for subcommands.
//
// Commands
//
//   - init     Author a Package.hcl manifest
//   - check    Validate the manifest and report the lock state
//   - show     Print the manifest in canonical form
//   - add      Declare a dependency
//   - remove   Drop a dependency
//   - bump     Raise the manifest version
//   - lock     Resolve dependencies and write imxpkg.lock
//   - install  Vendor the dependency closure under packages/
//   - list     List installed packages
//   - search   Search the registry index
//   - publish  Archive the package and push it to the registry
//   - yank     Mark a published version as withdrawn
//   - watch    Stream publish and yank events from the registry
//
// # Implementation
//
// The root command builds the shared application context before any
// subcommand runs: configuration from flags and the environment, a logger,
// and lazily opened handles to the state database and the registry client.
package commands
