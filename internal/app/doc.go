// Package app wires the toolchain together for the CLI: configuration with
// defaults, the logger, the state database, the registry client, and one
// method per user-facing operation, decoupled from any specific entrypoint.
package app
