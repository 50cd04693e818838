// Package manifest defines the package descriptor — the declarative identity
// and dependency record carried by every StarkNet contract package — together
// with its HCL file format (Package.hcl).
//
// The `manifest.Descriptor` is the format-agnostic model consumed by the
// resolver, installer and registry client. HCL parsing, rendering and the
// schema structs bound to it live in this package so that no other package
// touches HCL directly.
package manifest
