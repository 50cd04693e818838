// Package source materializes pinned package versions onto the local disk.
// Each Source implementation covers one dependency kind: the registry, a
// git remote, or a path in the workspace. Fetched trees live in the content
// cache; the installer copies them into the workspace from there.
package source

import (
	"context"
	"fmt"

	"github.com/Tanteli/imx-starknet/internal/manifest"
)

// Request names the exact package tree a caller wants. Version and
// Integrity may be empty when the caller has nothing to pin against yet;
// whatever is set gets enforced.
type Request struct {
	Name      string
	Version   string
	Integrity string
}

// Fetched is a materialized package tree.
type Fetched struct {
	// Path is the directory holding the tree. Callers must treat it as
	// read-only; it may be the shared content cache or a live workspace
	// directory.
	Path      string
	Integrity string
	Manifest  *manifest.Descriptor
}

// Source fetches one package tree.
type Source interface {
	Fetch(ctx context.Context, req Request) (*Fetched, error)
}

// checkFetched enforces whatever the request pinned: the manifest must agree
// on name and version, and the tree hash must match the expected integrity.
func checkFetched(f *Fetched, req Request) error {
	if f.Manifest.Name != req.Name {
		return fmt.Errorf("fetched tree declares package %q, want %q", f.Manifest.Name, req.Name)
	}
	if req.Version != "" && f.Manifest.Version != req.Version {
		return fmt.Errorf("fetched tree of %s declares version %s, want %s", req.Name, f.Manifest.Version, req.Version)
	}
	if req.Integrity != "" && f.Integrity != req.Integrity {
		return fmt.Errorf("integrity mismatch for %s@%s: got %s, want %s", req.Name, f.Manifest.Version, f.Integrity, req.Integrity)
	}
	return nil
}
