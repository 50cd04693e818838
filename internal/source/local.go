package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Tanteli/imx-starknet/internal/ctxlog"
	"github.com/Tanteli/imx-starknet/internal/fsutil"
	"github.com/Tanteli/imx-starknet/internal/manifest"
)

// Local serves a package straight from a directory in the workspace.
// Relative paths resolve against the directory of the manifest that
// declared the dependency.
type Local struct {
	path string
}

// NewLocal returns a source for the tree at path, resolved against baseDir
// when relative.
func NewLocal(path, baseDir string) *Local {
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return &Local{path: filepath.Clean(path)}
}

// Fetch loads the manifest and hashes the tree in place. Nothing is copied;
// the returned path is the live directory.
func (l *Local) Fetch(ctx context.Context, req Request) (*Fetched, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Using local package tree.", "path", l.path)

	info, err := os.Stat(l.path)
	if err != nil {
		return nil, fmt.Errorf("local package tree %s is not readable: %w", l.path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local package path %s is not a directory", l.path)
	}

	desc, err := manifest.Load(ctx, l.path)
	if err != nil {
		return nil, fmt.Errorf("local package tree %s carries no usable manifest: %w", l.path, err)
	}
	integrity, err := fsutil.HashTree(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash local package tree %s: %w", l.path, err)
	}

	f := &Fetched{Path: l.path, Integrity: integrity, Manifest: desc}
	if err := checkFetched(f, req); err != nil {
		return nil, err
	}
	return f, nil
}
