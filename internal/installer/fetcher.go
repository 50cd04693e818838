package installer

import (
	"context"
	"fmt"

	"github.com/Tanteli/imx-starknet/internal/manifest"
	"github.com/Tanteli/imx-starknet/internal/resolver"
	"github.com/Tanteli/imx-starknet/internal/source"
)

// Fetcher maps pinned packages onto the source kind that can materialize
// them. It doubles as the resolver's SourceResolver, so resolution and
// installation share the content cache.
type Fetcher struct {
	// Registry downloads published archives.
	Registry source.Downloader
	// CacheDir is the content cache root.
	CacheDir string
	// BaseDir anchors relative path dependencies, normally the directory
	// of the root manifest.
	BaseDir string
}

// Fetch materializes one pinned package.
func (f *Fetcher) Fetch(ctx context.Context, sel resolver.Selected) (*source.Fetched, error) {
	req := source.Request{Name: sel.Name, Version: sel.Version, Integrity: sel.Integrity}
	switch sel.Source {
	case manifest.SourceRegistry:
		return source.NewRegistry(f.Registry, f.CacheDir).Fetch(ctx, req)
	case manifest.SourceGit:
		return source.NewGit(sel.URL, f.CacheDir).Fetch(ctx, req)
	case manifest.SourcePath:
		// Local trees are expected to drift between resolutions; the lock
		// records their hash but installs never fail on it.
		req.Integrity = ""
		return source.NewLocal(sel.URL, f.BaseDir).Fetch(ctx, req)
	default:
		return nil, fmt.Errorf("package %s has unknown source %q", sel.Name, sel.Source)
	}
}

// ResolveSource loads the manifest behind a git or path dependency.
func (f *Fetcher) ResolveSource(ctx context.Context, dep manifest.Dependency) (*manifest.Descriptor, string, error) {
	req := source.Request{Name: dep.Name}
	var (
		fetched *source.Fetched
		err     error
	)
	switch dep.Source {
	case manifest.SourceGit:
		fetched, err = source.NewGit(dep.Git, f.CacheDir).Fetch(ctx, req)
	case manifest.SourcePath:
		fetched, err = source.NewLocal(dep.Path, f.BaseDir).Fetch(ctx, req)
	default:
		return nil, "", fmt.Errorf("dependency %s has no fetchable source", dep.Name)
	}
	if err != nil {
		return nil, "", err
	}
	return fetched.Manifest, fetched.Integrity, nil
}
