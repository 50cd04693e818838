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

// Downloader is the slice of the registry client the source needs.
type Downloader interface {
	Download(ctx context.Context, name, ver string) ([]byte, error)
}

// Registry fetches published archives from the package registry, keeping an
// extracted copy of each version under the content cache.
type Registry struct {
	client Downloader
	cache  string
}

// NewRegistry returns a source backed by the given registry client.
func NewRegistry(client Downloader, cacheDir string) *Registry {
	return &Registry{client: client, cache: cacheDir}
}

// Fetch returns the cached tree of req.Name at req.Version, downloading and
// extracting the archive on a cache miss. A cached tree that no longer
// hashes to the expected integrity is discarded and fetched again.
func (r *Registry) Fetch(ctx context.Context, req Request) (*Fetched, error) {
	if req.Version == "" {
		return nil, fmt.Errorf("registry fetch of %s needs an exact version", req.Name)
	}
	logger := ctxlog.FromContext(ctx)
	dir := filepath.Join(r.cache, "registry", req.Name, req.Version)

	if f, err := r.fromCache(ctx, dir, req); err == nil {
		logger.Debug("Package tree served from cache.", "package", req.Name, "version", req.Version)
		return f, nil
	} else if !os.IsNotExist(err) {
		logger.Warn("Discarding unusable cached tree.", "package", req.Name, "version", req.Version, "error", err)
		os.RemoveAll(dir)
	}

	archive, err := r.client.Download(ctx, req.Name, req.Version)
	if err != nil {
		return nil, err
	}

	// Extract next to the final location, then rename, so a failed extract
	// never masquerades as a cached tree.
	tmp := dir + ".tmp"
	os.RemoveAll(tmp)
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := Unpack(archive, tmp); err != nil {
		os.RemoveAll(tmp)
		return nil, fmt.Errorf("failed to extract %s@%s: %w", req.Name, req.Version, err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		os.RemoveAll(tmp)
		return nil, fmt.Errorf("failed to move %s@%s into cache: %w", req.Name, req.Version, err)
	}

	f, err := r.load(ctx, dir, req)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	logger.Debug("Package tree downloaded.", "package", req.Name, "version", req.Version, "integrity", f.Integrity)
	return f, nil
}

// fromCache loads dir as a fetched tree, or an os.IsNotExist error when the
// version was never cached.
func (r *Registry) fromCache(ctx context.Context, dir string, req Request) (*Fetched, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	return r.load(ctx, dir, req)
}

func (r *Registry) load(ctx context.Context, dir string, req Request) (*Fetched, error) {
	desc, err := manifest.Load(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("archive of %s@%s carries no usable manifest: %w", req.Name, req.Version, err)
	}
	integrity, err := fsutil.HashTree(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s@%s: %w", req.Name, req.Version, err)
	}

	f := &Fetched{Path: dir, Integrity: integrity, Manifest: desc}
	if err := checkFetched(f, req); err != nil {
		return nil, err
	}
	return f, nil
}
