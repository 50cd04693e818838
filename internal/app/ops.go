package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Tanteli/imx-starknet/internal/feed"
	"github.com/Tanteli/imx-starknet/internal/index"
	"github.com/Tanteli/imx-starknet/internal/installer"
	"github.com/Tanteli/imx-starknet/internal/lockfile"
	"github.com/Tanteli/imx-starknet/internal/manifest"
	"github.com/Tanteli/imx-starknet/internal/resolver"
	"github.com/Tanteli/imx-starknet/internal/source"
	"github.com/Tanteli/imx-starknet/internal/store"
	"github.com/Tanteli/imx-starknet/internal/version"
)

// InitOptions holds the identity fields of a new manifest.
type InitOptions struct {
	Name        string
	Version     string
	Description string
	Author      string
	License     string
	URL         string
	Namespaces  []string
	IncludeData bool
}

// Init authors a manifest in dir. It refuses to overwrite an existing one.
func (a *App) Init(ctx context.Context, dir string, opts InitOptions) (*manifest.Descriptor, error) {
	path := filepath.Join(dir, manifest.Filename)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s already exists", path)
	}

	namespaces := opts.Namespaces
	if len(namespaces) == 0 {
		namespaces = []string{defaultNamespace(opts.Name)}
	}
	d := &manifest.Descriptor{
		Name:        opts.Name,
		Version:     opts.Version,
		Description: opts.Description,
		URL:         opts.URL,
		Author:      opts.Author,
		License:     opts.License,
		Namespaces:  namespaces,
		IncludeData: opts.IncludeData,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := manifest.Save(d, dir); err != nil {
		return nil, err
	}
	a.logger.Info("Manifest created.", "package", d.Name, "path", path)
	return d, nil
}

// defaultNamespace derives a namespace from the package name: lowercased,
// with every character a namespace cannot hold folded to '_'.
func defaultNamespace(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	ns := strings.Trim(b.String(), "_")
	if ns == "" || ns[0] < 'a' || ns[0] > 'z' {
		return "main"
	}
	return ns
}

// LockState describes how the lock file relates to the manifest.
type LockState string

const (
	// LockAbsent means no lock file exists yet.
	LockAbsent LockState = "absent"
	// LockFresh means the lock file still covers the manifest.
	LockFresh LockState = "fresh"
	// LockStale means the manifest changed since the lock was written.
	LockStale LockState = "stale"
)

// Check loads and validates the manifest in dir and reports the lock state.
func (a *App) Check(ctx context.Context, dir string) (*manifest.Descriptor, LockState, error) {
	d, err := manifest.Load(ctx, dir)
	if err != nil {
		return nil, "", err
	}
	if err := d.Validate(); err != nil {
		return nil, "", err
	}

	l, err := lockfile.Load(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return d, LockAbsent, nil
	case err != nil:
		return nil, "", err
	case l.Covers(d):
		return d, LockFresh, nil
	default:
		return d, LockStale, nil
	}
}

// Show loads the manifest in dir without validating it, so that a broken
// manifest can still be inspected.
func (a *App) Show(ctx context.Context, dir string) (*manifest.Descriptor, error) {
	return manifest.Load(ctx, dir)
}

// AddDependency inserts or replaces a dependency declaration and saves the
// manifest.
func (a *App) AddDependency(ctx context.Context, dir string, dep manifest.Dependency) (*manifest.Descriptor, error) {
	d, err := manifest.Load(ctx, dir)
	if err != nil {
		return nil, err
	}

	replaced := false
	for i := range d.Dependencies {
		if d.Dependencies[i].Name == dep.Name {
			d.Dependencies[i] = dep
			replaced = true
			break
		}
	}
	if !replaced {
		d.Dependencies = append(d.Dependencies, dep)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := manifest.Save(d, dir); err != nil {
		return nil, err
	}
	a.logger.Info("Dependency declared.", "package", d.Name, "dependency", dep.Name, "source", dep.Source)
	return d, nil
}

// RemoveDependency drops a dependency declaration and saves the manifest.
func (a *App) RemoveDependency(ctx context.Context, dir, name string) (*manifest.Descriptor, error) {
	d, err := manifest.Load(ctx, dir)
	if err != nil {
		return nil, err
	}

	kept := make([]manifest.Dependency, 0, len(d.Dependencies))
	found := false
	for _, dep := range d.Dependencies {
		if dep.Name == name {
			found = true
			continue
		}
		kept = append(kept, dep)
	}
	if !found {
		return nil, fmt.Errorf("%s does not depend on %s", d.Name, name)
	}
	d.Dependencies = kept

	if err := manifest.Save(d, dir); err != nil {
		return nil, err
	}
	a.logger.Info("Dependency removed.", "package", d.Name, "dependency", name)
	return d, nil
}

// Bump raises the manifest version by the named part and saves it. It
// returns the updated descriptor and the previous version.
func (a *App) Bump(ctx context.Context, dir, part string) (*manifest.Descriptor, string, error) {
	d, err := manifest.Load(ctx, dir)
	if err != nil {
		return nil, "", err
	}
	previous := d.Version
	next, err := version.Bump(previous, part)
	if err != nil {
		return nil, "", err
	}
	d.Version = next
	if err := manifest.Save(d, dir); err != nil {
		return nil, "", err
	}
	a.logger.Info("Version bumped.", "package", d.Name, "from", previous, "to", next)
	return d, previous, nil
}

// Lock resolves the manifest in dir and writes imxpkg.lock.
func (a *App) Lock(ctx context.Context, dir string, refresh bool) (*lockfile.Lockfile, error) {
	d, err := manifest.Load(ctx, dir)
	if err != nil {
		return nil, err
	}
	res, err := a.resolve(ctx, dir, d, refresh)
	if err != nil {
		return nil, err
	}
	l := res.Lock()
	if err := lockfile.Save(l, dir); err != nil {
		return nil, err
	}
	a.logger.Info("Lock file written.", "package", d.Name, "packages", len(l.Resolved))
	return l, nil
}

func (a *App) resolve(ctx context.Context, dir string, d *manifest.Descriptor, refresh bool) (*resolver.Resolution, error) {
	ix, err := a.Index(ctx, refresh)
	if err != nil {
		return nil, err
	}
	return resolver.New(ix, a.fetcher(dir)).Resolve(ctx, d)
}

// Install vendors the manifest's dependency closure under dir. A lock file
// that still covers the manifest pins the set exactly; otherwise the set is
// resolved and the lock rewritten first.
func (a *App) Install(ctx context.Context, dir string, refresh bool) (*resolver.Resolution, error) {
	d, err := manifest.Load(ctx, dir)
	if err != nil {
		return nil, err
	}

	var res *resolver.Resolution
	l, err := lockfile.Load(dir)
	switch {
	case err == nil && !refresh && l.Covers(d):
		a.logger.Debug("Installing from lock file.", "package", d.Name)
		res, err = resolver.FromLock(d, l)
		if err != nil {
			return nil, err
		}
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return nil, err
	default:
		res, err = a.resolve(ctx, dir, d, refresh)
		if err != nil {
			return nil, err
		}
		if err := lockfile.Save(res.Lock(), dir); err != nil {
			return nil, err
		}
		a.logger.Info("Lock file written.", "package", d.Name, "packages", len(res.Order))
	}

	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	ins := installer.New(a.fetcher(dir), st, filepath.Join(dir, installer.VendorDir), a.config.Workers)
	if err := ins.Run(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// List returns every package recorded as installed, ordered by name.
func (a *App) List(ctx context.Context) ([]store.InstalledPackage, error) {
	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	return st.ListInstalled(ctx)
}

// Search returns the latest available version of every indexed package
// matching term.
func (a *App) Search(ctx context.Context, term string, refresh bool) ([]index.Entry, error) {
	ix, err := a.Index(ctx, refresh)
	if err != nil {
		return nil, err
	}
	return ix.Search(term), nil
}

// Publish archives the package in dir and pushes it to the registry. When
// the manifest declares include_data every file ships; otherwise only the
// manifest and Cairo sources do.
func (a *App) Publish(ctx context.Context, dir string) (*index.Entry, error) {
	d, err := manifest.Load(ctx, dir)
	if err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	// The index records dependencies as name plus constraint only, so a
	// published package must not require anything the index cannot express.
	for _, dep := range d.Dependencies {
		if dep.Source != manifest.SourceRegistry {
			return nil, fmt.Errorf("cannot publish %s: dependency %s is declared from a %s source, published packages may only depend on registry packages",
				d.Name, dep.Name, dep.Source)
		}
	}

	var keep func(string) bool
	if !d.IncludeData {
		keep = func(rel string) bool { return strings.HasSuffix(rel, ".cairo") }
	}
	archive, err := source.PackFiltered(dir, keep)
	if err != nil {
		return nil, err
	}

	entry, err := a.Registry().Publish(ctx, d, archive)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Package published.", "package", entry.Name, "version", entry.Version, "integrity", entry.Integrity)
	a.mergeIndexEntry(*entry)
	return entry, nil
}

// mergeIndexEntry folds a fresh entry into the cached index, best-effort.
func (a *App) mergeIndexEntry(e index.Entry) {
	cached := filepath.Join(a.config.Home, index.Filename)
	ix, err := index.ReadFile(cached)
	if err != nil {
		return
	}
	ix.Add(e)
	if err := a.writeIndex(ix, cached); err != nil {
		a.logger.Warn("Failed to update cached index.", "path", cached, "error", err)
	}
}

// Yank marks a published version yanked so that new resolutions skip it.
func (a *App) Yank(ctx context.Context, name, ver string) error {
	if _, err := version.Parse(ver); err != nil {
		return err
	}
	if err := a.Registry().Yank(ctx, name, ver); err != nil {
		return err
	}
	a.logger.Info("Version yanked.", "package", name, "version", ver)

	cached := filepath.Join(a.config.Home, index.Filename)
	if ix, err := index.ReadFile(cached); err == nil && ix.Yank(name, ver) {
		if err := a.writeIndex(ix, cached); err != nil {
			a.logger.Warn("Failed to update cached index.", "path", cached, "error", err)
		}
	}
	return nil
}

// Watch subscribes to the registry's live event feed.
func (a *App) Watch(ctx context.Context) (<-chan feed.Event, error) {
	return feed.Watch(ctx, feed.Options{URL: a.config.RegistryURL})
}
