package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tanteli/imx-starknet/internal/index"
	"github.com/Tanteli/imx-starknet/internal/lockfile"
	"github.com/Tanteli/imx-starknet/internal/manifest"
)

var published = time.Date(2022, 4, 11, 9, 0, 0, 0, time.UTC)

func entry(name, ver, integrity string, deps ...index.Requirement) index.Entry {
	return index.Entry{
		Name:         name,
		Version:      ver,
		Integrity:    integrity,
		PublishedAt:  published,
		Dependencies: deps,
	}
}

func buildIndex(entries ...index.Entry) *index.Index {
	ix := index.New()
	for _, e := range entries {
		ix.Add(e)
	}
	return ix
}

func root(deps ...manifest.Dependency) *manifest.Descriptor {
	return &manifest.Descriptor{
		Name:         "immutablex-starknet",
		Version:      "0.1.0",
		Description:  "Immutable X StarkNet Contracts",
		Author:       "Immutable",
		License:      "Apache-2.0",
		Namespaces:   []string{"immutablex"},
		Dependencies: deps,
	}
}

func registryDep(name, constraint string) manifest.Dependency {
	return manifest.Dependency{Name: name, Constraint: constraint, Source: manifest.SourceRegistry}
}

type fakeSources struct {
	manifests map[string]*manifest.Descriptor
	integrity map[string]string
	calls     int
}

func (f *fakeSources) ResolveSource(ctx context.Context, dep manifest.Dependency) (*manifest.Descriptor, string, error) {
	f.calls++
	key := dep.Git + dep.Path
	d, ok := f.manifests[key]
	if !ok {
		return nil, "", fmt.Errorf("no such source %s", key)
	}
	return d, f.integrity[key], nil
}

func canonicalIndex() *index.Index {
	return buildIndex(
		entry("cairolib", "0.2.0", "sha256-c020"),
		entry("cairolib", "0.3.0", "sha256-c030"),
		entry("openzeppelin-cairo-contracts", "0.5.0", "sha256-o050", index.Requirement{Name: "cairolib", Constraint: ">=0.2.0"}),
		entry("openzeppelin-cairo-contracts", "0.6.1", "sha256-o061", index.Requirement{Name: "cairolib", Constraint: ">=0.2.0"}),
	)
}

func TestResolveCanonicalManifest(t *testing.T) {
	r := New(canonicalIndex(), nil)
	res, err := r.Resolve(context.Background(), root(
		registryDep("openzeppelin-cairo-contracts", ""),
		registryDep("cairolib", ""),
	))
	require.NoError(t, err)

	require.Len(t, res.Selected, 2)
	assert.Equal(t, "0.6.1", res.Selected["openzeppelin-cairo-contracts"].Version)
	assert.Equal(t, "0.3.0", res.Selected["cairolib"].Version)
	assert.Equal(t, "sha256-c030", res.Selected["cairolib"].Integrity)
	assert.Equal(t, manifest.SourceRegistry, res.Selected["cairolib"].Source)

	// cairolib installs before the package that depends on it.
	assert.Equal(t, []string{"cairolib", "openzeppelin-cairo-contracts"}, res.Order)
}

func TestResolveEmptyDependencySet(t *testing.T) {
	r := New(buildIndex(), nil)
	res, err := r.Resolve(context.Background(), root())
	require.NoError(t, err)
	assert.Empty(t, res.Selected)
	assert.Empty(t, res.Order)
}

func TestResolveConstraintNarrowing(t *testing.T) {
	r := New(canonicalIndex(), nil)
	res, err := r.Resolve(context.Background(), root(
		registryDep("openzeppelin-cairo-contracts", ""),
		registryDep("cairolib", "<0.3.0"),
	))
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", res.Selected["cairolib"].Version)
}

func TestResolveRepicksWhenConstraintsTighten(t *testing.T) {
	// aaa 2.0.0 wants bbb >=2, but ccc forces aaa below 2.0.0, whose
	// dependency set wants bbb below 2 instead. The first round picks
	// aaa 2.0.0 tentatively; later rounds must settle on aaa 1.0.0 and
	// re-pick bbb accordingly.
	ix := buildIndex(
		entry("aaa", "1.0.0", "sha256-a1", index.Requirement{Name: "bbb", Constraint: "<2.0.0"}),
		entry("aaa", "2.0.0", "sha256-a2", index.Requirement{Name: "bbb", Constraint: ">=2.0.0"}),
		entry("bbb", "1.0.0", "sha256-b1"),
		entry("bbb", "1.5.0", "sha256-b15"),
		entry("bbb", "2.0.0", "sha256-b2"),
		entry("ccc", "1.0.0", "sha256-c1", index.Requirement{Name: "aaa", Constraint: "<2.0.0"}),
	)

	r := New(ix, nil)
	res, err := r.Resolve(context.Background(), root(
		registryDep("aaa", ""),
		registryDep("ccc", ""),
	))
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", res.Selected["aaa"].Version)
	assert.Equal(t, "1.5.0", res.Selected["bbb"].Version)
	assert.Equal(t, "1.0.0", res.Selected["ccc"].Version)
}

func TestResolveConflict(t *testing.T) {
	ix := buildIndex(
		entry("ddd", "1.0.0", "sha256-d1"),
		entry("ddd", "2.0.0", "sha256-d2"),
		entry("eee", "1.0.0", "sha256-e1", index.Requirement{Name: "ddd", Constraint: "<2.0.0"}),
	)

	r := New(ix, nil)
	_, err := r.Resolve(context.Background(), root(
		registryDep("ddd", ">=2.0.0"),
		registryDep("eee", ""),
	))
	require.Error(t, err)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "ddd", conflict.Name)
	assert.Contains(t, err.Error(), "eee requires <2.0.0")
	assert.Contains(t, err.Error(), "immutablex-starknet requires >=2.0.0")
}

func TestResolveUnknownPackage(t *testing.T) {
	r := New(canonicalIndex(), nil)
	_, err := r.Resolve(context.Background(), root(registryDep("ghost", "")))
	require.Error(t, err)

	var unknown *UnknownPackageError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Name)
}

func TestResolveAllVersionsYanked(t *testing.T) {
	ix := canonicalIndex()
	ix.Add(index.Entry{Name: "dead", Version: "1.0.0", Yanked: true, PublishedAt: published})

	r := New(ix, nil)
	_, err := r.Resolve(context.Background(), root(registryDep("dead", "")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every published version of dead is yanked")
}

func TestResolveSkipsYankedVersions(t *testing.T) {
	ix := buildIndex(
		entry("fff", "1.0.0", "sha256-f1"),
		index.Entry{Name: "fff", Version: "1.1.0", Yanked: true, PublishedAt: published},
	)

	r := New(ix, nil)
	res, err := r.Resolve(context.Background(), root(registryDep("fff", "")))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", res.Selected["fff"].Version)
}

func TestResolveGitDependency(t *testing.T) {
	src := &fakeSources{
		manifests: map[string]*manifest.Descriptor{
			"github.com/example/starkware-utils": {
				Name:        "starkware-utils",
				Version:     "1.2.0",
				Description: "utilities",
				Author:      "someone",
				License:     "MIT",
				Namespaces:  []string{"starkware"},
				Dependencies: []manifest.Dependency{
					registryDep("cairolib", ">=0.2.0"),
				},
			},
		},
		integrity: map[string]string{"github.com/example/starkware-utils": "sha256-git"},
	}

	r := New(canonicalIndex(), src)
	res, err := r.Resolve(context.Background(), root(manifest.Dependency{
		Name:       "starkware-utils",
		Constraint: ">=1.0.0",
		Source:     manifest.SourceGit,
		Git:        "github.com/example/starkware-utils",
	}))
	require.NoError(t, err)

	sel := res.Selected["starkware-utils"]
	assert.Equal(t, "1.2.0", sel.Version)
	assert.Equal(t, manifest.SourceGit, sel.Source)
	assert.Equal(t, "github.com/example/starkware-utils", sel.URL)
	assert.Equal(t, "sha256-git", sel.Integrity)

	assert.Equal(t, "0.3.0", res.Selected["cairolib"].Version)
	assert.Equal(t, []string{"cairolib", "starkware-utils"}, res.Order)

	// The source was fetched once, not once per round.
	assert.Equal(t, 1, src.calls)
}

func TestResolveGitVersionViolatesConstraint(t *testing.T) {
	src := &fakeSources{
		manifests: map[string]*manifest.Descriptor{
			"github.com/example/starkware-utils": {
				Name:        "starkware-utils",
				Version:     "1.2.0",
				Description: "utilities",
				Author:      "someone",
				License:     "MIT",
				Namespaces:  []string{"starkware"},
			},
		},
		integrity: map[string]string{"github.com/example/starkware-utils": "sha256-git"},
	}

	r := New(canonicalIndex(), src)
	_, err := r.Resolve(context.Background(), root(manifest.Dependency{
		Name:       "starkware-utils",
		Constraint: "<1.0.0",
		Source:     manifest.SourceGit,
		Git:        "github.com/example/starkware-utils",
	}))
	require.Error(t, err)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "1.2.0", conflict.Version)
	assert.Contains(t, err.Error(), "version 1.2.0 of starkware-utils does not satisfy")
}

func TestResolvePathDependency(t *testing.T) {
	src := &fakeSources{
		manifests: map[string]*manifest.Descriptor{
			"../local-utils": {
				Name:        "local-utils",
				Version:     "0.0.1",
				Description: "workspace sibling",
				Author:      "someone",
				License:     "MIT",
				Namespaces:  []string{"local"},
			},
		},
		integrity: map[string]string{"../local-utils": "sha256-path"},
	}

	r := New(canonicalIndex(), src)
	res, err := r.Resolve(context.Background(), root(manifest.Dependency{
		Name:   "local-utils",
		Source: manifest.SourcePath,
		Path:   "../local-utils",
	}))
	require.NoError(t, err)

	sel := res.Selected["local-utils"]
	assert.Equal(t, manifest.SourcePath, sel.Source)
	assert.Equal(t, "../local-utils", sel.URL)
	assert.Equal(t, "sha256-path", sel.Integrity)
}

func TestResolveConflictingSources(t *testing.T) {
	src := &fakeSources{
		manifests: map[string]*manifest.Descriptor{
			"github.com/example/wrapper": {
				Name:        "wrapper",
				Version:     "1.0.0",
				Description: "wrapper",
				Author:      "someone",
				License:     "MIT",
				Namespaces:  []string{"wrapper"},
				Dependencies: []manifest.Dependency{
					{Name: "cairolib", Source: manifest.SourceGit, Git: "github.com/example/cairolib"},
				},
			},
		},
	}

	r := New(canonicalIndex(), src)
	_, err := r.Resolve(context.Background(), root(
		registryDep("cairolib", ""),
		manifest.Dependency{Name: "wrapper", Source: manifest.SourceGit, Git: "github.com/example/wrapper"},
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicting sources")
	assert.Contains(t, err.Error(), "cairolib")
}

func TestResolveCycleRejected(t *testing.T) {
	ix := buildIndex(
		entry("ppp", "1.0.0", "sha256-p", index.Requirement{Name: "qqq"}),
		entry("qqq", "1.0.0", "sha256-q", index.Requirement{Name: "ppp"}),
	)

	r := New(ix, nil)
	_, err := r.Resolve(context.Background(), root(registryDep("ppp", "")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestResolveDependencyOnRootRejected(t *testing.T) {
	ix := buildIndex(
		entry("rrr", "1.0.0", "sha256-r", index.Requirement{Name: "immutablex-starknet"}),
	)

	r := New(ix, nil)
	_, err := r.Resolve(context.Background(), root(registryDep("rrr", "")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the package being resolved")
}

func TestResolveGitWithoutSourceResolver(t *testing.T) {
	r := New(canonicalIndex(), nil)
	_, err := r.Resolve(context.Background(), root(manifest.Dependency{
		Name:   "starkware-utils",
		Source: manifest.SourceGit,
		Git:    "github.com/example/starkware-utils",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source resolver is configured")
}

func TestResolveInvalidRootManifest(t *testing.T) {
	bad := root()
	bad.Version = "not-semver"

	r := New(canonicalIndex(), nil)
	_, err := r.Resolve(context.Background(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a semantic version")
}

func TestResolutionLock(t *testing.T) {
	r := New(canonicalIndex(), nil)
	res, err := r.Resolve(context.Background(), root(
		registryDep("openzeppelin-cairo-contracts", ""),
		registryDep("cairolib", ""),
	))
	require.NoError(t, err)

	l := res.Lock()
	assert.Equal(t, "immutablex-starknet", l.Package)
	assert.Equal(t, []string{"cairolib", "openzeppelin-cairo-contracts"}, l.Names())

	pinned, ok := l.Entry("openzeppelin-cairo-contracts")
	require.True(t, ok)
	assert.Equal(t, "0.6.1", pinned.Version)
	assert.Equal(t, "sha256-o061", pinned.Integrity)
	assert.Equal(t, []string{"cairolib"}, pinned.Dependencies)

	// Locking twice yields identical bytes.
	a, err := res.Lock().Encode()
	require.NoError(t, err)
	b, err := res.Lock().Encode()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestResolveErrorsDoNotPanicOnErrorsIs(t *testing.T) {
	err := error(&UnknownPackageError{Name: "ghost"})
	assert.False(t, errors.Is(err, context.Canceled))
	assert.Equal(t, "package ghost is not in the registry index", err.Error())
}

func TestFromLockRebuildsResolution(t *testing.T) {
	r := New(canonicalIndex(), nil)
	rootDesc := root(
		registryDep("openzeppelin-cairo-contracts", ""),
		registryDep("cairolib", ""),
	)
	res, err := r.Resolve(context.Background(), rootDesc)
	require.NoError(t, err)

	rebuilt, err := FromLock(rootDesc, res.Lock())
	require.NoError(t, err)
	assert.Equal(t, res.Order, rebuilt.Order)
	assert.Equal(t, res.Selected, rebuilt.Selected)
}

func TestFromLockRejectsStaleLock(t *testing.T) {
	r := New(canonicalIndex(), nil)
	res, err := r.Resolve(context.Background(), root(registryDep("cairolib", "")))
	require.NoError(t, err)
	l := res.Lock()

	// The manifest grew a dependency the lock never pinned.
	_, err = FromLock(root(
		registryDep("cairolib", ""),
		registryDep("openzeppelin-cairo-contracts", ""),
	), l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer matches")

	// A tightened constraint past the pinned version is stale too.
	_, err = FromLock(root(registryDep("cairolib", ">=0.4.0")), l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer matches")
}

func TestFromLockRejectsInconsistentEntries(t *testing.T) {
	l := lockfile.New("immutablex-starknet")
	l.Add(lockfile.Resolved{
		Name:         "cairolib",
		Version:      "0.3.0",
		Source:       manifest.SourceRegistry,
		Dependencies: []string{"ghost"},
	})

	_, err := FromLock(root(registryDep("cairolib", "")), l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lost track of ghost")
}
