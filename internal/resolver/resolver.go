// Package resolver turns a package manifest into a complete, pinned
// dependency set. Registry dependencies resolve against the index,
// pick-highest under every accumulated constraint; git and path dependencies
// contribute whatever version their fetched manifest declares, which the
// constraints then have to admit.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/Tanteli/imx-starknet/internal/ctxlog"
	"github.com/Tanteli/imx-starknet/internal/depgraph"
	"github.com/Tanteli/imx-starknet/internal/index"
	"github.com/Tanteli/imx-starknet/internal/lockfile"
	"github.com/Tanteli/imx-starknet/internal/manifest"
	"github.com/Tanteli/imx-starknet/internal/version"
)

// maxRounds bounds the walk-and-repick loop. Constraint sets settle within
// a handful of rounds on anything sane; hitting the bound means the inputs
// keep flipping selections and resolution must fail rather than spin.
const maxRounds = 32

// SourceResolver loads the manifest behind a git or path dependency and
// reports the integrity of its tree.
type SourceResolver interface {
	ResolveSource(ctx context.Context, dep manifest.Dependency) (*manifest.Descriptor, string, error)
}

// Selected is one pinned package of a resolution.
type Selected struct {
	Name         string
	Version      string
	Source       manifest.SourceKind
	URL          string
	Integrity    string
	Dependencies []string
}

// Resolution is the complete pinned dependency set of one root manifest.
type Resolution struct {
	Root     *manifest.Descriptor
	Selected map[string]Selected
	// Order lists the selected packages so that every package appears
	// after all of its dependencies.
	Order []string
	Graph *depgraph.Graph
}

// Lock renders the resolution as a lock file.
func (res *Resolution) Lock() *lockfile.Lockfile {
	l := lockfile.New(res.Root.Name)
	for _, name := range sortedKeys(res.Selected) {
		s := res.Selected[name]
		l.Add(lockfile.Resolved{
			Name:         s.Name,
			Version:      s.Version,
			Source:       s.Source,
			URL:          s.URL,
			Integrity:    s.Integrity,
			Dependencies: append([]string(nil), s.Dependencies...),
		})
	}
	return l
}

// Resolver resolves manifests against one registry index.
type Resolver struct {
	ix  *index.Index
	src SourceResolver

	// fetched caches git/path manifests for the duration of one Resolve.
	fetched map[string]*fetchedSource
}

type fetchedSource struct {
	desc      *manifest.Descriptor
	integrity string
}

// New returns a resolver over the given index. src may be nil when the
// manifests involved declare no git or path dependencies.
func New(ix *index.Index, src SourceResolver) *Resolver {
	return &Resolver{ix: ix, src: src}
}

// Resolve pins every transitive dependency of root.
func (r *Resolver) Resolve(ctx context.Context, root *manifest.Descriptor) (*Resolution, error) {
	logger := ctxlog.FromContext(ctx)
	if err := root.Validate(); err != nil {
		return nil, err
	}
	r.fetched = make(map[string]*fetchedSource)

	selected := map[string]Selected{}
	for round := 0; round < maxRounds; round++ {
		next, err := r.walk(ctx, root, selected)
		if err != nil {
			return nil, err
		}
		if equalSelections(selected, next) {
			logger.Debug("Resolution settled.", "rounds", round+1, "packages", len(next))
			return finish(root, next)
		}
		selected = next
	}
	return nil, fmt.Errorf("dependency resolution did not settle after %d rounds", maxRounds)
}

// depRef is one dependency declaration in flight: the declaration itself
// plus the package that made it.
type depRef struct {
	dep manifest.Dependency
	by  string
}

// walk performs one resolution round: a breadth-first traversal from the
// root that accumulates constraints and source declarations, followed by a
// re-pick of every reachable package under the complete constraint set.
// prev supplies the versions that guide traversal, so each round expands
// the graph the previous round chose.
func (r *Resolver) walk(ctx context.Context, root *manifest.Descriptor, prev map[string]Selected) (map[string]Selected, error) {
	cons := map[string][]Requirement{}
	decl := map[string]manifest.Dependency{}
	expanded := map[string]bool{}

	queue := make([]depRef, 0, len(root.Dependencies))
	for _, d := range root.Dependencies {
		queue = append(queue, depRef{dep: d, by: root.Name})
	}

	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		name := ref.dep.Name

		if name == root.Name {
			return nil, fmt.Errorf("%s depends on %s, the package being resolved", ref.by, name)
		}

		cons[name] = append(cons[name], Requirement{RequiredBy: ref.by, Constraint: ref.dep.Constraint})

		if have, ok := decl[name]; ok {
			if !sameDecl(have, ref.dep) {
				return nil, fmt.Errorf("package %s is required from conflicting sources (%s and %s)",
					name, describeDecl(have), describeDecl(ref.dep))
			}
		} else {
			decl[name] = ref.dep
		}

		if expanded[name] {
			continue
		}
		expanded[name] = true

		children, err := r.expand(ctx, name, decl[name], cons[name], prev)
		if err != nil {
			return nil, err
		}
		queue = append(queue, children...)
	}

	// Re-pick everything under the complete constraint set.
	sel := make(map[string]Selected, len(cons))
	for _, name := range sortedKeys(cons) {
		s, err := r.pick(ctx, name, decl[name], cons[name])
		if err != nil {
			return nil, err
		}
		sel[name] = s
	}
	return sel, nil
}

// expand returns the dependency declarations of name at the version the
// previous round selected (or a tentative pick on first sight).
func (r *Resolver) expand(ctx context.Context, name string, d manifest.Dependency, reqs []Requirement, prev map[string]Selected) ([]depRef, error) {
	if d.Source != manifest.SourceRegistry {
		fs, err := r.sourceManifest(ctx, name, d)
		if err != nil {
			return nil, err
		}
		refs := make([]depRef, 0, len(fs.desc.Dependencies))
		for _, child := range fs.desc.Dependencies {
			refs = append(refs, depRef{dep: child, by: name})
		}
		return refs, nil
	}

	ver := ""
	if p, ok := prev[name]; ok && p.Source == manifest.SourceRegistry {
		ver = p.Version
	} else {
		picked, err := r.pickVersion(name, reqs)
		if err != nil {
			return nil, err
		}
		ver = picked
	}

	entry, ok := r.ix.Find(name, ver)
	if !ok {
		return nil, fmt.Errorf("index lost entry %s@%s mid-resolution", name, ver)
	}
	refs := make([]depRef, 0, len(entry.Dependencies))
	for _, req := range entry.Dependencies {
		refs = append(refs, depRef{
			dep: manifest.Dependency{Name: req.Name, Constraint: req.Constraint, Source: manifest.SourceRegistry},
			by:  name,
		})
	}
	return refs, nil
}

// pick pins name under the complete requirement set of this round.
func (r *Resolver) pick(ctx context.Context, name string, d manifest.Dependency, reqs []Requirement) (Selected, error) {
	if d.Source != manifest.SourceRegistry {
		fs, err := r.sourceManifest(ctx, name, d)
		if err != nil {
			return Selected{}, err
		}
		if err := verifyRequirements(name, fs.desc.Version, reqs); err != nil {
			return Selected{}, err
		}
		url := d.Git
		if d.Source == manifest.SourcePath {
			url = d.Path
		}
		return Selected{
			Name:         name,
			Version:      fs.desc.Version,
			Source:       d.Source,
			URL:          url,
			Integrity:    fs.integrity,
			Dependencies: fs.desc.DependencyNames(),
		}, nil
	}

	ver, err := r.pickVersion(name, reqs)
	if err != nil {
		return Selected{}, err
	}
	entry, _ := r.ix.Find(name, ver)
	deps := make([]string, 0, len(entry.Dependencies))
	for _, req := range entry.Dependencies {
		deps = append(deps, req.Name)
	}
	return Selected{
		Name:         name,
		Version:      ver,
		Source:       manifest.SourceRegistry,
		Integrity:    entry.Integrity,
		Dependencies: deps,
	}, nil
}

// pickVersion selects the highest non-yanked version of name admitted by
// every requirement.
func (r *Resolver) pickVersion(name string, reqs []Requirement) (string, error) {
	candidates := r.ix.Available(name)
	if len(candidates) == 0 {
		if len(r.ix.Versions(name)) > 0 {
			return "", fmt.Errorf("every published version of %s is yanked", name)
		}
		return "", &UnknownPackageError{Name: name}
	}

	exprs := make([]string, 0, len(reqs))
	for _, req := range reqs {
		exprs = append(exprs, req.Constraint)
	}
	ver, ok, err := version.Highest(candidates, exprs)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", name, err)
	}
	if !ok {
		return "", &ConflictError{Name: name, Requirements: dedupeRequirements(reqs)}
	}
	return ver, nil
}

// sourceManifest fetches (once per Resolve) the manifest behind a git or
// path declaration and validates it.
func (r *Resolver) sourceManifest(ctx context.Context, name string, d manifest.Dependency) (*fetchedSource, error) {
	key := string(d.Source) + "|" + d.Git + d.Path
	if fs, ok := r.fetched[key]; ok {
		return fs, nil
	}
	if r.src == nil {
		return nil, fmt.Errorf("package %s is required from a %s source, but no source resolver is configured", name, d.Source)
	}

	desc, integrity, err := r.src.ResolveSource(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s source of %s: %w", d.Source, name, err)
	}
	if desc.Name != name {
		return nil, fmt.Errorf("%s source of %s declares package %q", d.Source, name, desc.Name)
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("manifest of %s is invalid: %w", name, err)
	}

	fs := &fetchedSource{desc: desc, integrity: integrity}
	r.fetched[key] = fs
	return fs, nil
}

// finish validates the settled selection set and assembles the resolution.
func finish(root *manifest.Descriptor, sel map[string]Selected) (*Resolution, error) {
	g := depgraph.New()
	g.AddNode(root.Name)
	for name := range sel {
		g.AddNode(name)
	}
	for _, name := range sortedKeys(sel) {
		for _, dep := range sel[name].Dependencies {
			if _, ok := sel[dep]; !ok {
				return nil, fmt.Errorf("resolution lost track of %s, required by %s", dep, name)
			}
			if err := g.AddEdge(dep, name); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range root.Dependencies {
		if err := g.AddEdge(d.Name, root.Name); err != nil {
			return nil, err
		}
	}

	if err := g.DetectCycles(); err != nil {
		return nil, err
	}
	order, err := g.TopoSort()
	if err != nil {
		return nil, err
	}
	// The root is not installed; it only anchors the graph.
	deps := make([]string, 0, len(order)-1)
	for _, name := range order {
		if name != root.Name {
			deps = append(deps, name)
		}
	}

	return &Resolution{Root: root, Selected: sel, Order: deps, Graph: g}, nil
}

// verifyRequirements checks that a version fixed by its source satisfies
// every requirement placed on it.
func verifyRequirements(name, ver string, reqs []Requirement) error {
	var violated []Requirement
	for _, req := range reqs {
		if req.Constraint == "" {
			continue
		}
		c, err := version.ParseConstraint(req.Constraint)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		v, err := version.Parse(ver)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", name, err)
		}
		if !c.Check(v) {
			violated = append(violated, req)
		}
	}
	if len(violated) > 0 {
		return &ConflictError{Name: name, Version: ver, Requirements: dedupeRequirements(violated)}
	}
	return nil
}

func sameDecl(a, b manifest.Dependency) bool {
	return a.Source == b.Source && a.Git == b.Git && a.Path == b.Path
}

func describeDecl(d manifest.Dependency) string {
	switch d.Source {
	case manifest.SourceGit:
		return "git " + d.Git
	case manifest.SourcePath:
		return "path " + d.Path
	default:
		return "registry"
	}
}

func dedupeRequirements(reqs []Requirement) []Requirement {
	seen := make(map[Requirement]struct{}, len(reqs))
	out := make([]Requirement, 0, len(reqs))
	for _, req := range reqs {
		if _, ok := seen[req]; ok {
			continue
		}
		seen[req] = struct{}{}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequiredBy != out[j].RequiredBy {
			return out[i].RequiredBy < out[j].RequiredBy
		}
		return out[i].Constraint < out[j].Constraint
	})
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func equalSelections(a, b map[string]Selected) bool {
	if len(a) != len(b) {
		return false
	}
	for name, sa := range a {
		sb, ok := b[name]
		if !ok {
			return false
		}
		if sa.Version != sb.Version || sa.Source != sb.Source || sa.URL != sb.URL || sa.Integrity != sb.Integrity {
			return false
		}
		if len(sa.Dependencies) != len(sb.Dependencies) {
			return false
		}
		for i := range sa.Dependencies {
			if sa.Dependencies[i] != sb.Dependencies[i] {
				return false
			}
		}
	}
	return true
}
