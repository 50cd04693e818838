// Package lockfile reads and writes imxpkg.lock, the reproducible snapshot
// of a fully resolved dependency set.
package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Tanteli/imx-starknet/internal/manifest"
	"github.com/Tanteli/imx-starknet/internal/version"
)

// Filename is the lock file name written next to the package manifest.
const Filename = "imxpkg.lock"

// FormatVersion is the current lock file schema version. Readers reject
// versions they do not understand instead of guessing.
const FormatVersion = 1

// Resolved pins one dependency of the transitive closure to an exact
// version, source and content hash.
type Resolved struct {
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	Source       manifest.SourceKind `json:"source"`
	URL          string              `json:"url,omitempty"`
	Integrity    string              `json:"integrity,omitempty"`
	Dependencies []string            `json:"dependencies,omitempty"`
}

// Lockfile is the persisted resolution result for one package.
type Lockfile struct {
	FormatVersion int        `json:"format_version"`
	Package       string     `json:"package"`
	Resolved      []Resolved `json:"resolved"`
}

// New builds an empty lock file for the named package.
func New(pkg string) *Lockfile {
	return &Lockfile{FormatVersion: FormatVersion, Package: pkg}
}

// Add inserts or replaces the entry for r.Name.
func (l *Lockfile) Add(r Resolved) {
	for i, have := range l.Resolved {
		if have.Name == r.Name {
			l.Resolved[i] = r
			return
		}
	}
	l.Resolved = append(l.Resolved, r)
}

// Entry returns the pinned entry for name, if present.
func (l *Lockfile) Entry(name string) (Resolved, bool) {
	for _, r := range l.Resolved {
		if r.Name == name {
			return r, true
		}
	}
	return Resolved{}, false
}

// Names returns the pinned package names in name order.
func (l *Lockfile) Names() []string {
	names := make([]string, 0, len(l.Resolved))
	for _, r := range l.Resolved {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// Covers reports whether the lock file still matches the manifest: same
// package, every declared dependency pinned at a version its constraint
// admits, and declared sources unchanged. A lock that no longer covers its
// manifest is stale and must be rebuilt.
func (l *Lockfile) Covers(d *manifest.Descriptor) bool {
	if l.Package != d.Name {
		return false
	}
	for _, dep := range d.Dependencies {
		r, ok := l.Entry(dep.Name)
		if !ok || r.Source != dep.Source {
			return false
		}
		switch dep.Source {
		case manifest.SourceGit:
			if r.URL != dep.Git {
				return false
			}
		case manifest.SourcePath:
			if r.URL != dep.Path {
				return false
			}
		}
		if dep.Constraint != "" {
			c, err := version.ParseConstraint(dep.Constraint)
			if err != nil {
				return false
			}
			v, err := version.Parse(r.Version)
			if err != nil || !c.Check(v) {
				return false
			}
		}
	}
	return true
}

// normalize sorts entries and their dependency lists so that encoding the
// same resolution twice produces identical bytes.
func (l *Lockfile) normalize() {
	sort.Slice(l.Resolved, func(i, j int) bool { return l.Resolved[i].Name < l.Resolved[j].Name })
	for _, r := range l.Resolved {
		sort.Strings(r.Dependencies)
	}
}

// Encode renders the lock file as indented JSON with a trailing newline.
func (l *Lockfile) Encode() ([]byte, error) {
	l.normalize()
	out, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode lock file: %w", err)
	}
	return append(out, '\n'), nil
}

// Decode parses lock file bytes and checks the format version.
func Decode(src []byte) (*Lockfile, error) {
	var l Lockfile
	if err := json.Unmarshal(src, &l); err != nil {
		return nil, fmt.Errorf("failed to decode lock file: %w", err)
	}
	if l.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported lock file format version %d (want %d)", l.FormatVersion, FormatVersion)
	}
	l.normalize()
	return &l, nil
}

// Load reads the lock file at dir. dir may name the file itself or the
// package directory containing an imxpkg.lock.
func Load(dir string) (*Lockfile, error) {
	path := dir
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		path = filepath.Join(dir, Filename)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}
	return Decode(src)
}

// Save writes the lock file into dir atomically, replacing any previous one.
func Save(l *Lockfile, dir string) error {
	path := dir
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		path = filepath.Join(dir, Filename)
	}

	out, err := l.Encode()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return nil
}
