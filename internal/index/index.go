// Package index models the registry package index: one entry per published
// package version, carrying everything a client needs to resolve and verify
// a dependency without downloading it first.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Tanteli/imx-starknet/internal/manifest"
	"github.com/Tanteli/imx-starknet/internal/version"
)

// Filename is the on-disk name of the cached index.
const Filename = "index.json"

// Requirement names one dependency of an indexed version, with the
// constraint its manifest declared.
type Requirement struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint,omitempty"`
}

// Entry describes one published version of one package.
type Entry struct {
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Description  string        `json:"description,omitempty"`
	URL          string        `json:"url,omitempty"`
	Author       string        `json:"author,omitempty"`
	License      string        `json:"license,omitempty"`
	Namespaces   []string      `json:"namespaces,omitempty"`
	Integrity    string        `json:"integrity,omitempty"`
	Yanked       bool          `json:"yanked,omitempty"`
	PublishedAt  time.Time     `json:"published_at"`
	Dependencies []Requirement `json:"dependencies,omitempty"`
}

// Index is the full registry listing, or a locally cached snapshot of it.
type Index struct {
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`
}

// New returns an empty index stamped with now.
func New() *Index {
	return &Index{GeneratedAt: time.Now().UTC()}
}

// FromDescriptor builds an index entry for a published descriptor.
func FromDescriptor(d *manifest.Descriptor, integrity string, at time.Time) Entry {
	e := Entry{
		Name:        d.Name,
		Version:     d.Version,
		Description: d.Description,
		URL:         d.URL,
		Author:      d.Author,
		License:     d.License,
		Namespaces:  append([]string(nil), d.Namespaces...),
		Integrity:   integrity,
		PublishedAt: at.UTC(),
	}
	for _, dep := range d.Dependencies {
		e.Dependencies = append(e.Dependencies, Requirement{Name: dep.Name, Constraint: dep.Constraint})
	}
	return e
}

// Add inserts the entry, replacing any existing entry with the same name and
// version. Publishing the same version twice is the registry's concern; the
// index just keeps the latest word.
func (ix *Index) Add(e Entry) {
	for i, have := range ix.Entries {
		if have.Name == e.Name && have.Version == e.Version {
			ix.Entries[i] = e
			return
		}
	}
	ix.Entries = append(ix.Entries, e)
}

// Find returns the entry for an exact package name and version.
func (ix *Index) Find(name, ver string) (Entry, bool) {
	for _, e := range ix.Entries {
		if e.Name == name && e.Version == ver {
			return e, true
		}
	}
	return Entry{}, false
}

// Versions returns every indexed version of the named package, yanked ones
// included, sorted ascending.
func (ix *Index) Versions(name string) []string {
	var out []string
	for _, e := range ix.Entries {
		if e.Name == name {
			out = append(out, e.Version)
		}
	}
	sortVersions(out)
	return out
}

// Available returns the versions of the named package that a resolver may
// select: everything not yanked, sorted ascending.
func (ix *Index) Available(name string) []string {
	var out []string
	for _, e := range ix.Entries {
		if e.Name == name && !e.Yanked {
			out = append(out, e.Version)
		}
	}
	sortVersions(out)
	return out
}

// Latest returns the highest non-yanked entry of the named package.
func (ix *Index) Latest(name string) (Entry, bool) {
	var (
		best  Entry
		found bool
	)
	for _, e := range ix.Entries {
		if e.Name != name || e.Yanked {
			continue
		}
		if !found {
			best, found = e, true
			continue
		}
		if cmp, err := version.Compare(e.Version, best.Version); err == nil && cmp > 0 {
			best = e
		}
	}
	return best, found
}

// Yank marks the given version of the named package as yanked. It reports
// whether the entry existed.
func (ix *Index) Yank(name, ver string) bool {
	for i, e := range ix.Entries {
		if e.Name == name && e.Version == ver {
			ix.Entries[i].Yanked = true
			return true
		}
	}
	return false
}

// Packages returns the distinct package names in the index, sorted.
func (ix *Index) Packages() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range ix.Entries {
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		out = append(out, e.Name)
	}
	sort.Strings(out)
	return out
}

// Search returns the latest non-yanked entry of every package whose name,
// description or namespaces contain term, case-insensitively. An empty term
// matches everything.
func (ix *Index) Search(term string) []Entry {
	term = strings.ToLower(term)
	var out []Entry
	for _, name := range ix.Packages() {
		latest, ok := ix.Latest(name)
		if !ok {
			continue
		}
		if term == "" || matches(latest, term) {
			out = append(out, latest)
		}
	}
	return out
}

func matches(e Entry, term string) bool {
	if strings.Contains(strings.ToLower(e.Name), term) {
		return true
	}
	if strings.Contains(strings.ToLower(e.Description), term) {
		return true
	}
	for _, ns := range e.Namespaces {
		if strings.Contains(strings.ToLower(ns), term) {
			return true
		}
	}
	return false
}

// Merge folds other into ix, entry by entry. Entries from other win on
// name/version collisions, and the younger GeneratedAt stamp is kept.
func (ix *Index) Merge(other *Index) {
	if other == nil {
		return
	}
	for _, e := range other.Entries {
		ix.Add(e)
	}
	if other.GeneratedAt.After(ix.GeneratedAt) {
		ix.GeneratedAt = other.GeneratedAt
	}
}

// normalize sorts entries by name, then version, so encoding is stable.
func (ix *Index) normalize() {
	sort.SliceStable(ix.Entries, func(i, j int) bool {
		a, b := ix.Entries[i], ix.Entries[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if cmp, err := version.Compare(a.Version, b.Version); err == nil {
			return cmp < 0
		}
		return a.Version < b.Version
	})
}

// Encode renders the index as indented JSON with a trailing newline.
func (ix *Index) Encode() ([]byte, error) {
	ix.normalize()
	out, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode index: %w", err)
	}
	return append(out, '\n'), nil
}

// Decode parses index bytes.
func Decode(src []byte) (*Index, error) {
	var ix Index
	if err := json.Unmarshal(src, &ix); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	ix.normalize()
	return &ix, nil
}

// ReadFile loads the index stored at dir. dir may name the file itself or
// the directory holding an index.json.
func ReadFile(dir string) (*Index, error) {
	path := dir
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		path = filepath.Join(dir, Filename)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	return Decode(src)
}

// WriteFile stores the index into dir atomically.
func WriteFile(ix *Index, dir string) error {
	path := dir
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		path = filepath.Join(dir, Filename)
	}

	out, err := ix.Encode()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// sortVersions orders semantic versions ascending, falling back to string
// order for anything unparsable.
func sortVersions(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		if cmp, err := version.Compare(versions[i], versions[j]); err == nil {
			return cmp < 0
		}
		return versions[i] < versions[j]
	})
}
