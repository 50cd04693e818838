// Package version wraps semantic-version parsing and selection for the
// package toolchain. Dependency blocks may omit a constraint entirely, which
// means "any released version"; everything else is standard semver range
// syntax handled by Masterminds/semver.
package version

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Parse parses a version string. It is strict: the canonical descriptor
// lifecycle (authored, published, superseded) relies on versions ordering
// totally.
func Parse(s string) (*semver.Version, error) {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return v, nil
}

// ParseConstraint parses a constraint expression. An empty expression means
// any version.
func ParseConstraint(s string) (*semver.Constraints, error) {
	if s == "" {
		s = ">=0.0.0-0"
	}
	c, err := semver.NewConstraint(s)
	if err != nil {
		return nil, fmt.Errorf("invalid version constraint %q: %w", s, err)
	}
	return c, nil
}

// Valid reports whether s parses as a strict semantic version.
func Valid(s string) bool {
	_, err := semver.StrictNewVersion(s)
	return err == nil
}

// ValidConstraint reports whether s parses as a constraint expression.
func ValidConstraint(s string) bool {
	if s == "" {
		return true
	}
	_, err := semver.NewConstraint(s)
	return err == nil
}

// Highest returns the highest version among candidates that satisfies every
// constraint in constraints. Empty constraint strings are ignored. The second
// return value is false when no candidate qualifies.
func Highest(candidates []string, constraints []string) (string, bool, error) {
	parsed := make(semver.Collection, 0, len(candidates))
	for _, c := range candidates {
		v, err := Parse(c)
		if err != nil {
			return "", false, err
		}
		parsed = append(parsed, v)
	}
	sort.Sort(sort.Reverse(parsed))

	checks := make([]*semver.Constraints, 0, len(constraints))
	for _, raw := range constraints {
		if raw == "" {
			continue
		}
		c, err := ParseConstraint(raw)
		if err != nil {
			return "", false, err
		}
		checks = append(checks, c)
	}

	for _, v := range parsed {
		ok := true
		for _, c := range checks {
			if !c.Check(v) {
				ok = false
				break
			}
		}
		if ok {
			return v.Original(), true, nil
		}
	}
	return "", false, nil
}

// Bump returns base incremented at the named part: "major", "minor" or
// "patch". It models the descriptor lifecycle step from a published version
// to the version that supersedes it.
func Bump(base string, part string) (string, error) {
	v, err := Parse(base)
	if err != nil {
		return "", err
	}
	var next semver.Version
	switch part {
	case "major":
		next = v.IncMajor()
	case "minor":
		next = v.IncMinor()
	case "patch":
		next = v.IncPatch()
	default:
		return "", fmt.Errorf("unknown version part %q: want major, minor or patch", part)
	}
	return next.String(), nil
}

// Compare returns -1, 0 or 1 comparing a against b as semantic versions.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}
