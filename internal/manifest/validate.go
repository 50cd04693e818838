package manifest

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Tanteli/imx-starknet/internal/version"
)

var (
	namePattern      = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	namespacePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Validate performs a strict integrity check on the descriptor. Identity
// fields must be non-empty; the url is the one exception, since a package
// may be authored before it has a homepage. All problems are collected and
// returned as a single error.
func (d *Descriptor) Validate() error {
	var errs []string

	if d.Name == "" {
		errs = append(errs, "package name must not be empty")
	} else if !namePattern.MatchString(d.Name) {
		errs = append(errs, fmt.Sprintf("package name %q is invalid: want lowercase letters, digits, '.', '_' or '-'", d.Name))
	}

	if d.Version == "" {
		errs = append(errs, "package version must not be empty")
	} else if !version.Valid(d.Version) {
		errs = append(errs, fmt.Sprintf("package version %q is not a semantic version", d.Version))
	}

	if d.Description == "" {
		errs = append(errs, "package description must not be empty")
	}
	if d.Author == "" {
		errs = append(errs, "package author must not be empty")
	}
	if d.License == "" {
		errs = append(errs, "package license must not be empty")
	}

	if d.URL != "" {
		u, err := url.Parse(d.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("package url %q is not an http(s) URL", d.URL))
		}
	}

	if len(d.Namespaces) == 0 {
		errs = append(errs, "package must declare at least one namespace")
	}
	for _, ns := range d.Namespaces {
		if !namespacePattern.MatchString(ns) {
			errs = append(errs, fmt.Sprintf("namespace %q is invalid: want a lowercase identifier", ns))
		}
	}

	seen := make(map[string]struct{}, len(d.Dependencies))
	for _, dep := range d.Dependencies {
		if dep.Name == "" {
			errs = append(errs, "dependency name must not be empty")
			continue
		}
		if !namePattern.MatchString(dep.Name) {
			errs = append(errs, fmt.Sprintf("dependency name %q is invalid", dep.Name))
		}
		if dep.Name == d.Name {
			errs = append(errs, fmt.Sprintf("package %q cannot depend on itself", d.Name))
		}
		if _, dup := seen[dep.Name]; dup {
			errs = append(errs, fmt.Sprintf("dependency %q is declared more than once", dep.Name))
		}
		seen[dep.Name] = struct{}{}

		if !version.ValidConstraint(dep.Constraint) {
			errs = append(errs, fmt.Sprintf("dependency %q: version constraint %q does not parse", dep.Name, dep.Constraint))
		}

		switch dep.Source {
		case SourceRegistry:
			if dep.Git != "" || dep.Path != "" {
				errs = append(errs, fmt.Sprintf("dependency %q: git/path attributes require a matching source", dep.Name))
			}
		case SourceGit:
			if dep.Git == "" {
				errs = append(errs, fmt.Sprintf("dependency %q: source \"git\" requires a git attribute", dep.Name))
			}
			if dep.Path != "" {
				errs = append(errs, fmt.Sprintf("dependency %q: path attribute is not valid for a git source", dep.Name))
			}
		case SourcePath:
			if dep.Path == "" {
				errs = append(errs, fmt.Sprintf("dependency %q: source \"path\" requires a path attribute", dep.Name))
			}
			if dep.Git != "" {
				errs = append(errs, fmt.Sprintf("dependency %q: git attribute is not valid for a path source", dep.Name))
			}
		default:
			errs = append(errs, fmt.Sprintf("dependency %q: unknown source %q", dep.Name, dep.Source))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("manifest validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
