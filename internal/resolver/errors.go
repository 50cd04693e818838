package resolver

import (
	"fmt"
	"strings"
)

// UnknownPackageError reports a required package the registry index has
// never heard of.
type UnknownPackageError struct {
	Name string
}

func (e *UnknownPackageError) Error() string {
	return fmt.Sprintf("package %s is not in the registry index", e.Name)
}

// Requirement records who demanded what of a package, for conflict reports.
type Requirement struct {
	RequiredBy string
	Constraint string
}

func (r Requirement) String() string {
	if r.Constraint == "" {
		return fmt.Sprintf("%s requires any version", r.RequiredBy)
	}
	return fmt.Sprintf("%s requires %s", r.RequiredBy, r.Constraint)
}

// ConflictError reports a package whose accumulated requirements admit no
// published version.
type ConflictError struct {
	Name         string
	Version      string // set when the version was fixed by a git or path source
	Requirements []Requirement
}

func (e *ConflictError) Error() string {
	var sb strings.Builder
	if e.Version != "" {
		fmt.Fprintf(&sb, "version %s of %s does not satisfy all requirements:", e.Version, e.Name)
	} else {
		fmt.Fprintf(&sb, "no version of %s satisfies all requirements:", e.Name)
	}
	for _, r := range e.Requirements {
		sb.WriteString("\n- ")
		sb.WriteString(r.String())
	}
	return sb.String()
}
