package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Encode renders the descriptor as Package.hcl source text. Dependency
// blocks are emitted in name order so that repeated edits produce stable
// files.
func Encode(d *Descriptor) []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	pkg := root.AppendNewBlock("package", []string{d.Name}).Body()
	pkg.SetAttributeValue("version", cty.StringVal(d.Version))
	pkg.SetAttributeValue("description", cty.StringVal(d.Description))
	pkg.SetAttributeValue("url", cty.StringVal(d.URL))
	pkg.SetAttributeValue("author", cty.StringVal(d.Author))
	pkg.SetAttributeValue("license", cty.StringVal(d.License))

	namespaces := make([]cty.Value, 0, len(d.Namespaces))
	for _, ns := range d.Namespaces {
		namespaces = append(namespaces, cty.StringVal(ns))
	}
	if len(namespaces) > 0 {
		pkg.SetAttributeValue("namespaces", cty.ListVal(namespaces))
	} else {
		pkg.SetAttributeValue("namespaces", cty.ListValEmpty(cty.String))
	}
	if d.IncludeData {
		pkg.SetAttributeValue("include_data", cty.BoolVal(true))
	}

	deps := append([]Dependency(nil), d.Dependencies...)
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })

	for _, dep := range deps {
		root.AppendNewline()
		b := root.AppendNewBlock("dependency", []string{dep.Name}).Body()
		if dep.Constraint != "" {
			b.SetAttributeValue("version", cty.StringVal(dep.Constraint))
		}
		switch dep.Source {
		case SourceGit:
			b.SetAttributeValue("source", cty.StringVal(string(SourceGit)))
			b.SetAttributeValue("git", cty.StringVal(dep.Git))
		case SourcePath:
			b.SetAttributeValue("source", cty.StringVal(string(SourcePath)))
			b.SetAttributeValue("path", cty.StringVal(dep.Path))
		}
	}

	return f.Bytes()
}

// Save writes the descriptor to dir as Package.hcl. dir may also name the
// target file directly. The write replaces any existing manifest atomically.
func Save(d *Descriptor, dir string) error {
	path := dir
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		path = filepath.Join(dir, Filename)
	} else if filepath.Ext(dir) != ".hcl" {
		path = filepath.Join(dir, Filename)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create package directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, Encode(d), 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
