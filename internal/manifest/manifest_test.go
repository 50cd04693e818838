package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCanonicalManifest(t *testing.T) {
	desc, err := Load(context.Background(), filepath.Join("testdata", "immutablex-starknet.hcl"))
	require.NoError(t, err)

	assert.Equal(t, "immutablex-starknet", desc.Name)
	assert.Equal(t, "0.1.0", desc.Version)
	assert.Equal(t, "Immutable X StarkNet Contracts", desc.Description)
	assert.Equal(t, "", desc.URL)
	assert.Equal(t, "Immutable", desc.Author)
	assert.Equal(t, "Apache-2.0", desc.License)
	assert.True(t, desc.IncludeData)

	// The descriptor declares exactly one package namespace.
	require.Len(t, desc.Namespaces, 1)
	assert.Equal(t, "immutablex", desc.Namespaces[0])

	// The descriptor declares exactly two dependencies, by these names, with
	// no version constraints and the default registry source.
	require.Len(t, desc.Dependencies, 2)
	assert.Equal(t, []string{"openzeppelin-cairo-contracts", "cairolib"}, desc.DependencyNames())
	for _, dep := range desc.Dependencies {
		assert.Empty(t, dep.Constraint)
		assert.Equal(t, SourceRegistry, dep.Source)
	}

	assert.NoError(t, desc.Validate(), "the canonical manifest must validate as-is, empty url included")
}

func TestDecodeSourceKinds(t *testing.T) {
	src := `
package "wrapper" {
  version     = "1.0.0"
  description = "wraps things"
  author      = "someone"
  license     = "MIT"
  namespaces  = ["wrapper"]
}

dependency "from-registry" {
  version = ">=0.2.0"
}

dependency "from-git" {
  git = "github.com/example/from-git"
}

dependency "from-path" {
  path = "../from-path"
}
`
	desc, err := Decode(context.Background(), []byte(src), "wrapper.hcl")
	require.NoError(t, err)
	require.Len(t, desc.Dependencies, 3)

	reg, ok := desc.Dependency("from-registry")
	require.True(t, ok)
	assert.Equal(t, SourceRegistry, reg.Source)
	assert.Equal(t, ">=0.2.0", reg.Constraint)

	git, ok := desc.Dependency("from-git")
	require.True(t, ok)
	assert.Equal(t, SourceGit, git.Source)
	assert.Equal(t, "github.com/example/from-git", git.Git)

	path, ok := desc.Dependency("from-path")
	require.True(t, ok)
	assert.Equal(t, SourcePath, path.Source)

	assert.NoError(t, desc.Validate())
}

func TestDecodeRejectsMissingPackageBlock(t *testing.T) {
	_, err := Decode(context.Background(), []byte(`dependency "lonely" {}`), "broken.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no package block")
}

func TestDecodeSurfacesParseDiagnostics(t *testing.T) {
	_, err := Decode(context.Background(), []byte(`package "x" {`), "broken.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.hcl")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func valid() *Descriptor {
	return &Descriptor{
		Name:        "immutablex-starknet",
		Version:     "0.1.0",
		Description: "Immutable X StarkNet Contracts",
		Author:      "Immutable",
		License:     "Apache-2.0",
		Namespaces:  []string{"immutablex"},
		Dependencies: []Dependency{
			{Name: "openzeppelin-cairo-contracts", Source: SourceRegistry},
			{Name: "cairolib", Source: SourceRegistry},
		},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Descriptor)
		wantErr string
	}{
		{"empty name", func(d *Descriptor) { d.Name = "" }, "name must not be empty"},
		{"bad name", func(d *Descriptor) { d.Name = "Immutable X" }, "is invalid"},
		{"empty version", func(d *Descriptor) { d.Version = "" }, "version must not be empty"},
		{"bad version", func(d *Descriptor) { d.Version = "one" }, "not a semantic version"},
		{"empty description", func(d *Descriptor) { d.Description = "" }, "description must not be empty"},
		{"empty author", func(d *Descriptor) { d.Author = "" }, "author must not be empty"},
		{"empty license", func(d *Descriptor) { d.License = "" }, "license must not be empty"},
		{"bad url", func(d *Descriptor) { d.URL = "not a url" }, "not an http(s) URL"},
		{"no namespaces", func(d *Descriptor) { d.Namespaces = nil }, "at least one namespace"},
		{"bad namespace", func(d *Descriptor) { d.Namespaces = []string{"Immutable-X"} }, "is invalid"},
		{"self dependency", func(d *Descriptor) {
			d.Dependencies = append(d.Dependencies, Dependency{Name: d.Name, Source: SourceRegistry})
		}, "cannot depend on itself"},
		{"duplicate dependency", func(d *Descriptor) {
			d.Dependencies = append(d.Dependencies, Dependency{Name: "cairolib", Source: SourceRegistry})
		}, "more than once"},
		{"bad constraint", func(d *Descriptor) { d.Dependencies[0].Constraint = ">>1" }, "does not parse"},
		{"git without url", func(d *Descriptor) { d.Dependencies[0].Source = SourceGit }, "requires a git attribute"},
		{"path without path", func(d *Descriptor) { d.Dependencies[0].Source = SourcePath }, "requires a path attribute"},
		{"registry with git", func(d *Descriptor) { d.Dependencies[0].Git = "github.com/x/y" }, "require a matching source"},
		{"unknown source", func(d *Descriptor) { d.Dependencies[0].Source = "ftp" }, "unknown source"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := valid()
			tc.mutate(d)
			err := d.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	assert.NoError(t, valid().Validate())
}

func TestValidateHTTPSURLAccepted(t *testing.T) {
	d := valid()
	d.URL = "https://immutable.com"
	assert.NoError(t, d.Validate())
}

func TestEncodeRoundTrip(t *testing.T) {
	d := valid()
	d.URL = "https://immutable.com"
	d.IncludeData = true
	d.Dependencies = append(d.Dependencies, Dependency{
		Name:   "starkware-utils",
		Source: SourceGit,
		Git:    "github.com/example/starkware-utils",
	})

	got, err := Decode(context.Background(), Encode(d), Filename)
	require.NoError(t, err)

	assert.Equal(t, d.Name, got.Name)
	assert.Equal(t, d.Version, got.Version)
	assert.Equal(t, d.Description, got.Description)
	assert.Equal(t, d.URL, got.URL)
	assert.Equal(t, d.Author, got.Author)
	assert.Equal(t, d.License, got.License)
	assert.Equal(t, d.Namespaces, got.Namespaces)
	assert.Equal(t, d.IncludeData, got.IncludeData)

	// Dependency blocks are rendered in name order.
	require.Len(t, got.Dependencies, 3)
	assert.Equal(t, []string{"cairolib", "openzeppelin-cairo-contracts", "starkware-utils"}, got.DependencyNames())

	gitDep, ok := got.Dependency("starkware-utils")
	require.True(t, ok)
	assert.Equal(t, SourceGit, gitDep.Source)
	assert.Equal(t, "github.com/example/starkware-utils", gitDep.Git)
}

func TestSaveAndLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	d := valid()
	require.NoError(t, Save(d, dir))

	_, err := os.Stat(filepath.Join(dir, Filename))
	require.NoError(t, err)

	got, err := Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, d.Name, got.Name)
	assert.Equal(t, []string{"cairolib", "openzeppelin-cairo-contracts"}, got.DependencyNames())
}
