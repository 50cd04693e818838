package manifest

import (
	"github.com/hashicorp/hcl/v2"
)

// Filename is the manifest file name expected at every package root.
const Filename = "Package.hcl"

// --- HCL schema structures ---

// packageBlock mirrors the `package` block of a Package.hcl file.
type packageBlock struct {
	Name        string   `hcl:"name,label"`
	Version     string   `hcl:"version"`
	Description string   `hcl:"description,optional"`
	URL         string   `hcl:"url,optional"`
	Author      string   `hcl:"author,optional"`
	License     string   `hcl:"license,optional"`
	Namespaces  []string `hcl:"namespaces"`
	IncludeData bool     `hcl:"include_data,optional"`
}

// dependencyBlock mirrors a `dependency` block. All attributes are optional:
// a bare block pins nothing and accepts any released version from the
// default registry source.
type dependencyBlock struct {
	Name       string `hcl:"name,label"`
	Constraint string `hcl:"version,optional"`
	Source     string `hcl:"source,optional"`
	Git        string `hcl:"git,optional"`
	Path       string `hcl:"path,optional"`
}

// manifestFile is the top-level structure of a Package.hcl file.
type manifestFile struct {
	Package      *packageBlock      `hcl:"package,block"`
	Dependencies []*dependencyBlock `hcl:"dependency,block"`
	Body         hcl.Body           `hcl:",remain"`
}
