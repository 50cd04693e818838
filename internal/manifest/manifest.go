package manifest

// SourceKind names where a dependency is fetched from.
type SourceKind string

const (
	// SourceRegistry resolves the dependency against the package registry
	// index. This is the default when a dependency block names no source.
	SourceRegistry SourceKind = "registry"
	// SourceGit clones the dependency from a git URL.
	SourceGit SourceKind = "git"
	// SourcePath uses a package tree on the local filesystem.
	SourcePath SourceKind = "path"
)

// Descriptor is the format-agnostic package descriptor: the identity fields,
// the namespaces the package provides, and the dependencies it requires.
// Identity fields are set when the package is authored and change only by
// editing and releasing a new version.
type Descriptor struct {
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Description  string       `json:"description"`
	URL          string       `json:"url"`
	Author       string       `json:"author"`
	License      string       `json:"license"`
	Namespaces   []string     `json:"namespaces"`
	IncludeData  bool         `json:"include_data"`
	Dependencies []Dependency `json:"dependencies"`
}

// Dependency is one entry of the descriptor's dependency set. The set is
// order-irrelevant; rendering and resolution both impose name order.
type Dependency struct {
	Name       string     `json:"name"`
	Constraint string     `json:"constraint,omitempty"`
	Source     SourceKind `json:"source"`
	Git        string     `json:"git,omitempty"`
	Path       string     `json:"path,omitempty"`
}

// Dependency returns the dependency with the given name, if declared.
func (d *Descriptor) Dependency(name string) (Dependency, bool) {
	for _, dep := range d.Dependencies {
		if dep.Name == name {
			return dep, true
		}
	}
	return Dependency{}, false
}

// DependencyNames returns the declared dependency names in declaration order.
func (d *Descriptor) DependencyNames() []string {
	names := make([]string, 0, len(d.Dependencies))
	for _, dep := range d.Dependencies {
		names = append(names, dep.Name)
	}
	return names
}

// translate converts the HCL schema representation into the agnostic model.
func translate(f *manifestFile) *Descriptor {
	d := &Descriptor{
		Name:        f.Package.Name,
		Version:     f.Package.Version,
		Description: f.Package.Description,
		URL:         f.Package.URL,
		Author:      f.Package.Author,
		License:     f.Package.License,
		Namespaces:  f.Package.Namespaces,
		IncludeData: f.Package.IncludeData,
	}
	for _, dep := range f.Dependencies {
		source := SourceKind(dep.Source)
		if dep.Source == "" {
			switch {
			case dep.Git != "":
				source = SourceGit
			case dep.Path != "":
				source = SourcePath
			default:
				source = SourceRegistry
			}
		}
		d.Dependencies = append(d.Dependencies, Dependency{
			Name:       dep.Name,
			Constraint: dep.Constraint,
			Source:     source,
			Git:        dep.Git,
			Path:       dep.Path,
		})
	}
	return d
}
