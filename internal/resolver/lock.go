package resolver

import (
	"fmt"

	"github.com/Tanteli/imx-starknet/internal/lockfile"
	"github.com/Tanteli/imx-starknet/internal/manifest"
)

// FromLock rebuilds a resolution from a lock file without consulting the
// index, so that installing against a current lock vendors exactly what the
// lock pins. The lock must still cover the manifest.
func FromLock(root *manifest.Descriptor, l *lockfile.Lockfile) (*Resolution, error) {
	if err := root.Validate(); err != nil {
		return nil, err
	}
	if !l.Covers(root) {
		return nil, fmt.Errorf("lock file no longer matches %s, resolve again", root.Name)
	}

	sel := make(map[string]Selected, len(l.Resolved))
	for _, r := range l.Resolved {
		sel[r.Name] = Selected{
			Name:         r.Name,
			Version:      r.Version,
			Source:       r.Source,
			URL:          r.URL,
			Integrity:    r.Integrity,
			Dependencies: append([]string(nil), r.Dependencies...),
		}
	}
	return finish(root, sel)
}
