package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/Tanteli/imx-starknet/internal/ctxlog"
)

// Load reads and decodes the manifest at dir. dir may name the manifest file
// itself or the package directory containing a Package.hcl.
func Load(ctx context.Context, dir string) (*Descriptor, error) {
	path := dir
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package manifest: %w", err)
	}
	if info.IsDir() {
		path = filepath.Join(dir, Filename)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package manifest: %w", err)
	}
	return Decode(ctx, src, path)
}

// Decode parses manifest source text. filename is used in diagnostics only.
func Decode(ctx context.Context, src []byte, filename string) (*Descriptor, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding package manifest.", "file", filename)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}

	var mf manifestFile
	if diags := gohcl.DecodeBody(file.Body, nil, &mf); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}
	if mf.Package == nil {
		return nil, fmt.Errorf("manifest %s declares no package block", filename)
	}

	desc := translate(&mf)
	logger.Debug("Manifest decoded.",
		"package", desc.Name,
		"version", desc.Version,
		"dependencies", len(desc.Dependencies),
	)
	return desc, nil
}
