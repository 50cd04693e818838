package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFindFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.cairo"), "x")
	writeFile(t, filepath.Join(dir, "sub", "b.cairo"), "y")
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), "z")
	writeFile(t, filepath.Join(dir, ".git", "d.cairo"), "vcs")

	files, err := FindFilesByExtension(dir, ".cairo")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a.cairo"), files[0])
	assert.Equal(t, filepath.Join(dir, "sub", "b.cairo"), files[1])
}

func TestFindFilesByExtensionEmptyExtension(t *testing.T) {
	_, err := FindFilesByExtension(t.TempDir(), "")
	require.Error(t, err)
}

func TestHashTreeDeterministic(t *testing.T) {
	dir1 := t.TempDir()
	writeFile(t, filepath.Join(dir1, "Package.hcl"), "manifest")
	writeFile(t, filepath.Join(dir1, "src", "lib.cairo"), "body")

	dir2 := t.TempDir()
	writeFile(t, filepath.Join(dir2, "src", "lib.cairo"), "body")
	writeFile(t, filepath.Join(dir2, "Package.hcl"), "manifest")
	// VCS metadata must not affect the hash.
	writeFile(t, filepath.Join(dir2, ".git", "HEAD"), "ref: refs/heads/main")

	h1, err := HashTree(dir1)
	require.NoError(t, err)
	h2, err := HashTree(dir2)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Contains(t, h1, "sha256-")
}

func TestHashTreeContentSensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), "one")
	h1, err := HashTree(dir)
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "a"), "two")
	h2, err := HashTree(dir)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "Package.hcl"), "manifest")
	writeFile(t, filepath.Join(src, "src", "lib.cairo"), "body")
	writeFile(t, filepath.Join(src, ".git", "config"), "vcs")

	dst := filepath.Join(t.TempDir(), "out")
	require.NoError(t, CopyTree(src, dst))

	got, err := os.ReadFile(filepath.Join(dst, "src", "lib.cairo"))
	require.NoError(t, err)
	assert.Equal(t, "body", string(got))

	_, err = os.Stat(filepath.Join(dst, ".git"))
	assert.True(t, os.IsNotExist(err))

	srcHash, err := HashTree(src)
	require.NoError(t, err)
	dstHash, err := HashTree(dst)
	require.NoError(t, err)
	assert.Equal(t, srcHash, dstHash)
}
