package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"

	"github.com/Tanteli/imx-starknet/internal/ctxlog"
	"github.com/Tanteli/imx-starknet/internal/fsutil"
	"github.com/Tanteli/imx-starknet/internal/manifest"
)

// Git fetches a package from a git remote. The clone is kept under the
// content cache and pulled on later fetches instead of recloned.
type Git struct {
	url string
	dir string
}

// NewGit returns a source for the given remote. url may omit the scheme
// ("github.com/org/repo"); https is assumed.
func NewGit(url, cacheDir string) *Git {
	return &Git{
		url: url,
		dir: filepath.Join(cacheDir, "git", slug(url)),
	}
}

// Fetch clones or updates the remote and returns its working tree.
func (g *Git) Fetch(ctx context.Context, req Request) (*Fetched, error) {
	logger := ctxlog.FromContext(ctx)

	if _, err := os.Stat(filepath.Join(g.dir, ".git")); err == nil {
		logger.Debug("Updating cached git clone.", "url", g.url, "dir", g.dir)
		repo, err := git.PlainOpen(g.dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open cached clone of %s: %w", g.url, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("failed to open cached clone of %s: %w", g.url, err)
		}
		out := bytes.NewBufferString("")
		err = worktree.PullContext(ctx, &git.PullOptions{Progress: out})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return nil, fmt.Errorf("failed to update %s: %s\n%w", g.url, out.String(), err)
		}
	} else {
		logger.Info("Cloning package repository.", "url", g.url)
		out := bytes.NewBufferString("")
		_, err := git.PlainCloneContext(ctx, g.dir, false, &git.CloneOptions{
			URL:      cloneURL(g.url),
			Progress: out,
		})
		if err != nil {
			os.RemoveAll(g.dir)
			return nil, fmt.Errorf("failed to clone %s: %s\n%w", g.url, out.String(), err)
		}
	}

	desc, err := manifest.Load(ctx, g.dir)
	if err != nil {
		return nil, fmt.Errorf("clone of %s carries no usable manifest: %w", g.url, err)
	}
	integrity, err := fsutil.HashTree(g.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to hash clone of %s: %w", g.url, err)
	}

	f := &Fetched{Path: g.dir, Integrity: integrity, Manifest: desc}
	if err := checkFetched(f, req); err != nil {
		return nil, err
	}
	return f, nil
}

func cloneURL(url string) string {
	// Full URLs and filesystem remotes pass through untouched.
	if strings.Contains(url, "://") || filepath.IsAbs(url) {
		return url
	}
	return "https://" + url
}

// slug flattens a remote URL into a cache directory name.
func slug(url string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, url)
}
