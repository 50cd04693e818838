package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Tanteli/imx-starknet/internal/ctxlog"
	"github.com/Tanteli/imx-starknet/internal/index"
	"github.com/Tanteli/imx-starknet/internal/installer"
	"github.com/Tanteli/imx-starknet/internal/registry"
	"github.com/Tanteli/imx-starknet/internal/store"
)

// App encapsulates the toolchain's dependencies and lifecycle.
type App struct {
	config *Config
	logger *slog.Logger

	storeOnce sync.Once
	store     *store.Store
	storeErr  error

	clientOnce sync.Once
	client     *registry.Client
}

// New builds an App with its own isolated logger writing to logW.
func New(logW io.Writer, cfg *Config) *App {
	return &App{
		config: cfg,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, logW),
	}
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Context attaches the application logger to ctx so that library packages
// pick it up via ctxlog.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// CacheDir returns the content cache root under the toolchain home.
func (a *App) CacheDir() string {
	return filepath.Join(a.config.Home, "cache")
}

// Store returns the state database, opening it on first use.
func (a *App) Store() (*store.Store, error) {
	a.storeOnce.Do(func() {
		a.store, a.storeErr = store.Open(filepath.Join(a.config.Home, store.Filename))
	})
	return a.store, a.storeErr
}

// Registry returns the registry client.
func (a *App) Registry() *registry.Client {
	a.clientOnce.Do(func() {
		a.client = registry.New(a.config.RegistryURL)
	})
	return a.client
}

// Close releases the App's long-lived resources.
func (a *App) Close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
	return err
}

// fetcher builds the source fetcher for a workspace rooted at baseDir.
func (a *App) fetcher(baseDir string) *installer.Fetcher {
	return &installer.Fetcher{
		Registry: a.Registry(),
		CacheDir: a.CacheDir(),
		BaseDir:  baseDir,
	}
}

// Index returns the registry index, preferring the cached copy under the
// toolchain home unless refresh is set. A freshly fetched index replaces
// the cached one.
func (a *App) Index(ctx context.Context, refresh bool) (*index.Index, error) {
	cached := filepath.Join(a.config.Home, index.Filename)

	if !refresh {
		ix, err := index.ReadFile(cached)
		if err == nil {
			a.logger.Debug("Using cached registry index.", "path", cached, "generated_at", ix.GeneratedAt)
			return ix, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("Discarding unusable cached index.", "path", cached, "error", err)
		}
	}

	a.logger.Debug("Fetching registry index.", "registry", a.config.RegistryURL)
	ix, err := a.Registry().Index(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.writeIndex(ix, cached); err != nil {
		a.logger.Warn("Failed to cache registry index.", "path", cached, "error", err)
	}
	return ix, nil
}

func (a *App) writeIndex(ix *index.Index, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return index.WriteFile(ix, path)
}
