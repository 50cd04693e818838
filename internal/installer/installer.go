// Package installer vendors a resolved dependency set into the workspace.
// Packages install concurrently, each one only after everything it depends
// on, with a bounded worker pool. One failure cancels the rest of the run
// and skips every package downstream of the failure.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tanteli/imx-starknet/internal/ctxlog"
	"github.com/Tanteli/imx-starknet/internal/fsutil"
	"github.com/Tanteli/imx-starknet/internal/resolver"
	"github.com/Tanteli/imx-starknet/internal/source"
	"github.com/Tanteli/imx-starknet/internal/store"
)

// VendorDir is the workspace directory packages are vendored into.
const VendorDir = "packages"

// jobState tracks one package through the run.
type jobState int32

const (
	statePending jobState = iota
	stateRunning
	stateDone
	stateFailed
)

type job struct {
	sel        resolver.Selected
	depCount   atomic.Int32
	dependents []*job
	skipOnce   sync.Once
	state      atomic.Int32
	err        error
}

// TreeFetcher materializes one pinned package tree.
type TreeFetcher interface {
	Fetch(ctx context.Context, sel resolver.Selected) (*source.Fetched, error)
}

// Installer executes one resolution against one workspace.
type Installer struct {
	fetcher    TreeFetcher
	state      *store.Store
	vendorDir  string
	numWorkers int

	wg   sync.WaitGroup
	jobs map[string]*job
}

// New builds an installer. vendorDir is the workspace vendor directory;
// workers bounds how many packages install at once.
func New(fetcher TreeFetcher, state *store.Store, vendorDir string, workers int) *Installer {
	if workers < 1 {
		workers = 1
	}
	return &Installer{
		fetcher:    fetcher,
		state:      state,
		vendorDir:  vendorDir,
		numWorkers: workers,
	}
}

// Run vendors every package of the resolution and returns an error naming
// the root cause if any package fails.
func (ins *Installer) Run(ctx context.Context, res *resolver.Resolution) error {
	logger := ctxlog.FromContext(ctx)

	if err := ins.buildJobs(res); err != nil {
		return err
	}
	if len(ins.jobs) == 0 {
		logger.Info("Nothing to install.")
		return nil
	}

	readyChan := make(chan *job, len(ins.jobs))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rootJobs := 0
	for _, j := range ins.jobs {
		if j.depCount.Load() == 0 {
			readyChan <- j
			rootJobs++
		}
	}
	logger.Debug("Starting install workers.", "workers", ins.numWorkers, "packages", len(ins.jobs), "roots", rootJobs)

	ins.wg.Add(len(ins.jobs))
	for i := 0; i < ins.numWorkers; i++ {
		go ins.worker(runCtx, readyChan, cancel, i)
	}

	ins.wg.Wait()
	close(readyChan)

	var failed []string
	var rootCause error
	for _, name := range res.Order {
		j := ins.jobs[name]
		if jobState(j.state.Load()) != stateFailed {
			continue
		}
		logger.Error("Package failed to install.", "package", name, "error", j.err)
		if j.err != nil && !strings.HasPrefix(j.err.Error(), "skipped") && !errors.Is(j.err, context.Canceled) {
			failed = append(failed, name)
			if rootCause == nil {
				rootCause = j.err
			}
		}
	}
	if rootCause != nil {
		return fmt.Errorf("install failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}

	logger.Info("Install complete.", "packages", len(ins.jobs))
	return nil
}

// buildJobs turns the resolution graph into linked job records.
func (ins *Installer) buildJobs(res *resolver.Resolution) error {
	ins.jobs = make(map[string]*job, len(res.Selected))
	for name, sel := range res.Selected {
		ins.jobs[name] = &job{sel: sel}
	}
	for name, j := range ins.jobs {
		deps, err := res.Graph.Dependencies(name)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			j.depCount.Add(1)
			ins.jobs[dep].dependents = append(ins.jobs[dep].dependents, j)
		}
	}
	return nil
}

// worker is the processing loop of one concurrent installer.
func (ins *Installer) worker(ctx context.Context, readyChan chan *job, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Install worker started.", "workerID", workerID)

	for j := range readyChan {
		workerLogger := logger.With("workerID", workerID, "package", j.sel.Name)

		if ctx.Err() != nil {
			j.skipOnce.Do(func() {
				workerLogger.Warn("Context canceled, skipping install.")
				j.state.Store(int32(stateFailed))
				j.err = ctx.Err()
				ins.wg.Done()
			})
			continue
		}

		j.state.Store(int32(stateRunning))
		err := ins.install(ctx, j.sel)
		if err != nil {
			workerLogger.Error("Install failed.", "error", err)
			j.state.Store(int32(stateFailed))
			j.err = err
			cancel()
			ins.skipDependents(ctx, j)
			ins.wg.Done()
			continue
		}

		workerLogger.Info("Package installed.", "version", j.sel.Version)
		j.state.Store(int32(stateDone))

		for _, dependent := range j.dependents {
			if dependent.depCount.Add(-1) == 0 {
				readyChan <- dependent
			}
		}

		ins.wg.Done()
	}
	logger.Debug("Install worker finished.", "workerID", workerID)
}

// skipDependents recursively marks downstream jobs as failed.
func (ins *Installer) skipDependents(ctx context.Context, j *job) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range j.dependents {
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping package due to upstream failure.", "package", dependent.sel.Name, "dependency", j.sel.Name)
			dependent.state.Store(int32(stateFailed))
			dependent.err = fmt.Errorf("skipped due to upstream failure of '%s'", j.sel.Name)
			ins.wg.Done()
			ins.skipDependents(ctx, dependent)
		})
	}
}

// install fetches one package tree and moves it into the vendor directory.
func (ins *Installer) install(ctx context.Context, sel resolver.Selected) error {
	fetched, err := ins.fetcher.Fetch(ctx, sel)
	if err != nil {
		return err
	}

	target := filepath.Join(ins.vendorDir, sel.Name)
	staging := target + ".tmp"

	os.RemoveAll(staging)
	if err := fsutil.CopyTree(fetched.Path, staging); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("failed to stage %s: %w", sel.Name, err)
	}
	if err := os.RemoveAll(target); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("failed to replace %s: %w", sel.Name, err)
	}
	if err := os.Rename(staging, target); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("failed to vendor %s: %w", sel.Name, err)
	}

	if ins.state != nil {
		now := time.Now().UTC()
		if err := ins.state.RecordArtifact(ctx, store.Artifact{
			Name:      sel.Name,
			Version:   sel.Version,
			Integrity: fetched.Integrity,
			Path:      fetched.Path,
			FetchedAt: now,
		}); err != nil {
			return err
		}
		if err := ins.state.RecordInstall(ctx, store.InstalledPackage{
			Name:        sel.Name,
			Version:     sel.Version,
			Source:      string(sel.Source),
			Integrity:   fetched.Integrity,
			Path:        target,
			InstalledAt: now,
		}); err != nil {
			return err
		}
	}
	return nil
}
