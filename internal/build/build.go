// Package build runs an incremental shader build: it reads the manifest and the
// dependency cache, rebuilds stale units concurrently, writes the generated
// sources and persists the refreshed cache.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/Norgate-AV/shaderbuild/internal/cache"
	"github.com/Norgate-AV/shaderbuild/internal/compiler"
	"github.com/Norgate-AV/shaderbuild/internal/config"
	"github.com/Norgate-AV/shaderbuild/internal/emit"
	"github.com/Norgate-AV/shaderbuild/internal/history"
	"github.com/Norgate-AV/shaderbuild/internal/manifest"
	"golang.org/x/sync/errgroup"
)

// ErrBuildFailed is returned when a manifest line or a unit failed
var ErrBuildFailed = errors.New("build failed")

// Summary describes a completed run
type Summary struct {
	*Result

	// ManifestErrors are the rejected manifest lines
	ManifestErrors []error

	// RegistryWritten is set when the registry was regenerated
	RegistryWritten bool

	// Tracked lists the manifest and every file the units depend on
	Tracked []string
}

// Succeeded reports whether the run had no manifest error and no failed unit
func (s *Summary) Succeeded() bool {
	return len(s.ManifestErrors) == 0 && !s.Failed
}

// Driver runs builds for one configuration
type Driver struct {
	cfg    *config.Config
	logger *slog.Logger

	// Compiler defaults to the configured external compiler
	Compiler Compiler

	// Writer emits unit sources and the registry
	Writer *emit.Writer

	// Diagnostics receives manifest errors and compiler output
	Diagnostics io.Writer

	now func() time.Time
}

// New creates a driver for cfg
func New(cfg *config.Config, logger *slog.Logger) *Driver {
	invoker := compiler.NewInvoker(cfg.CompilerPath, cfg.IntermediateDir)
	invoker.ExtraArgs = cfg.CompilerArgs
	invoker.Timeout = cfg.Timeout

	writer := emit.NewWriter(cfg.OutputDir, cfg.RegistryPath)
	if cfg.Namespace != "" {
		writer.Namespace = cfg.Namespace
	}

	if cfg.DefinitionHeader != "" {
		writer.DefinitionHeader = cfg.DefinitionHeader
	}

	if cfg.RegistryHeader != "" {
		writer.RegistryHeader = cfg.RegistryHeader
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Driver{
		cfg:         cfg,
		logger:      logger,
		Compiler:    invoker,
		Writer:      writer,
		Diagnostics: os.Stderr,
		now:         time.Now,
	}
}

// Run performs one build. It returns ErrBuildFailed together with the summary
// when any manifest line or unit failed; other errors abort the run.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	cachePath := cache.Path(d.cfg.IntermediateDir)

	var (
		prior cache.Records
		setup errgroup.Group
	)

	setup.Go(func() error {
		if err := os.MkdirAll(d.cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		return nil
	})

	setup.Go(func() error {
		if err := os.MkdirAll(d.cfg.IntermediateDir, 0o755); err != nil {
			return fmt.Errorf("failed to create intermediate directory: %w", err)
		}

		return nil
	})

	setup.Go(func() error {
		records, err := cache.Load(cachePath)
		if err != nil {
			d.logger.Warn("Ignoring unreadable dependency cache.", "path", cachePath, "error", err)
			records = cache.Records{}
		}

		prior = records

		return nil
	})

	units, problems, err := manifest.Load(d.cfg.ManifestPath, d.cfg.ShaderModel)
	if err != nil {
		_ = setup.Wait()
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	for _, problem := range problems {
		fmt.Fprintln(d.Diagnostics, problem)
	}

	if err := setup.Wait(); err != nil {
		return nil, err
	}

	d.logger.Debug("Loaded manifest.", "units", len(units), "cached", len(prior))

	scheduler := &Scheduler{
		Compiler:    d.Compiler,
		Emitter:     d.Writer,
		Jobs:        d.cfg.Jobs,
		Force:       d.cfg.Force,
		Logger:      d.logger,
		Diagnostics: d.Diagnostics,
	}

	result := scheduler.Run(ctx, units, prior)

	summary := &Summary{
		Result:         result,
		ManifestErrors: problems,
		Tracked:        tracked(d.cfg.ManifestPath, units, result.Records),
	}

	if d.needsRegistry(units, prior) {
		if err := d.Writer.Registry(units); err != nil {
			return summary, err
		}

		summary.RegistryWritten = true
		d.logger.Debug("Wrote shader registry.", "path", d.Writer.RegistryPath)
	}

	if err := cache.Persist(cachePath, result.Records); err != nil {
		return summary, err
	}

	if !d.cfg.NoHistory {
		d.recordHistory(result)
	}

	if !summary.Succeeded() {
		return summary, ErrBuildFailed
	}

	return summary, nil
}

// needsRegistry reports whether a unit is new to the cache or the registry is gone
func (d *Driver) needsRegistry(units []manifest.Unit, prior cache.Records) bool {
	if d.cfg.Force {
		return true
	}

	for _, unit := range units {
		if !prior.Has(unit.Name) {
			return true
		}
	}

	_, err := os.Stat(d.Writer.RegistryPath)

	return err != nil
}

func (d *Driver) recordHistory(result *Result) {
	store, err := history.Open(d.cfg.IntermediateDir)
	if err != nil {
		d.logger.Warn("Build history unavailable.", "error", err)
		return
	}
	defer store.Close()

	now := d.now()
	entries := make([]history.Entry, 0, len(result.Units))

	for _, u := range result.Units {
		entries = append(entries, history.Entry{
			Name:       u.Name,
			Outcome:    u.Outcome,
			Profiles:   u.Profiles,
			BinarySize: u.BinarySize,
			Duration:   u.Duration,
			Timestamp:  now,
		})
	}

	if err := store.Record(entries); err != nil {
		d.logger.Warn("Failed to record build history.", "error", err)
	}
}

// tracked returns the manifest, unit sources and every recorded dependency, sorted
func tracked(manifestPath string, units []manifest.Unit, records cache.Records) []string {
	seen := map[string]bool{manifestPath: true}

	for _, unit := range units {
		seen[unit.SourcePath] = true
	}

	for _, record := range records {
		for _, file := range record.Files {
			seen[file.Path] = true
		}
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		if path != "" {
			paths = append(paths, path)
		}
	}

	sort.Strings(paths)

	return paths
}
