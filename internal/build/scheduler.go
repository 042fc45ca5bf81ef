package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Norgate-AV/shaderbuild/internal/cache"
	"github.com/Norgate-AV/shaderbuild/internal/compiler"
	"github.com/Norgate-AV/shaderbuild/internal/depfile"
	"github.com/Norgate-AV/shaderbuild/internal/history"
	"github.com/Norgate-AV/shaderbuild/internal/manifest"
	"golang.org/x/sync/errgroup"
)

// Compiler produces binaries and dependency listings for one unit profile
type Compiler interface {
	Compile(ctx context.Context, req compiler.Request) ([]byte, error)
	QueryDependencies(ctx context.Context, req compiler.Request) (string, error)
}

// commander is implemented by compilers that can render their command line
type commander interface {
	Command(req compiler.Request) string
}

// Emitter writes the generated source for a rebuilt unit
type Emitter interface {
	Artifact(unit manifest.Unit, artifacts []compiler.Artifact) error
}

// UnitResult is what one run did with one unit
type UnitResult struct {
	Name       string
	Outcome    history.Outcome
	Profiles   []string
	BinarySize int64
	Duration   time.Duration

	// Reason the prior record was not reused, empty for new units
	Reason string

	// Err is set for failed units
	Err error
}

// Result is the outcome of scheduling every unit of a manifest
type Result struct {
	// Records holds an entry for every fresh or rebuilt unit
	Records cache.Records

	// Units in manifest order
	Units []UnitResult

	// Failed is set when any unit failed
	Failed bool
}

// Count returns how many units ended with the given outcome
func (r *Result) Count(outcome history.Outcome) int {
	n := 0

	for _, u := range r.Units {
		if u.Outcome == outcome {
			n++
		}
	}

	return n
}

// Scheduler processes units concurrently, reusing fresh cache records and
// rebuilding the rest
type Scheduler struct {
	Compiler Compiler
	Emitter  Emitter

	// Jobs bounds concurrent units, 0 means one per CPU
	Jobs int

	// Force rebuilds units even when their record is fresh
	Force bool

	Logger *slog.Logger

	// Diagnostics receives compiler output of failed units verbatim
	Diagnostics io.Writer

	diagMu sync.Mutex
}

// Run processes every unit. Failures are isolated per unit and reported
// through the result; they never stop other units.
func (s *Scheduler) Run(ctx context.Context, units []manifest.Unit, prior cache.Records) *Result {
	snapshot := cache.NewSnapshot()
	results := make([]UnitResult, len(units))

	var failed atomic.Bool

	var g errgroup.Group
	g.SetLimit(s.jobs())

	for i, unit := range units {
		i, unit := i, unit
		g.Go(func() error {
			results[i] = s.process(ctx, unit, prior, snapshot)
			if results[i].Outcome == history.Failed {
				failed.Store(true)
			}

			return nil
		})
	}

	_ = g.Wait()

	return &Result{
		Records: snapshot.Records(),
		Units:   results,
		Failed:  failed.Load(),
	}
}

func (s *Scheduler) jobs() int {
	if s.Jobs > 0 {
		return s.Jobs
	}

	return runtime.NumCPU()
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}

	return s.Logger
}

func (s *Scheduler) process(ctx context.Context, unit manifest.Unit, prior cache.Records, snapshot *cache.Snapshot) UnitResult {
	res := UnitResult{Name: unit.Name, Profiles: unit.Profiles}
	logger := s.logger().With("unit", unit.Name)

	if record, ok := prior[unit.Name]; ok {
		stale, reason := cache.Check(record)

		switch {
		case s.Force:
			res.Reason = "forced"
		case !stale:
			snapshot.Put(unit.Name, record)
			res.Outcome = history.Fresh
			logger.Debug("Shader is up to date.")

			return res
		default:
			res.Reason = reason
		}

		logger.Debug("Shader is stale.", "reason", res.Reason)
	} else {
		logger.Debug("Shader is not in the cache.")
	}

	if len(unit.Profiles) == 0 {
		return s.fail(res, logger, errors.New("no target profiles"))
	}

	start := time.Now()
	logger.Info("Compiling shader.", "profiles", unit.Profiles)

	artifacts := make([]compiler.Artifact, 0, len(unit.Profiles))

	for _, profile := range unit.Profiles {
		req := request(unit, profile)
		if c, ok := s.Compiler.(commander); ok {
			logger.Debug("Running compiler.", "command", c.Command(req))
		}

		binary, err := s.Compiler.Compile(ctx, req)
		if err != nil {
			return s.fail(res, logger, err)
		}

		artifacts = append(artifacts, compiler.Artifact{Profile: profile, Binary: binary})
		res.BinarySize += int64(len(binary))
	}

	if err := s.Emitter.Artifact(unit, artifacts); err != nil {
		return s.fail(res, logger, fmt.Errorf("failed to write generated source: %w", err))
	}

	// includes are the same for every profile; query with the last one
	raw, err := s.Compiler.QueryDependencies(ctx, request(unit, unit.Profiles[len(unit.Profiles)-1]))
	if err != nil {
		return s.fail(res, logger, err)
	}

	snapshot.Put(unit.Name, withSource(depfile.Record(raw), unit.SourcePath))

	res.Outcome = history.Rebuilt
	res.Duration = time.Since(start)
	logger.Debug("Shader compiled.", "bytes", res.BinarySize, "duration", res.Duration)

	return res
}

func (s *Scheduler) fail(res UnitResult, logger *slog.Logger, err error) UnitResult {
	res.Outcome = history.Failed
	res.Err = err

	logger.Error("Shader failed.", "error", err)
	s.report(res.Name, err)

	return res
}

// report writes captured compiler output, serialized so units never interleave
func (s *Scheduler) report(name string, err error) {
	if s.Diagnostics == nil {
		return
	}

	s.diagMu.Lock()
	defer s.diagMu.Unlock()

	var compileErr *compiler.Error
	if !errors.As(err, &compileErr) {
		fmt.Fprintf(s.Diagnostics, "%s: %v\n", name, err)
		return
	}

	fmt.Fprintf(s.Diagnostics, "%v\n", compileErr)

	if compileErr.Output != "" {
		io.WriteString(s.Diagnostics, compileErr.Output)

		if compileErr.Output[len(compileErr.Output)-1] != '\n' {
			io.WriteString(s.Diagnostics, "\n")
		}
	}
}

func request(unit manifest.Unit, profile string) compiler.Request {
	return compiler.Request{
		Unit:       unit.Name,
		SourcePath: unit.SourcePath,
		EntryPoint: unit.EntryPoint,
		Profile:    profile,
	}
}

// withSource adds the unit's own source file when the listing left it out
func withSource(record cache.Record, sourcePath string) cache.Record {
	if sourcePath == "" {
		return record
	}

	if slices.ContainsFunc(record.Files, func(f cache.File) bool { return f.Path == sourcePath }) {
		return record
	}

	modTime, err := cache.ModTime(sourcePath)
	if err != nil {
		return record
	}

	record.Files = append([]cache.File{{Path: sourcePath, ModTime: modTime}}, record.Files...)

	return record
}
