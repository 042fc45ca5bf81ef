package compiler

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// stream selects which output of the compiler process is captured
type stream int

const (
	captureStderr stream = iota
	captureStdout
)

// Invoker runs the external shader compiler
type Invoker struct {
	// CompilerPath is the compiler executable
	CompilerPath string

	// IntermediateDir receives binaries and debug symbols
	IntermediateDir string

	// ExtraArgs are appended to every invocation (include dirs, defines)
	ExtraArgs []string

	// Timeout bounds a single invocation, zero means no limit
	Timeout time.Duration

	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewInvoker creates an invoker for the given compiler and intermediate directory
func NewInvoker(compilerPath, intermediateDir string) *Invoker {
	return &Invoker{
		CompilerPath:    compilerPath,
		IntermediateDir: intermediateDir,
		execCommand:     exec.CommandContext,
	}
}

// Compile produces the binary for one profile and returns its bytes.
// The compiler writes to a file, which is read back after the process exits.
func (inv *Invoker) Compile(ctx context.Context, req Request) ([]byte, error) {
	binaryPath, symbolsPath := IntermediatePaths(inv.IntermediateDir, req)

	// never read back a binary left over from an earlier run
	if err := os.Remove(binaryPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &Error{Unit: req.Unit, Profile: req.Profile, Mode: ModeCompile, Kind: LaunchFailed, Err: err}
	}

	args := CompileArgs(req, binaryPath, symbolsPath, inv.ExtraArgs)
	if _, err := inv.run(ctx, req, ModeCompile, args, captureStderr); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(binaryPath)
	if err != nil {
		return nil, &Error{Unit: req.Unit, Profile: req.Profile, Mode: ModeCompile, Kind: OutputMissing, Err: err}
	}

	return data, nil
}

// QueryDependencies runs the compiler in dependency-listing mode and returns its standard output
func (inv *Invoker) QueryDependencies(ctx context.Context, req Request) (string, error) {
	return inv.run(ctx, req, ModeDependencies, DependencyArgs(req, inv.ExtraArgs), captureStdout)
}

// Command returns the command line Compile would run, for verbose output
func (inv *Invoker) Command(req Request) string {
	binaryPath, symbolsPath := IntermediatePaths(inv.IntermediateDir, req)
	return CommandLine(inv.CompilerPath, CompileArgs(req, binaryPath, symbolsPath, inv.ExtraArgs))
}

// run executes the compiler once, capturing one stream to completion
func (inv *Invoker) run(ctx context.Context, req Request, mode Mode, args []string, capture stream) (string, error) {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	var buf bytes.Buffer

	c := inv.execCommand(ctx, inv.CompilerPath, args...)
	c.WaitDelay = time.Second

	switch capture {
	case captureStdout:
		c.Stdout = &buf
	default:
		c.Stderr = &buf
	}

	err := c.Run()
	if err == nil {
		return buf.String(), nil
	}

	fail := &Error{Unit: req.Unit, Profile: req.Profile, Mode: mode, Err: err}

	var exitErr *exec.ExitError

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		fail.Kind = TimedOut
	case ctx.Err() != nil:
		fail.Kind = Interrupted
	case errors.As(err, &exitErr):
		fail.Kind = ExitStatus
		fail.ExitCode = exitErr.ExitCode()
		fail.Output = buf.String()
	default:
		fail.Kind = LaunchFailed
	}

	return "", fail
}
