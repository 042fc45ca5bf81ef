package compiler

import "fmt"

// Kind classifies why an invocation failed
type Kind int

const (
	// LaunchFailed means the process could not be started at all
	LaunchFailed Kind = iota

	// ExitStatus means the compiler ran and exited non-zero
	ExitStatus

	// OutputMissing means the compiler succeeded but its binary could not be read back
	OutputMissing

	// TimedOut means the invocation exceeded the configured timeout
	TimedOut

	// Interrupted means the run was cancelled while the compiler was running
	Interrupted
)

func (k Kind) String() string {
	switch k {
	case LaunchFailed:
		return "launch failed"
	case ExitStatus:
		return "compile error"
	case OutputMissing:
		return "output missing"
	case TimedOut:
		return "timed out"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Mode names the invocation mode an Error came from
type Mode string

const (
	ModeCompile      Mode = "compile"
	ModeDependencies Mode = "dependencies"
)

// Error is a failed compiler invocation for one unit and profile
type Error struct {
	Unit     string
	Profile  string
	Mode     Mode
	Kind     Kind
	ExitCode int

	// Output is the captured stream text, verbatim. Empty for launch failures.
	Output string

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ExitStatus:
		return fmt.Sprintf("%s(%s): %s failed with exit code %d", e.Unit, e.Profile, e.Mode, e.ExitCode)
	default:
		return fmt.Sprintf("%s(%s): %s %s: %v", e.Unit, e.Profile, e.Mode, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
