package compiler

import (
	"path/filepath"
	"strings"
)

// Request identifies one compiler invocation: a unit compiled for one target profile
type Request struct {
	// Unit is the manifest name of the shader
	Unit string

	// SourcePath is the absolute path of the shader source
	SourcePath string

	// EntryPoint is the function the compiler starts from
	EntryPoint string

	// Profile is the target profile, e.g. "vs_6_6"
	Profile string
}

// baseArgs are shared by both invocation modes
func baseArgs(req Request) []string {
	return []string{
		req.SourcePath,
		"-E", req.EntryPoint,
		"-T", req.Profile,
	}
}

// CompileArgs builds the arguments for a binary-producing invocation
func CompileArgs(req Request, binaryPath, symbolsPath string, extra []string) []string {
	args := baseArgs(req)
	args = append(args, "-Fo", binaryPath)
	args = append(args, "-Zs", "-Fd", symbolsPath)
	args = append(args, "-Qstrip_reflect")
	args = append(args, extra...)

	return args
}

// DependencyArgs builds the arguments for a dependency-listing invocation
func DependencyArgs(req Request, extra []string) []string {
	args := baseArgs(req)
	args = append(args, "-M")
	args = append(args, extra...)

	return args
}

// IntermediatePaths returns where the binary and debug symbols of req are written
func IntermediatePaths(intermediateDir string, req Request) (binary, symbols string) {
	stem := req.Unit + "." + req.Profile
	return filepath.Join(intermediateDir, stem+".dxil"), filepath.Join(intermediateDir, stem+".pdb")
}

// CommandLine renders a command for display, quoting arguments with spaces
func CommandLine(path string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, arg := range append([]string{path}, args...) {
		if strings.ContainsAny(arg, " \t") {
			arg = `"` + arg + `"`
		}

		parts = append(parts, arg)
	}

	return strings.Join(parts, " ")
}

// Artifact is the binary produced for one target profile
type Artifact struct {
	Profile string
	Binary  []byte
}
