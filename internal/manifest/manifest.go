// Package manifest parses the shader manifest: one unit per line,
//
//	// comment
//	<name> [.file = <path>] [.entrypoint = <function>] [.target = <profile>]...
//
// .file defaults to "<name>.hlsl" and .entrypoint to "main". Each .target adds a
// profile; without one the profile is derived from the name suffix.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Norgate-AV/shaderbuild/internal/utils"
)

const (
	DefaultEntryPoint = "main"
	DefaultExtension  = ".hlsl"
)

// Unit is one shader compilation target
type Unit struct {
	// Name is unique within the manifest and names the generated files
	Name string

	// File is the source path as written in the manifest
	File string

	// SourcePath is File resolved against the manifest directory
	SourcePath string

	// EntryPoint is the shader function to compile
	EntryPoint string

	// Profiles are compiled in order and share one dependency record
	Profiles []string

	// Line is the 1-based manifest line the unit was declared on
	Line int
}

// Error is a problem with one manifest line
type Error struct {
	Path string
	Line int
	Unit string
	Msg  string
}

func (e *Error) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("%s(%d): %s", e.Path, e.Line, e.Msg)
	}

	return fmt.Sprintf("%s(%d): Shader ('%s') %s", e.Path, e.Line, e.Unit, e.Msg)
}

// Load reads and parses a manifest file.
// The returned error is only set when the file itself cannot be read.
func Load(path, shaderModel string) ([]Unit, []error, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	defer f.Close()

	units, problems, err := Parse(f, absPath, shaderModel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return units, problems, nil
}

// Parse reads units from r. path is the absolute manifest path, used for
// diagnostics and to resolve source files. Bad lines are reported and skipped.
func Parse(r io.Reader, path, shaderModel string) ([]Unit, []error, error) {
	dir := filepath.Dir(path)

	var (
		units    []Unit
		problems []error
	)

	seen := make(map[string]int)
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		unit, err := parseLine(line, dir, shaderModel)
		if err != nil {
			err.Path = path
			err.Line = lineNo
			problems = append(problems, err)

			continue
		}

		if first, dup := seen[unit.Name]; dup {
			problems = append(problems, &Error{
				Path: path,
				Line: lineNo,
				Unit: unit.Name,
				Msg:  fmt.Sprintf("is already declared on line %d.", first),
			})

			continue
		}

		unit.Line = lineNo
		seen[unit.Name] = lineNo
		units = append(units, unit)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return units, problems, nil
}

func parseLine(line, dir, shaderModel string) (Unit, *Error) {
	fields := strings.Fields(line)
	unit := Unit{Name: fields[0]}

	if !isIdentifier(unit.Name) {
		return unit, &Error{Unit: unit.Name, Msg: "has a name that is not a valid identifier."}
	}

	if (len(fields)-1)%3 != 0 {
		return unit, &Error{Unit: unit.Name, Msg: "has too few arguments."}
	}

	for i := 1; i < len(fields); i += 3 {
		key, split, value := fields[i], fields[i+1], fields[i+2]

		if split != "=" {
			return unit, &Error{Unit: unit.Name, Msg: fmt.Sprintf("has argument ('%s') missing '=' to set value.", key)}
		}

		switch key {
		case ".entrypoint":
			unit.EntryPoint = value
		case ".file":
			unit.File = value
		case ".target":
			if !slices.Contains(unit.Profiles, value) {
				unit.Profiles = append(unit.Profiles, value)
			}
		default:
			return unit, &Error{Unit: unit.Name, Msg: fmt.Sprintf("has unknown argument ('%s' = '%s').", key, value)}
		}
	}

	if unit.EntryPoint == "" {
		unit.EntryPoint = DefaultEntryPoint
	}

	if unit.File == "" {
		unit.File = unit.Name + DefaultExtension
	}

	if len(unit.Profiles) == 0 {
		profile := utils.ParseTarget(unit.Name, shaderModel)
		if profile == "" {
			return unit, &Error{Unit: unit.Name, Msg: "has invalid target suffix."}
		}

		unit.Profiles = []string{profile}
	}

	unit.SourcePath = unit.File
	if !filepath.IsAbs(unit.SourcePath) {
		unit.SourcePath = filepath.Join(dir, filepath.FromSlash(unit.File))
	}

	return unit, nil
}

// isIdentifier reports whether name can be used as a C++ identifier in generated code
func isIdentifier(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return name != ""
}

// Names returns the unit names in manifest order
func Names(units []Unit) []string {
	names := make([]string, len(units))
	for i, unit := range units {
		names[i] = unit.Name
	}

	return names
}
