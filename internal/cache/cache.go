// Package cache provides the dependency cache for incremental shader builds.
//
// Every successfully compiled unit leaves behind a Record: the list of input
// files the compiler reported for it, each paired with the modification time
// observed right after compilation. On the next run a unit is only recompiled
// when its record is missing or any tracked file changed:
//
//  1. Load reads the records persisted by the previous run
//  2. IsStale compares each tracked file against the filesystem
//  3. Fresh records are carried forward into a Snapshot, rebuilt units put new ones
//  4. Persist writes the Snapshot back once, after every unit is resolved
//
// The file is fully regenerated on each run, so units dropped from the
// manifest disappear from the cache as well.
package cache

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultFileName is the cache file name inside the intermediate directory
const DefaultFileName = "shaders.dep"

// Path returns the cache file location for an intermediate directory
func Path(intermediateDir string) string {
	return filepath.Join(intermediateDir, DefaultFileName)
}

// Load reads a persisted cache file.
// A missing file is a first run and yields an empty mapping.
func Load(path string) (Records, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Records{}, nil
		}

		return Records{}, fmt.Errorf("failed to open cache file: %w", err)
	}

	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return Records{}, fmt.Errorf("failed to read cache file: %w", err)
	}

	return records, nil
}

// Persist writes records to path, replacing any previous content
func Persist(path string, records Records) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}

	w := bufio.NewWriter(f)
	if err := Format(w, records); err != nil {
		f.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	return f.Close()
}

// Parse decodes the block format written by Format.
//
// An unindented line starts a unit block; each following tab-indented line
// holds "<nanos> <path>". A block with a malformed file line is dropped, so
// the unit falls back to a rebuild. Only I/O errors are returned.
func Parse(r io.Reader) (Records, error) {
	records := Records{}

	var (
		name    string
		files   []File
		started bool
		broken  bool
	)

	flush := func() {
		if started && !broken {
			records[name] = Record{Files: files}
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			continue
		}

		if !isIndented(line) {
			flush()

			name = line
			files = nil
			started = true
			broken = false

			continue
		}

		// file line with no unit to belong to
		if !started {
			continue
		}

		file, ok := parseFileLine(line)
		if !ok {
			broken = true
			continue
		}

		files = append(files, file)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	flush()

	return records, nil
}

// Format encodes records in the block format, units sorted by name
func Format(w io.Writer, records Records) error {
	for _, name := range records.Names() {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}

		for _, file := range records[name].Files {
			if _, err := fmt.Fprintf(w, "\t%d %s\n", file.ModTime, file.Path); err != nil {
				return err
			}
		}
	}

	return nil
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, "\t") || strings.HasPrefix(line, " ")
}

func parseFileLine(line string) (File, bool) {
	stamp, path, ok := strings.Cut(strings.TrimLeft(line, "\t "), " ")
	if !ok || path == "" {
		return File{}, false
	}

	nanos, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return File{}, false
	}

	return File{Path: path, ModTime: nanos}, true
}

// Names returns the unit names of the mapping in sorted order
func (r Records) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
