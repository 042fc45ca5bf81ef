// Package depfile turns the compiler's make-style dependency listing into a cache record.
package depfile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/shaderbuild/internal/cache"
)

// continuation is the line-wrap marker the compiler emits between tokens
const continuation = `\`

// Parse extracts the tracked input files from raw dependency output.
//
// The first token names the output target and is dropped. Continuation markers,
// tokens that do not name an existing regular file, and repeated paths are skipped.
// Each surviving file is stamped with its current modification time.
func Parse(raw string) []cache.File {
	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return nil
	}

	files := make([]cache.File, 0, len(tokens)-1)
	seen := make(map[string]bool, len(tokens))

	for _, token := range tokens[1:] {
		if token == continuation {
			continue
		}

		// continuation marker glued to a path
		token = strings.TrimSuffix(token, `\`)
		if token == "" {
			continue
		}

		path, err := filepath.Abs(token)
		if err != nil {
			continue
		}

		if seen[path] {
			continue
		}

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		seen[path] = true
		files = append(files, cache.File{Path: path, ModTime: info.ModTime().UnixNano()})
	}

	return files
}

// Record is Parse wrapped into a cache record
func Record(raw string) cache.Record {
	return cache.Record{Files: Parse(raw)}
}
