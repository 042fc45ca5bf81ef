package cache

import (
	"fmt"
	"os"
)

// IsStale reports whether any tracked file of the record is missing or has a
// modification time different from the recorded one
func IsStale(record Record) bool {
	stale, _ := Check(record)
	return stale
}

// Check is IsStale with the reason for the first offending file
func Check(record Record) (bool, string) {
	for _, file := range record.Files {
		modTime, err := ModTime(file.Path)
		if err != nil {
			return true, fmt.Sprintf("%s: %v", file.Path, err)
		}

		// Exact inequality: restored files may move backwards in time
		if modTime != file.ModTime {
			return true, fmt.Sprintf("%s: modified", file.Path)
		}
	}

	return false, ""
}

// ModTime returns the last-modified time of path in nanoseconds since the Unix epoch
func ModTime(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	return info.ModTime().UnixNano(), nil
}
