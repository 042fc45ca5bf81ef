package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// intermediateExts are the per-profile files the compiler leaves in the intermediate directory
var intermediateExts = []string{".dxil", ".pdb"}

// CollectIntermediates scans a directory and returns the compiler output files in it
func CollectIntermediates(dir string) ([]string, error) {
	var outputs []string

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Nothing built yet
		}

		return nil, fmt.Errorf("failed to read intermediate directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		for _, ext := range intermediateExts {
			if strings.EqualFold(filepath.Ext(name), ext) {
				outputs = append(outputs, name)
				break
			}
		}
	}

	return outputs, nil
}

// RemoveArtifacts deletes the given files from dir along with the cache file.
// Files that are already gone are skipped.
func RemoveArtifacts(dir string, outputs []string) error {
	targets := append([]string{DefaultFileName}, outputs...)

	for _, output := range targets {
		err := os.Remove(filepath.Join(dir, output))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", output, err)
		}
	}

	return nil
}
