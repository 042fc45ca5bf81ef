package config

import (
	"os"
	"path/filepath"
)

// configExts are the file types viper reads, in lookup order
var configExts = []string{"yml", "yaml", "json", "toml"}

// LocalConfigName is the project config file stem, e.g. ".shaderbuild.yml"
const LocalConfigName = ".shaderbuild"

// FindLocalConfig finds local config file by walking up directories
func FindLocalConfig(dir string) string {
	for {
		for _, ext := range configExts {
			path := filepath.Join(dir, LocalConfigName+"."+ext)

			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}

// FindGlobalConfig returns the first config file in dir, or ""
func FindGlobalConfig(dir string) string {
	for _, ext := range configExts {
		path := filepath.Join(dir, "config."+ext)

		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
