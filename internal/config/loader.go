package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SHADERBUILD_OUTPUT_DIR
const EnvPrefix = "SHADERBUILD"

// flagKeys maps command flags to configuration keys
var flagKeys = map[string]string{
	"compiler":     KeyCompilerPath,
	"compiler-arg": KeyCompilerArgs,
	"intermediate": KeyIntermediateDir,
	"out":          KeyOutputDir,
	"registry":     KeyRegistryPath,
	"shader-model": KeyShaderModel,
	"jobs":         KeyJobs,
	"timeout":      KeyTimeout,
	"force":        KeyForce,
	"namespace":    KeyNamespace,
	"verbose":      KeyVerbose,
	"log-level":    KeyLogLevel,
	"log-format":   KeyLogFormat,
	"no-color":     KeyNoColor,
	"no-history":   KeyNoHistory,
}

// userConfigDir is swapped in tests
var userConfigDir = os.UserConfigDir

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForBuild loads configuration for a build of the manifest in args[0]
func (l *Loader) LoadForBuild(cmd *cobra.Command, args []string) (*Config, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%w: manifest path", ErrMissingValue)
	}

	manifestPath, err := filepath.Abs(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}

	if err := l.prepare(cmd, filepath.Dir(manifestPath)); err != nil {
		return nil, err
	}

	cfg, err := Load(BuildKeys...)
	if err != nil {
		return nil, err
	}

	cfg.ManifestPath = manifestPath

	return cfg, nil
}

// LoadForMaintenance loads configuration for commands that only touch the
// intermediate directory. A manifest path in args selects the local config.
func (l *Loader) LoadForMaintenance(cmd *cobra.Command, args []string) (*Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
		}

		dir = filepath.Dir(abs)
	}

	if err := l.prepare(cmd, dir); err != nil {
		return nil, err
	}

	cfg, err := Load(KeyIntermediateDir)
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.ManifestPath, _ = filepath.Abs(args[0])
	}

	return cfg, nil
}

func (l *Loader) prepare(cmd *cobra.Command, dir string) error {
	l.setupViperDefaults()

	if err := l.loadGlobalConfig(); err != nil {
		return err
	}

	if err := l.loadLocalConfig(dir); err != nil {
		return err
	}

	l.bindEnv()
	l.bindCommandFlags(cmd)

	return nil
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault(KeyCompilerPath, DefaultCompilerPath)
	viper.SetDefault(KeyShaderModel, DefaultShaderModel)
	viper.SetDefault(KeyJobs, DefaultJobs)
	viper.SetDefault(KeyLogLevel, DefaultLogLevel)
	viper.SetDefault(KeyLogFormat, DefaultLogFormat)
}

// GlobalDir returns the directory holding the user's global config
func GlobalDir() string {
	dir, err := userConfigDir()
	if err != nil || dir == "" {
		return ""
	}

	return filepath.Join(dir, "shaderbuild")
}

// loadGlobalConfig loads the global configuration from the user config dir
func (l *Loader) loadGlobalConfig() error {
	globalDir := GlobalDir()
	if globalDir == "" {
		return nil
	}

	globalPath := FindGlobalConfig(globalDir)
	if globalPath == "" {
		return nil
	}

	viper.SetConfigFile(globalPath)

	if err := viper.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", globalPath, err)
	}

	return nil
}

// loadLocalConfig merges the nearest project config over the global one
func (l *Loader) loadLocalConfig(dir string) error {
	localPath := FindLocalConfig(dir)
	if localPath == "" {
		return nil
	}

	viper.SetConfigFile(localPath)

	if err := viper.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	return nil
}

func (l *Loader) bindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	for name, key := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			_ = viper.BindPFlag(key, flag)
		}
	}
}
