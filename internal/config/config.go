package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Norgate-AV/shaderbuild/internal/emit"
	"github.com/Norgate-AV/shaderbuild/internal/logging"
	"github.com/Norgate-AV/shaderbuild/internal/utils"
	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultCompilerPath = "dxc"
	DefaultShaderModel  = "6_6"
	DefaultJobs         = 0
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// Configuration keys
const (
	KeyCompilerPath     = "compiler_path"
	KeyCompilerArgs     = "compiler_args"
	KeyIntermediateDir  = "intermediate_dir"
	KeyOutputDir        = "output_dir"
	KeyRegistryPath     = "registry_path"
	KeyShaderModel      = "shader_model"
	KeyJobs             = "jobs"
	KeyTimeout          = "timeout"
	KeyForce            = "force"
	KeyNamespace        = "namespace"
	KeyDefinitionHeader = "definition_header"
	KeyRegistryHeader   = "registry_header"
	KeyVerbose          = "verbose"
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
	KeyNoColor          = "no_color"
	KeyNoHistory        = "no_history"
)

// BuildKeys must be set for a build to start
var BuildKeys = []string{KeyCompilerPath, KeyIntermediateDir, KeyOutputDir, KeyRegistryPath}

// ErrMissingValue is returned when a required configuration value is empty
var ErrMissingValue = errors.New("missing configuration value")

// Holds the configuration options for shaderbuild
type Config struct {
	// Path to the shader compiler, or a name looked up in PATH
	CompilerPath string

	// Extra arguments passed to every compiler invocation
	CompilerArgs []string

	// Manifest listing the shader units
	ManifestPath string

	// Directory for compiler binaries, debug symbols and the dependency cache
	IntermediateDir string

	// Directory receiving one generated source per unit
	OutputDir string

	// Generated registry source
	RegistryPath string

	// Shader model used to derive profiles from unit names (e.g. 6_6)
	ShaderModel string

	// Maximum concurrent units, 0 means one per CPU
	Jobs int

	// Limit for a single compiler invocation, 0 means none
	Timeout time.Duration

	// Ignore the dependency cache and rebuild everything
	Force bool

	// Generated code settings
	Namespace        string
	DefinitionHeader string
	RegistryHeader   string

	// Enable verbose output
	Verbose bool

	LogLevel  string
	LogFormat string

	// Disable colored console output
	NoColor bool

	// Skip recording build history
	NoHistory bool
}

// Load materializes the configuration from viper and validates it.
// Keys listed in required must not be empty.
func Load(required ...string) (*Config, error) {
	cfg := &Config{
		CompilerPath:     viper.GetString(KeyCompilerPath),
		CompilerArgs:     viper.GetStringSlice(KeyCompilerArgs),
		IntermediateDir:  viper.GetString(KeyIntermediateDir),
		OutputDir:        viper.GetString(KeyOutputDir),
		RegistryPath:     viper.GetString(KeyRegistryPath),
		ShaderModel:      viper.GetString(KeyShaderModel),
		Jobs:             viper.GetInt(KeyJobs),
		Timeout:          viper.GetDuration(KeyTimeout),
		Force:            viper.GetBool(KeyForce),
		Namespace:        viper.GetString(KeyNamespace),
		DefinitionHeader: viper.GetString(KeyDefinitionHeader),
		RegistryHeader:   viper.GetString(KeyRegistryHeader),
		Verbose:          viper.GetBool(KeyVerbose),
		LogLevel:         viper.GetString(KeyLogLevel),
		LogFormat:        viper.GetString(KeyLogFormat),
		NoColor:          viper.GetBool(KeyNoColor),
		NoHistory:        viper.GetBool(KeyNoHistory),
	}

	if len(cfg.CompilerArgs) == 0 {
		cfg.CompilerArgs = nil
	}

	// Apply defaults if not set
	if cfg.CompilerPath == "" {
		cfg.CompilerPath = DefaultCompilerPath
	}

	if cfg.ShaderModel == "" {
		cfg.ShaderModel = DefaultShaderModel
	}

	if cfg.Namespace == "" {
		cfg.Namespace = emit.DefaultNamespace
	}

	if cfg.DefinitionHeader == "" {
		cfg.DefinitionHeader = emit.DefaultDefinitionHeader
	}

	if cfg.RegistryHeader == "" {
		cfg.RegistryHeader = emit.DefaultRegistryHeader
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}

	if cfg.Verbose && strings.EqualFold(cfg.LogLevel, DefaultLogLevel) {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Require(required...); err != nil {
		return nil, err
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Require checks that the given keys have non-empty values
func (c *Config) Require(keys ...string) error {
	values := map[string]string{
		KeyCompilerPath:    c.CompilerPath,
		KeyIntermediateDir: c.IntermediateDir,
		KeyOutputDir:       c.OutputDir,
		KeyRegistryPath:    c.RegistryPath,
		KeyShaderModel:     c.ShaderModel,
	}

	for _, key := range keys {
		if strings.TrimSpace(values[key]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingValue, key)
		}
	}

	return nil
}

// Validate checks values and resolves paths to absolute form
func (c *Config) Validate() error {
	// A bare name is looked up in PATH at run time
	if strings.ContainsAny(c.CompilerPath, `/\`) {
		abs, err := filepath.Abs(c.CompilerPath)
		if err != nil {
			return fmt.Errorf("invalid compiler path: %v", err)
		}

		c.CompilerPath = abs
	}

	for _, p := range []*string{&c.IntermediateDir, &c.OutputDir, &c.RegistryPath} {
		if *p == "" {
			continue
		}

		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("invalid path %q: %v", *p, err)
		}

		*p = abs
	}

	if !utils.IsValidShaderModel(c.ShaderModel) {
		return fmt.Errorf("invalid shader model: %s", c.ShaderModel)
	}

	if c.Jobs < 0 {
		return fmt.Errorf("invalid jobs: %d", c.Jobs)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %s", c.Timeout)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if !slices.Contains(logging.Formats, strings.ToLower(c.LogFormat)) {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	return nil
}
