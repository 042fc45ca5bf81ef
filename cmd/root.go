package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Norgate-AV/shaderbuild/internal/build"
	"github.com/Norgate-AV/shaderbuild/internal/codes"
	"github.com/Norgate-AV/shaderbuild/internal/config"
	"github.com/Norgate-AV/shaderbuild/internal/logging"
	"github.com/Norgate-AV/shaderbuild/internal/version"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shaderbuild <manifest>",
	Short: "Incremental shader build driver",
	Long: `Compile the shaders listed in a manifest, rebuilding only those whose
sources or includes changed, and generate C++ sources embedding the binaries.`,
	RunE:          runBuild,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
}

// usageError marks errors caused by bad arguments or configuration
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil && !errors.Is(err, build.ErrBuildFailed) {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.Red.Sprint("error:"), err)
	}

	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	var usage *usageError

	switch {
	case err == nil:
		return codes.Success
	case errors.As(err, &usage), errors.Is(err, config.ErrMissingValue):
		return codes.ConfigError
	default:
		return codes.BuildFailed
	}
}

func init() {
	rootCmd.Version = version.String()
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := rootCmd.PersistentFlags()
	flags.String("compiler", "", "Shader compiler executable (default \"dxc\")")
	flags.StringArray("compiler-arg", nil, "Extra argument passed to every compiler invocation (repeatable)")
	flags.StringP("intermediate", "i", "", "Directory for compiler binaries, debug symbols and the dependency cache")
	flags.StringP("out", "o", "", "Directory for generated shader sources")
	flags.StringP("registry", "r", "", "Path of the generated shader registry source")
	flags.StringP("shader-model", "m", "", "Shader model for profiles derived from unit names (e.g. 6_6)")
	flags.IntP("jobs", "j", 0, "Maximum shaders compiled at once (0 = one per CPU)")
	flags.Duration("timeout", 0, "Limit for a single compiler invocation (0 = none)")
	flags.BoolP("force", "f", false, "Rebuild every shader regardless of the dependency cache")
	flags.String("namespace", "", "C++ namespace of the generated code")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (text, json)")
	flags.Bool("no-color", false, "Disable colored output")
	flags.Bool("no-history", false, "Do not record build history")

	rootCmd.Flags().BoolP("watch", "w", false, "Rebuild whenever a tracked file changes")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cleanCmd)
}

// applyColor turns colored output off when configured
func applyColor(cfg *config.Config) {
	if cfg.NoColor {
		color.Enable = false
	}
}

// newLogger builds the logger for cfg and applies the color setting
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	applyColor(cfg)

	return logging.New(cfg.LogLevel, cfg.LogFormat, w)
}
