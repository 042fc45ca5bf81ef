package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Norgate-AV/shaderbuild/internal/build"
	"github.com/Norgate-AV/shaderbuild/internal/config"
	"github.com/Norgate-AV/shaderbuild/internal/history"
	"github.com/Norgate-AV/shaderbuild/internal/watch"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:          "build <manifest>",
	Short:        "Build the shaders of a manifest",
	Long:         `Compile stale shaders of a manifest and regenerate their C++ sources.`,
	RunE:         runBuild,
	SilenceUsage: true,
}

func init() {
	buildCmd.Flags().BoolP("watch", "w", false, "Rebuild whenever a tracked file changes")
}

func runBuild(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return usageErrorf("requires exactly one manifest argument")
	}

	cfg, err := config.NewLoader().LoadForBuild(cmd, args)
	if err != nil {
		return &usageError{err: err}
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg)
	logger.Debug("Loaded configuration.",
		"manifest", cfg.ManifestPath,
		"compiler", cfg.CompilerPath,
		"intermediate", cfg.IntermediateDir,
		"out", cfg.OutputDir,
		"registry", cfg.RegistryPath,
	)

	watchMode, _ := cmd.Flags().GetBool("watch")
	if !watchMode {
		_, err := buildOnce(cmd.Context(), cmd, cfg, logger)
		return err
	}

	w := watch.New(func(ctx context.Context) []string {
		summary, err := buildOnce(ctx, cmd, cfg, logger)
		if err != nil && !errors.Is(err, build.ErrBuildFailed) {
			logger.Error("Build failed.", "error", err)
		}

		if summary == nil {
			return []string{cfg.ManifestPath}
		}

		return summary.Tracked
	}, logger)

	return w.Run(cmd.Context())
}

func buildOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*build.Summary, error) {
	start := time.Now()

	driver := build.New(cfg, logger)
	driver.Diagnostics = cmd.ErrOrStderr()

	summary, err := driver.Run(ctx)
	if summary != nil {
		printSummary(cmd.OutOrStdout(), summary, time.Since(start))
	}

	return summary, err
}

// printSummary writes the human readable result of a build
func printSummary(w io.Writer, summary *build.Summary, elapsed time.Duration) {
	for _, u := range summary.Units {
		if u.Outcome == history.Failed {
			fmt.Fprintf(w, "%s %s\n", color.Red.Sprint("FAILED"), u.Name)
		}
	}

	rebuilt := summary.Count(history.Rebuilt)
	fresh := summary.Count(history.Fresh)
	failed := summary.Count(history.Failed)

	status := color.Green.Sprint("Build succeeded")
	if !summary.Succeeded() {
		status = color.Red.Sprint("Build failed")
	}

	fmt.Fprintf(w, "%s: %d rebuilt, %d up to date, %d failed", status, rebuilt, fresh, failed)

	if n := len(summary.ManifestErrors); n > 0 {
		fmt.Fprintf(w, ", %d manifest errors", n)
	}

	fmt.Fprintf(w, " (%s)\n", elapsed.Round(time.Millisecond))
}
