package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/Norgate-AV/shaderbuild/internal/config"
	"github.com/Norgate-AV/shaderbuild/internal/history"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:          "stats [manifest]",
	Short:        "Show build history",
	Long:         `Show the last outcome, build count and binary size of every shader built so far.`,
	RunE:         runStats,
	SilenceUsage: true,
}

func runStats(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return usageErrorf("accepts at most one manifest argument")
	}

	cfg, err := config.NewLoader().LoadForMaintenance(cmd, args)
	if err != nil {
		return &usageError{err: err}
	}

	applyColor(cfg)
	out := cmd.OutOrStdout()

	if _, err := os.Stat(filepath.Join(cfg.IntermediateDir, history.DefaultFileName)); err != nil {
		fmt.Fprintln(out, "No build history.")
		return nil
	}

	store, err := history.Open(cfg.IntermediateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Entries()
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	stats, err := store.Stats()
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHADER\tBUILDS\tSIZE\tDURATION\tAT\tLAST")

	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			e.Name,
			e.Builds,
			formatSize(e.BinarySize),
			e.Duration.Round(time.Millisecond),
			e.Timestamp.Local().Format(time.DateTime),
			outcomeLabel(e.Outcome),
		)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d shaders, %d builds, %d failing, %s of binaries\n",
		stats.Units, stats.Builds, stats.Failed, formatSize(stats.BinarySize))

	return nil
}

func outcomeLabel(outcome history.Outcome) string {
	switch outcome {
	case history.Failed:
		return color.Red.Sprint(outcome)
	case history.Rebuilt:
		return color.Green.Sprint(outcome)
	default:
		return string(outcome)
	}
}

// formatSize formats bytes in human-readable format
func formatSize(bytes int64) string {
	const unit = 1024

	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
