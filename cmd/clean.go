package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/shaderbuild/internal/cache"
	"github.com/Norgate-AV/shaderbuild/internal/config"
	"github.com/Norgate-AV/shaderbuild/internal/history"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:          "clean [manifest]",
	Short:        "Remove intermediate files, the dependency cache and build history",
	RunE:         runClean,
	SilenceUsage: true,
}

func runClean(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return usageErrorf("accepts at most one manifest argument")
	}

	cfg, err := config.NewLoader().LoadForMaintenance(cmd, args)
	if err != nil {
		return &usageError{err: err}
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg)

	outputs, err := cache.CollectIntermediates(cfg.IntermediateDir)
	if err != nil {
		return err
	}

	if err := cache.RemoveArtifacts(cfg.IntermediateDir, outputs); err != nil {
		return err
	}

	logger.Debug("Removed intermediate files.", "dir", cfg.IntermediateDir, "files", len(outputs))

	if _, err := os.Stat(filepath.Join(cfg.IntermediateDir, history.DefaultFileName)); err == nil {
		store, err := history.Open(cfg.IntermediateDir)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d intermediate files from %s\n", len(outputs), cfg.IntermediateDir)

	return nil
}
