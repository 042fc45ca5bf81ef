package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/Norgate-AV/shaderbuild/internal/build"
	"github.com/Norgate-AV/shaderbuild/internal/cache"
	"github.com/Norgate-AV/shaderbuild/internal/config"
	"github.com/Norgate-AV/shaderbuild/internal/manifest"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:          "status <manifest>",
	Short:        "Show which shaders the next build would compile",
	RunE:         runStatus,
	SilenceUsage: true,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return usageErrorf("requires exactly one manifest argument")
	}

	cfg, err := config.NewLoader().LoadForMaintenance(cmd, args)
	if err != nil {
		return &usageError{err: err}
	}

	applyColor(cfg)

	units, problems, err := manifest.Load(cfg.ManifestPath, cfg.ShaderModel)
	if err != nil {
		return err
	}

	for _, problem := range problems {
		fmt.Fprintln(cmd.ErrOrStderr(), problem)
	}

	records, err := cache.Load(cache.Path(cfg.IntermediateDir))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	for _, unit := range units {
		record, ok := records[unit.Name]
		fmt.Fprintf(tw, "%s\t%s\n", unit.Name, unitStatus(record, ok))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	if len(problems) > 0 {
		return build.ErrBuildFailed
	}

	return nil
}

// unitStatus describes whether a unit would be rebuilt
func unitStatus(record cache.Record, cached bool) string {
	if !cached {
		return color.Yellow.Sprint("new")
	}

	if stale, reason := cache.Check(record); stale {
		return color.Yellow.Sprintf("stale (%s)", reason)
	}

	return color.Green.Sprint("up-to-date")
}
