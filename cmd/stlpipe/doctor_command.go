package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stlpipe/internal/preflight"
	"stlpipe/internal/staging"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, free space, credentials, and external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, renderSectionHeader("Configuration", colorize))
			path := ctx.configPath
			if !ctx.configExists {
				path += " (defaults)"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, path, colorize))
			fmt.Fprintln(out, renderStatusLine("Upload enabled", statusInfo, yesNo(cfg.Upload.Enabled), colorize))
			fmt.Fprintln(out, renderStatusLine("History enabled", statusInfo, yesNo(cfg.History.Enabled), colorize))
			fmt.Fprintln(out, renderStatusLine("Watch source", statusInfo, cfg.Watch.Source, colorize))

			fmt.Fprintln(out, renderSectionHeader("Checks", colorize))
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				kind := statusOK
				switch {
				case !r.Passed && r.Optional:
					kind = statusWarn
				case !r.Passed:
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			fmt.Fprintln(out, renderSectionHeader("Scratch", colorize))
			workspaces, err := staging.ListDirectories(cfg.Paths.ScratchDir)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Workspaces", statusWarn, err.Error(), colorize))
			} else {
				var total int64
				for _, ws := range workspaces {
					total += ws.Size
				}
				kind := statusOK
				if len(workspaces) > 0 {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Workspaces", kind,
					fmt.Sprintf("%d left behind (%s)", len(workspaces), formatBytes(total)), colorize))
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(failed))
			}
			return nil
		},
	}
}
