package main

import (
	"github.com/spf13/cobra"

	"stlpipe/internal/daemonrun"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the single-instance daemon fed by Telegram or an inbox folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{Verbose: ctx.isVerbose()})
		},
	}
}
