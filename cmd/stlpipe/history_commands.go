package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"stlpipe/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the job ledger",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryLinksCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				records, err := store.ListJobs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No jobs recorded")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					outcome := rec.Link
					if rec.Reason != "" {
						outcome = rec.Reason
					}
					rows = append(rows, []string{
						shortID(rec.JobID),
						rec.ArtifactName,
						rec.State,
						strconv.Itoa(rec.Images),
						strconv.Itoa(rec.Models),
						rec.UpdatedAt.Local().Format(time.DateTime),
						outcome,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Archive", "State", "Images", "Models", "Updated", "Result"},
					rows,
					text.AlignLeft, text.AlignLeft, text.AlignLeft, text.AlignRight, text.AlignRight,
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum jobs to show (0 for all)")
	return cmd
}

func newHistoryLinksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "links",
		Short: "Show the latest public link per archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				links, err := store.ListLinks(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(links) == 0 {
					fmt.Fprintln(out, "No links published")
					return nil
				}
				rows := make([][]string, 0, len(links))
				for _, link := range links {
					rows = append(rows, []string{
						link.ArtifactName,
						link.URL,
						link.GeneratedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Archive", "Link", "Generated"}, rows))
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every ledger entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear history without --yes")
			}
			return ctx.withHistory(func(store *history.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
