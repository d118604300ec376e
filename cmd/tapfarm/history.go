package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tapfarm/internal/config"
	"tapfarm/internal/store/sqlite"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	var limit int
	var passID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent passes, or one pass's account outcomes with --pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := sqlite.Open(cmd.Context(), cfg.Storage.SQLitePath)
			if err != nil {
				return fmt.Errorf("open sqlite: %w", err)
			}
			defer store.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if passID != "" {
				outcomes, err := store.ListOutcomes(cmd.Context(), passID)
				if err != nil {
					return err
				}
				if len(outcomes) == 0 {
					return fmt.Errorf("pass %s not found", passID)
				}
				fmt.Fprintln(tw, "ACCOUNT\tSTATUS\tPHASE\tLEVEL_UP\tTASKS\tTAPS\tGOLD\tBAR\tERROR")
				for _, o := range outcomes {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%d\t%d/%d\t%s\n",
						o.Label, o.Status, o.Phase, o.LevelUp,
						o.TasksFinished, o.TasksFinished+o.TasksFailed,
						o.Taps, o.Gold, o.LastBar.AvailableAmount, o.LastBar.MaxAmount, o.Error)
				}
				return tw.Flush()
			}

			passes, err := store.ListPasses(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(passes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no passes recorded")
				return nil
			}
			fmt.Fprintln(tw, "SEQ\tID\tSTARTED\tDURATION\tCOMPLETED\tABORTED\tGOLD")
			for _, p := range passes {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\n",
					p.Seq, p.ID, p.StartedAt.Format("2006-01-02 15:04:05"),
					p.FinishedAt.Sub(p.StartedAt).Round(time.Second), p.Completed, p.Aborted, p.Gold)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of passes")
	cmd.Flags().StringVar(&passID, "pass", "", "show account outcomes of one pass")
	return cmd
}
