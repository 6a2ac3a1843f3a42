package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deixis/overseer/internal/report"
)

func newInspectCmd(a *app) *cobra.Command {
	var stream string
	cmd := &cobra.Command{
		Use:   "inspect RUN_ID [pattern]",
		Short: "Search the captured output of a recorded run",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := report.ParseStream(stream)
			if err != nil {
				return err
			}
			if err := a.load(); err != nil {
				return err
			}
			defer a.shutdown()

			rec, err := a.store.Load(args[0])
			if err != nil {
				return err
			}
			var pattern string
			if len(args) == 2 {
				pattern = args[1]
			}
			matches := report.Grep(rec, s, pattern)

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), matches)
			}
			if len(matches) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No lines matching %q in run %s.\n", pattern, rec.ID)
				return &exitError{Code: 1}
			}
			fmt.Fprint(cmd.OutOrStdout(), formatMatches(rec, matches))
			return nil
		},
	}
	cmd.Flags().StringVarP(&stream, "stream", "s", "", "stdout or stderr (default both)")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.engine()
			if err != nil {
				return err
			}
			defer a.shutdown()

			recs, err := eng.History(limit)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatHistory(recs, time.Now()))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list (0 for all)")
	return cmd
}

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff RUN_A RUN_B",
		Short: "Compare the outcome and output of two recorded runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			defer a.shutdown()

			left, err := a.store.Load(args[0])
			if err != nil {
				return err
			}
			right, err := a.store.Load(args[1])
			if err != nil {
				return err
			}
			diff, err := report.Diff(left, right)
			if err != nil {
				return err
			}
			if diff == "" {
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("runs are equivalent"))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), diff)
			return &exitError{Code: 1}
		},
	}
}
