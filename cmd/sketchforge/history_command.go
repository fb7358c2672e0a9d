package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sketchforge/internal/history"
	"sketchforge/internal/pipeline"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *history.Store) error {
				runs, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						strconv.FormatInt(run.ID, 10),
						run.SessionHash,
						string(run.Status),
						run.CreatedAt.Local().Format(time.DateTime),
						truncate(run.Prompt, 40),
						runOutcome(run),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Session", "Status", "Started", "Prompt", "Outcome"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session>",
		Short: "Show one run with its stage outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *history.Store) error {
				run, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("no run with session %q", args[0])
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session:  %s\n", run.SessionHash)
				fmt.Fprintf(out, "Status:   %s\n", run.Status)
				fmt.Fprintf(out, "Source:   %s\n", run.Source)
				fmt.Fprintf(out, "Prompt:   %s\n", run.Prompt)
				if run.NegativePrompt != "" {
					fmt.Fprintf(out, "Negative: %s\n", run.NegativePrompt)
				}
				fmt.Fprintf(out, "Duration: %s\n", run.Duration().Round(time.Millisecond))
				if run.Status == history.StatusFailed {
					fmt.Fprintf(out, "Failure:  %s\n", runOutcome(run))
				}
				if len(run.Stages) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(run.Stages))
				for _, st := range run.Stages {
					rows = append(rows, []string{pipeline.StageName(st.Stage), st.Path, st.URL})
				}
				fmt.Fprintln(out, renderTable([]string{"Stage", "Path", "URL"}, rows, nil))
				return nil
			})
		},
	}
}

func runOutcome(run *history.Run) string {
	switch run.Status {
	case history.StatusCompleted:
		return run.FinalPath
	case history.StatusFailed:
		stage := "unknown stage"
		if run.FailedStage != nil {
			stage = pipeline.StageName(*run.FailedStage)
		}
		return fmt.Sprintf("%s at %s: %s", run.ErrorKind, stage, truncate(run.ErrorMessage, 60))
	default:
		return ""
	}
}

func truncate(value string, limit int) string {
	runes := []rune(strings.Join(strings.Fields(value), " "))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-3]) + "..."
}
