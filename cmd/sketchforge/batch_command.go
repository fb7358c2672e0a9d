package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"sketchforge/internal/logging"
	"sketchforge/internal/pipeline"
	"sketchforge/internal/services"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var flags promptFlags
	var concurrency int

	cmd := &cobra.Command{
		Use:   "batch <sketch>...",
		Short: "Run several sketches concurrently with the same prompts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requests := make([]pipeline.Request, 0, len(args))
			for _, path := range args {
				req, err := flags.request(path)
				if err != nil {
					return err
				}
				requests = append(requests, req)
			}
			app, err := ctx.openApp(cmd, flags.quiet)
			if err != nil {
				return err
			}
			defer app.Close()

			limit := concurrency
			if limit <= 0 {
				limit = app.cfg.Batch.Concurrency
			}
			dir, err := flags.outputDir(app.cfg)
			if err != nil {
				return fmt.Errorf("resolve output dir: %w", err)
			}

			started := time.Now()
			results := pipeline.RunBatch(cmd.Context(), app.controller, requests, limit)

			rows := make([][]string, 0, len(results))
			for i, res := range results {
				row := []string{strconv.Itoa(i + 1), args[i], "", "", ""}
				if res.Run != nil {
					row[2] = res.Run.SessionHash
				}
				if res.Err == nil && !flags.noDownload {
					saved, err := saveResult(cmd.Context(), app.client, res.Run, dir)
					if err != nil {
						results[i].Err = err
						res.Err = err
					} else {
						row[4] = saved
					}
				}
				switch {
				case res.Err != nil:
					row[3] = "failed: " + services.Kind(res.Err)
					row[4] = res.Err.Error()
				case row[4] == "":
					row[3] = "completed"
					row[4] = res.Run.FinalURL
				default:
					row[3] = "completed"
				}
				rows = append(rows, row)
			}

			summary := pipeline.Summarize(results, time.Since(started))
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Sketch", "Session", "Status", "Result"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d succeeded, %d failed in %s\n", summary.Succeeded, summary.Failed, summary.Duration.Round(time.Second))

			if err := app.notifier.NotifyBatchCompleted(cmd.Context(), summary.Succeeded, summary.Failed, summary.Duration); err != nil {
				app.logger.Warn("batch notification failed", logging.Error(err))
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d runs failed", summary.Failed, len(results))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Runs in flight at once (defaults to batch.concurrency)")
	return cmd
}
