package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/montarelab/rev-ai/internal/storage"
	"github.com/montarelab/rev-ai/internal/wire"
)

var (
	outputJSON  bool
	statusLimit int
)

var statusCmd = &cobra.Command{
	Use:   "status [task_id]",
	Short: "Shows recent review runs, or the details of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, cleanup, err := wire.InitializeApp(ctx, cfg, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		if len(args) == 1 {
			return showRun(ctx, app.Runs, args[0])
		}

		runs, err := app.Runs.ListRuns(ctx, statusLimit)
		if err != nil {
			return fmt.Errorf("failed to retrieve runs: %w", err)
		}

		if outputJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(runs)
		}

		if len(runs) == 0 {
			infoColor.Println("No review runs recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TASK ID\tPROJECT\tSOURCE → TARGET\tVERDICT\tFINISHED")
		for _, run := range runs {
			verdict := string(run.Verdict)
			if run.Partial {
				verdict += " (partial)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s → %s\t%s\t%s\n",
				run.TaskID,
				run.ProjectPath,
				run.SourceBranch,
				run.TargetBranch,
				verdict,
				run.FinishedAt.Format(time.RFC822),
			)
		}
		return w.Flush()
	},
}

func showRun(ctx context.Context, runs storage.Store, taskID string) error {
	rep, err := runs.GetRun(ctx, taskID)
	if errors.Is(err, storage.ErrRunNotFound) {
		return fmt.Errorf("no review run with task id %s", taskID)
	}
	if err != nil {
		return fmt.Errorf("failed to retrieve run %s: %w", taskID, err)
	}

	if outputJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rep)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "TASK ID\t%s\n", rep.Task.ID)
	fmt.Fprintf(w, "PROJECT\t%s\n", rep.ProjectPath)
	fmt.Fprintf(w, "BRANCHES\t%s → %s\n", rep.SourceBranch, rep.TargetBranch)
	fmt.Fprintf(w, "DURATION\t%s\n", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FILE\tSTATUS\tDURATION\tERROR")
	for _, o := range rep.Outcomes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.FilePath, o.Status, o.Duration.Round(time.Millisecond), o.Error)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	printSummary(rep)
	return nil
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	statusCmd.Flags().BoolVar(&outputJSON, "json", false, "Output status as JSON")
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "Number of runs to list")
	rootCmd.AddCommand(statusCmd)
}
