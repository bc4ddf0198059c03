package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewHistoryCmd создаёт группу команд истории запусков.
func NewHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect finished pipeline runs",
	}

	cmd.AddCommand(
		newHistoryListCmd(clientFn, outputFn),
		newHistoryShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newHistoryListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := clientFn().ListHistory(ListHistoryOpts{Status: status, Limit: limit})
			if err != nil {
				return err
			}

			headers := []string{"ID", "BATCH", "STATUS", "COMPLETED", "FINISHED", "DURATION"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.ID,
					strconv.Itoa(r.Batch),
					r.Status,
					strconv.Itoa(r.Completed) + "/" + strconv.Itoa(r.Tasks),
					r.FinishedAt,
					r.Duration,
				}
			}

			outputFn().Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (completed, failed, cancelled)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newHistoryShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a run with its tasks and logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			run, err := clientFn().GetRun(args[0])
			if err != nil {
				return err
			}
			if out.IsJSON() {
				out.JSON(run)
				return nil
			}

			out.Line("Run " + run.ID + " (" + run.Status + ")")
			printTasks(out, run.Tasks)
			for _, l := range run.Logs {
				out.Line(l.Content)
			}
			return nil
		},
	}
}
