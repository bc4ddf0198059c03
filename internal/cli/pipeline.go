package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для управления pipeline.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage the task pipeline",
	}

	cmd.AddCommand(
		newPipelineShowCmd(clientFn, outputFn),
		newPipelineStatusCmd(clientFn, outputFn),
		newPipelineAppendCmd(clientFn, outputFn),
		newPipelineRunCmd(clientFn, outputFn),
		newPipelineStartCmd(clientFn, outputFn),
		newPipelineStopCmd(clientFn, outputFn),
		newPipelineClearCmd(clientFn, outputFn),
	)

	return cmd
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var showLogs bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show tasks, status and logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			p, err := clientFn().GetPipeline()
			if err != nil {
				return err
			}
			if out.IsJSON() {
				out.JSON(p)
				return nil
			}

			out.Line("Status: " + p.Status)
			printTasks(out, p.Tasks)

			if showLogs {
				for _, l := range p.Logs {
					if l.Type == "text" {
						out.Line(l.Content)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showLogs, "logs", false, "Print text log entries")

	return cmd
}

func newPipelineStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the pipeline is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			running, err := clientFn().IsRunning()
			if err != nil {
				return err
			}
			if out.IsJSON() {
				out.JSON(map[string]bool{"running": running})
				return nil
			}
			out.Line("running: " + strconv.FormatBool(running))
			return nil
		},
	}
}

func newPipelineAppendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "append FILE",
		Short: "Append tasks from a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			tasks, err := ReadTasksFile(args[0])
			if err != nil {
				return err
			}

			created, err := clientFn().AppendTasks(tasks)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(created)
				return nil
			}
			printTasks(out, created)
			out.Success(fmt.Sprintf("Appended %d tasks", len(created)))
			return nil
		},
	}
}

func newPipelineRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE",
		Short: "Replace the pipeline with tasks from a file and start it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			tasks, err := ReadTasksFile(args[0])
			if err != nil {
				return err
			}

			p, err := clientFn().RunTasks(tasks)
			if err != nil {
				return err
			}

			if out.IsJSON() {
				out.JSON(p)
				return nil
			}
			out.Success(fmt.Sprintf("Pipeline started with %d tasks", len(p.Tasks)))
			return nil
		},
	}
}

func newPipelineStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start pending tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			p, err := clientFn().Start()
			if err != nil {
				return err
			}
			if out.IsJSON() {
				out.JSON(p)
				return nil
			}
			out.Success("Pipeline started")
			return nil
		},
	}
}

func newPipelineStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the pipeline and the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			p, err := clientFn().Stop()
			if err != nil {
				return err
			}
			if out.IsJSON() {
				out.JSON(p)
				return nil
			}
			out.Success("Pipeline stopped")
			return nil
		},
	}
}

func newPipelineClearCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all tasks and logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().Clear(); err != nil {
				return err
			}
			outputFn().Success("Pipeline cleared")
			return nil
		},
	}
}

// NewTypesCmd создаёт команду списка видов task.
func NewTypesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List supported task types",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := clientFn().TaskTypes()
			if err != nil {
				return err
			}

			headers := []string{"TYPE", "NAME"}
			rows := make([][]string, len(types))
			for i, t := range types {
				rows[i] = []string{t.Type, t.Name}
			}

			outputFn().Print(headers, rows, types)
			return nil
		},
	}
}

func printTasks(out *Output, tasks []TaskResponse) {
	headers := []string{"ID", "NAME", "TYPE", "STATUS", "RETRIES", "BATCH"}
	rows := make([][]string, len(tasks))
	for i, t := range tasks {
		rows[i] = []string{t.ID, t.TaskName, t.TypeTag, t.Status, strconv.Itoa(t.MaxRetries), strconv.Itoa(t.Batch)}
	}
	out.Table(headers, rows)
}
