package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/repo"
)

// RunHistory — чтение учёта runs (repo.RunRepo и repo.TaskRepo).
type RunHistory interface {
	ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
	ListTasks(ctx context.Context, runID uuid.UUID) ([]domain.Task, error)
}

// NewRunsCmd создаёт группу команд просмотра истории runs.
func NewRunsCmd(historyFn func(ctx context.Context) (RunHistory, func(), error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded runs",
	}

	cmd.AddCommand(
		newRunsListCmd(historyFn, outputFn),
		newRunsTasksCmd(historyFn, outputFn),
	)

	return cmd
}

func newRunsListCmd(historyFn func(ctx context.Context) (RunHistory, func(), error), outputFn func() *Output) *cobra.Command {
	var pipelineKind, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, closeFn, err := historyFn(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			out := outputFn()

			runs, err := history.ListRuns(cmd.Context(), repo.RunFilter{
				Pipeline: domain.PipelineKind(pipelineKind),
				Status:   domain.RunStatus(status),
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "PIPELINE", "STATUS", "PARAMS", "DURATION", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.ID.String(), string(r.Pipeline), string(r.Status), r.ParamsFile,
					r.Duration().Round(time.Second).String(), r.CreatedAt.Format(time.RFC3339),
				}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineKind, "pipeline", "", "Filter by pipeline (variant-load, accession)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunsTasksCmd(historyFn func(ctx context.Context) (RunHistory, func(), error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks RUN_ID",
		Short: "List tasks in a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			history, closeFn, err := historyFn(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			out := outputFn()

			tasks, err := history.ListTasks(cmd.Context(), runID)
			if err != nil {
				return err
			}

			headers := []string{"NODE", "KIND", "LABEL", "STATUS", "ATTEMPT", "ERROR"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.NodeID, string(t.Kind), t.Label, string(t.Status), strconv.Itoa(t.Attempt), t.Error}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}
}

// History объединяет репозитории runs и tasks.
type History struct {
	Runs  *repo.RunRepo
	Tasks *repo.TaskRepo
}

// ListRuns реализует RunHistory.
func (h History) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	return h.Runs.List(ctx, filter)
}

// ListTasks реализует RunHistory.
func (h History) ListTasks(ctx context.Context, runID uuid.UUID) ([]domain.Task, error) {
	return h.Tasks.ListByRunID(ctx, runID)
}
