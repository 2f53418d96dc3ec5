package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/orchestrator"
	"github.com/shaiso/varflow/internal/pipeline"
)

// NewLoadCmd создаёт команду запуска конвейера variant-load.
func NewLoadCmd(serviceFn func() *pipeline.Service, outputFn func() *Output) *cobra.Command {
	return newPipelineCmd(domain.PipelineLoad,
		"load PARAMS_FILE",
		"Merge, configure and load VCF files into the variant warehouse",
		serviceFn, outputFn)
}

// NewAccessionCmd создаёт команду запуска конвейера accession.
func NewAccessionCmd(serviceFn func() *pipeline.Service, outputFn func() *Output) *cobra.Command {
	return newPipelineCmd(domain.PipelineAccession,
		"accession PARAMS_FILE",
		"Assign accessions, compress, index and publish VCF files",
		serviceFn, outputFn)
}

func newPipelineCmd(kind domain.PipelineKind, use, short string, serviceFn func() *pipeline.Service, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := serviceFn()
			out := outputFn()

			result, err := svc.Run(cmd.Context(), pipeline.Request{
				Pipeline:   kind,
				ParamsFile: args[0],
			})
			if result != nil {
				out.Rejections(result.Plan)
				if result.Report != nil {
					printReport(out, result.Report)
				}
			}
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run succeeded: %s", result.Report.Run.ID))
			return nil
		},
	}
}

// printReport выводит tasks run таблицей или JSON.
func printReport(out *Output, report *orchestrator.Report) {
	headers := []string{"NODE", "KIND", "LABEL", "STATUS", "ATTEMPT", "ERROR"}
	rows := make([][]string, len(report.Tasks))
	for i, t := range report.Tasks {
		rows[i] = []string{t.NodeID, string(t.Kind), t.Label, string(t.Status), strconv.Itoa(t.Attempt), t.Error}
	}
	out.Print(headers, rows, report)
}

// NewPlanCmd создаёт команду, показывающую граф без выполнения.
func NewPlanCmd(serviceFn func() *pipeline.Service, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "plan PIPELINE PARAMS_FILE",
		Short: "Show the task graph a pipeline would run",
		Long: "Show the task graph a pipeline would run.\n\n" +
			"PIPELINE is one of: " + string(domain.PipelineLoad) + ", " + string(domain.PipelineAccession) + ".",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := serviceFn()
			out := outputFn()

			_, plan, err := svc.Prepare(pipeline.Request{
				Pipeline:   domain.PipelineKind(args[0]),
				ParamsFile: args[1],
			})
			if err != nil {
				return err
			}

			out.Rejections(plan)

			headers := []string{"NODE", "KIND", "LABEL", "DEPENDS_ON"}
			rows := make([][]string, len(plan.Spec.Tasks))
			for i, t := range plan.Spec.Tasks {
				rows[i] = []string{t.ID, string(t.Kind), t.Label, strings.Join(t.DependsOn, ",")}
			}
			out.Print(headers, rows, plan)

			if plan.Empty() {
				return errors.Join(pipeline.ErrNoWorkItems, plan.Err())
			}
			return nil
		},
	}
}
