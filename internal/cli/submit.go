package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/mq"
)

// RunRequester ставит запуск в очередь демона (mq.Publisher).
type RunRequester interface {
	PublishRunRequested(ctx context.Context, payload mq.RunRequestedPayload) error
}

// NewSubmitCmd создаёт команду, передающую запуск демону через runs.pending.
//
// requesterFn открывает соединение с брокером и возвращает функцию закрытия.
func NewSubmitCmd(requesterFn func(ctx context.Context) (RunRequester, func(), error), outputFn func() *Output) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "submit PIPELINE PARAMS_FILE",
		Short: "Queue a pipeline run for the daemon",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			kind := domain.PipelineKind(args[0])
			if !kind.IsValid() {
				return fmt.Errorf("unknown pipeline %q", args[0])
			}

			// Демон читает файл у себя: передаём абсолютный путь
			paramsFile, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("resolve params file: %w", err)
			}

			requester, closeFn, err := requesterFn(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			payload := mq.RunRequestedPayload{
				Pipeline:       string(kind),
				ParamsFile:     paramsFile,
				IdempotencyKey: key,
			}
			if err := requester.PublishRunRequested(cmd.Context(), payload); err != nil {
				return fmt.Errorf("submit run: %w", err)
			}

			out.Success(fmt.Sprintf("Run queued: %s %s", kind, paramsFile))
			if out.jsonMode {
				out.JSON(payload)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "idempotency-key", "", "Skip the run if one with this key already exists")

	return cmd
}
