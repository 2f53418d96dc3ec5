package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/mq"
	"github.com/shaiso/varflow/internal/orchestrator"
	"github.com/shaiso/varflow/internal/pipeline"
)

// Runner выполняет запуск конвейера (pipeline.Service).
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// RunRequestHandler возвращает обработчик очереди runs.pending.
//
// Исход сообщения:
//   - run выполнен, в том числе со статусом FAILED: ack
//   - повтор по ключу идемпотентности: ack
//   - неверный запрос или параметры: сразу в DLQ
//   - отмена и прочие ошибки: повтор, затем DLQ
func RunRequestHandler(runner Runner, logger *slog.Logger) mq.Handler {
	return func(ctx context.Context, d *mq.Delivery) error {
		if d.Message.Type != mq.MessageTypeRunRequested {
			return mq.Permanent(fmt.Errorf("unexpected message type %q", d.Message.Type))
		}

		payload, err := mq.ParsePayload[mq.RunRequestedPayload](&d.Message)
		if err != nil {
			return mq.Permanent(err)
		}

		req := pipeline.Request{
			Pipeline:       domain.PipelineKind(payload.Pipeline),
			ParamsFile:     payload.ParamsFile,
			IdempotencyKey: payload.IdempotencyKey,
		}
		log := logger.With(
			"message_id", d.Message.ID,
			"pipeline", req.Pipeline,
			"params", req.ParamsFile,
		)

		result, err := runner.Run(ctx, req)
		return settleRun(log, result, err)
	}
}

// settleRun переводит итог run в исход сообщения.
func settleRun(log *slog.Logger, result *pipeline.Result, err error) error {
	switch {
	case err == nil:
		log.Info("run succeeded", "run_id", result.Report.Run.ID)
		return nil

	case errors.Is(err, pipeline.ErrDuplicateRun):
		log.Info("duplicate run request ignored", "error", err)
		return nil

	case errors.Is(err, orchestrator.ErrRunFailed):
		// Итог записан в БД и опубликован в runs.finished
		log.Warn("run failed", "error", err)
		return nil

	case orchestrator.IsCancellation(err), errors.Is(err, pipeline.ErrRunLookup):
		return err

	case result == nil || result.Report == nil:
		// Run не начался: параметры, таблица или план не годятся
		log.Error("run request rejected", "error", err)
		return mq.Permanent(err)

	default:
		return err
	}
}

// Submitter ставит запуски расписаний в очередь runs.pending.
type Submitter struct {
	Requester interface {
		PublishRunRequested(ctx context.Context, payload mq.RunRequestedPayload) error
	}
}

// Submit реализует scheduler.Submitter.
func (s Submitter) Submit(ctx context.Context, req pipeline.Request) error {
	return s.Requester.PublishRunRequested(ctx, mq.RunRequestedPayload{
		Pipeline:       string(req.Pipeline),
		ParamsFile:     req.ParamsFile,
		IdempotencyKey: req.IdempotencyKey,
	})
}
