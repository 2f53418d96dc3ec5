package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Ошибки оркестратора.
var (
	// ErrInvalidSpec — PipelineSpec не прошёл валидацию.
	ErrInvalidSpec = errors.New("invalid pipeline spec")

	// ErrRunAlreadyActive — run уже выполняется.
	ErrRunAlreadyActive = errors.New("run already being processed")

	// ErrRunFailed — run завершился с упавшими узлами.
	ErrRunFailed = errors.New("run failed")

	// ErrRunCancelled — run отменён до завершения.
	ErrRunCancelled = errors.New("run cancelled")
)

// RunFailedError — run завершился FAILED.
type RunFailedError struct {
	RunID uuid.UUID
	// Failed — упавшие узлы в топологическом порядке (без SKIPPED).
	Failed []string
	// Rejected — элементы, отброшенные при планировании.
	Rejected []string
	// Errs — ошибки упавших узлов, если они известны.
	Errs []error
}

func (e *RunFailedError) Error() string {
	var parts []string
	if len(e.Failed) > 0 {
		parts = append(parts, "failed nodes: "+strings.Join(e.Failed, ", "))
	}
	if len(e.Rejected) > 0 {
		parts = append(parts, fmt.Sprintf("%d rejected items", len(e.Rejected)))
	}
	return fmt.Sprintf("run %s failed: %s", e.RunID, strings.Join(parts, "; "))
}

func (e *RunFailedError) Unwrap() []error {
	return append([]error{ErrRunFailed}, e.Errs...)
}
