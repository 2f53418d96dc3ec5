package worker

import (
	"errors"
	"fmt"
)

// Ошибки воркера.
var (
	// ErrUnknownTaskKind — нет executor'а для данного типа узла.
	ErrUnknownTaskKind = errors.New("unknown task kind")

	// ErrInvalidPayload — в payload нет обязательного аргумента.
	ErrInvalidPayload = errors.New("invalid task payload")

	// ErrToolNotConfigured — для узла не задана команда внешнего инструмента.
	ErrToolNotConfigured = errors.New("tool not configured")

	// ErrToolFailed — внешний инструмент завершился с ненулевым кодом.
	ErrToolFailed = errors.New("external tool failed")

	// ErrRetryExhausted — все попытки retry исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ToolError — ошибка вызова внешнего инструмента.
type ToolError struct {
	Tool     string
	NodeID   string
	ExitCode int
	// Err — причина, если процесс не удалось запустить.
	Err error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool %s (node %s): %v", e.Tool, e.NodeID, e.Err)
	}
	return fmt.Sprintf("tool %s (node %s): exit code %d", e.Tool, e.NodeID, e.ExitCode)
}

func (e *ToolError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrToolFailed, e.Err}
	}
	return []error{ErrToolFailed}
}

// missingArg возвращает ошибку об отсутствующем аргументе.
func missingArg(key string) error {
	return fmt.Errorf("%w: missing %q", ErrInvalidPayload, key)
}
