package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParams — файл параметров не прошёл валидацию.
	ErrInvalidParams = errors.New("invalid pipeline params")

	// ErrExpectedCountRequired — gate.mode=watch без gate.expected.
	ErrExpectedCountRequired = errors.New("watch gate requires an expected count")

	// ErrWatchTimeoutRequired — gate.mode=watch без положительного timeout_sec.
	ErrWatchTimeoutRequired = errors.New("watch gate requires a positive timeout")

	// ErrNoWorkItems — после планирования не осталось ни одного элемента.
	ErrNoWorkItems = errors.New("no work items to run")

	// ErrUnknownPipeline — неизвестный тип конвейера.
	ErrUnknownPipeline = errors.New("unknown pipeline")
)

// Этапы, на которых элемент может быть отклонён.
const (
	StageSheet      = "sheet"
	StageClassify   = "classify"
	StageGroup      = "group"
	StageSynthesize = "synthesize"
)

// Rejection — элемент входа, исключённый из графа.
type Rejection struct {
	Stage string `json:"stage"`
	Err   error  `json:"-"`
}

// Error реализует интерфейс error.
func (r Rejection) Error() string {
	return fmt.Sprintf("%s: %v", r.Stage, r.Err)
}

// Unwrap возвращает причину.
func (r Rejection) Unwrap() error {
	return r.Err
}

// MarshalText позволяет выводить отклонение в JSON как строку.
func (r Rejection) MarshalText() ([]byte, error) {
	return []byte(r.Error()), nil
}

// splitJoined раскрывает ошибку errors.Join на составляющие.
func splitJoined(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

var (
	// ErrDuplicateRun — run с таким ключом идемпотентности уже был.
	ErrDuplicateRun = errors.New("run with this idempotency key already exists")

	// ErrRunLookup — не удалось проверить ключ идемпотентности.
	ErrRunLookup = errors.New("idempotency key lookup failed")
)
