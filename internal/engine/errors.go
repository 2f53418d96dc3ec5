package engine

import (
	"errors"
	"fmt"

	"github.com/shaiso/varflow/internal/domain"
)

// Ошибки валидации графа.
var (
	// ErrEmptyTasks — граф не содержит узлов.
	ErrEmptyTasks = errors.New("pipeline spec has no tasks")

	// ErrEmptyTaskID — узел не имеет ID.
	ErrEmptyTaskID = errors.New("task has empty ID")

	// ErrDuplicateTaskID — несколько узлов с одинаковым ID.
	ErrDuplicateTaskID = errors.New("duplicate task ID")

	// ErrUnknownTaskKind — неизвестный тип узла.
	ErrUnknownTaskKind = errors.New("unknown task kind")

	// ErrMissingDependency — узел зависит от несуществующего узла.
	ErrMissingDependency = errors.New("task depends on unknown task")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrSelfDependency — узел зависит от самого себя.
	ErrSelfDependency = errors.New("task depends on itself")

	// ErrEmptyGate — static-gate без ожидаемых узлов.
	ErrEmptyGate = errors.New("static gate has no upstream tasks")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// Ошибки классификации и группировки.
var (
	// ErrUnknownAggregationMode — режим агрегации не найден в таблице классов.
	ErrUnknownAggregationMode = errors.New("unknown aggregation mode")

	// ErrMissingAggregationMode — режим агрегации не указан.
	ErrMissingAggregationMode = errors.New("missing aggregation mode")

	// ErrGroupNotHomogeneous — участники группы расходятся во вспомогательных полях.
	ErrGroupNotHomogeneous = errors.New("group members are not homogeneous")

	// ErrEmptyGroup — группа без участников.
	ErrEmptyGroup = errors.New("group has no members")
)

// ValidationError — ошибка валидации графа с контекстом.
type ValidationError struct {
	TaskID  string // ID узла, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.TaskID != "" {
		return "task " + e.TaskID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(taskID, field, message string, err error) *ValidationError {
	return &ValidationError{
		TaskID:  taskID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// ClassificationError — строка таблицы, которую не удалось классифицировать.
type ClassificationError struct {
	SourceFile string
	Row        int
	Index      int // позиция строки во входном срезе
	Mode       domain.AggregationMode
	Err        error // ErrUnknownAggregationMode или ErrMissingAggregationMode
}

// Error реализует интерфейс error.
func (e *ClassificationError) Error() string {
	if e.Mode == "" {
		return fmt.Sprintf("row %d (%s): %v", e.Row, e.SourceFile, e.Err)
	}
	return fmt.Sprintf("row %d (%s): %v %q", e.Row, e.SourceFile, e.Err, e.Mode)
}

// Unwrap возвращает базовую ошибку.
func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// GroupError — группа, участники которой расходятся в поле Field.
type GroupError struct {
	GroupKey string
	Field    string
}

// Error реализует интерфейс error.
func (e *GroupError) Error() string {
	return fmt.Sprintf("group %s: %v: %s differs", e.GroupKey, ErrGroupNotHomogeneous, e.Field)
}

// Unwrap возвращает базовую ошибку.
func (e *GroupError) Unwrap() error {
	return ErrGroupNotHomogeneous
}
