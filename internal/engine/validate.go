package engine

import (
	"fmt"

	"github.com/shaiso/varflow/internal/domain"
)

// Допустимые типы узлов.
var validTaskKinds = map[domain.TaskKind]bool{
	domain.KindSymlink:     true,
	domain.KindMerge:       true,
	domain.KindWriteConfig: true,
	domain.KindLoad:        true,
	domain.KindAccession:   true,
	domain.KindCompress:    true,
	domain.KindIndex:       true,
	domain.KindPublish:     true,
	domain.KindStaticGate:  true,
	domain.KindWatchGate:   true,
	domain.KindSummary:     true,
}

// Validate выполняет полную валидацию PipelineSpec.
//
// Проверяет:
// - Наличие узлов
// - Уникальность ID
// - Корректность типов
// - Валидность зависимостей (depends_on)
// - Непустой набор ожидания у static-gate
//
// Циклы обнаруживает BuildDAG.
func Validate(spec *domain.PipelineSpec) error {
	if spec == nil || len(spec.Tasks) == 0 {
		return ErrEmptyTasks
	}

	taskIDs := make(map[string]bool, len(spec.Tasks))
	for i := range spec.Tasks {
		if err := ValidateTask(&spec.Tasks[i], taskIDs); err != nil {
			return err
		}
	}

	for i := range spec.Tasks {
		task := &spec.Tasks[i]
		for _, dep := range task.DependsOn {
			if !taskIDs[dep] {
				return NewValidationError(task.ID, "depends_on",
					fmt.Sprintf("depends on unknown task: %s", dep), ErrMissingDependency)
			}
		}
		for _, p := range task.Producers {
			if !taskIDs[p] {
				return NewValidationError(task.ID, "producers",
					fmt.Sprintf("unknown producer task: %s", p), ErrMissingDependency)
			}
		}
	}

	return nil
}

// ValidateTask валидирует один узел.
// taskIDs — уже встреченные ID (для проверки уникальности).
func ValidateTask(task *domain.TaskDef, taskIDs map[string]bool) error {
	if task.ID == "" {
		return NewValidationError("", "id", "task has empty ID", ErrEmptyTaskID)
	}

	if taskIDs[task.ID] {
		return NewValidationError(task.ID, "id",
			fmt.Sprintf("duplicate task ID: %s", task.ID), ErrDuplicateTaskID)
	}
	taskIDs[task.ID] = true

	if !validTaskKinds[task.Kind] {
		return NewValidationError(task.ID, "kind",
			fmt.Sprintf("unknown task kind: %q", task.Kind), ErrUnknownTaskKind)
	}

	for _, dep := range task.DependsOn {
		if dep == task.ID {
			return NewValidationError(task.ID, "depends_on",
				"task depends on itself", ErrSelfDependency)
		}
	}

	if task.Kind == domain.KindStaticGate && len(task.DependsOn) == 0 {
		return NewValidationError(task.ID, "depends_on",
			"static gate has no upstream tasks", ErrEmptyGate)
	}

	return nil
}

// IsValidTaskKind проверяет, является ли тип узла допустимым.
func IsValidTaskKind(kind domain.TaskKind) bool {
	return validTaskKinds[kind]
}
