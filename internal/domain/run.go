package domain

import (
	"time"

	"github.com/google/uuid"
)

// PipelineKind — тип конвейера.
type PipelineKind string

const (
	// PipelineLoad — загрузка и аннотация вариантов.
	PipelineLoad PipelineKind = "variant-load"

	// PipelineAccession — присвоение accession и публикация.
	PipelineAccession PipelineKind = "accession"
)

// IsValid проверяет, что тип конвейера известен.
func (k PipelineKind) IsValid() bool {
	return k == PipelineLoad || k == PipelineAccession
}

// Run — экземпляр выполнения конвейера.
//
// Run создаётся когда:
// - Пользователь запускает конвейер через CLI
// - Демон получает запрос из очереди runs.pending
// - Срабатывает cron-расписание демона
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Pipeline — какой конвейер выполняется.
	Pipeline PipelineKind `json:"pipeline"`

	// ParamsFile — путь к YAML-файлу параметров, из которого построен граф.
	ParamsFile string `json:"params_file"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности для запусков по расписанию:
	// "{schedule_name}_{due_unix}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING.
func NewRun(kind PipelineKind, paramsFile string) *Run {
	return &Run{
		ID:         uuid.New(),
		Pipeline:   kind,
		ParamsFile: paramsFile,
		Status:     RunStatusPending,
		CreatedAt:  time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// MarkCancelled переводит run в статус CANCELLED.
func (r *Run) MarkCancelled() {
	now := time.Now()
	r.Status = RunStatusCancelled
	r.FinishedAt = &now
}
