package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskKind — тип узла графа конвейера.
type TaskKind string

const (
	// KindSymlink — символическая ссылка на единственный файл группы.
	KindSymlink TaskKind = "symlink"

	// KindMerge — слияние файлов группы внешним инструментом.
	KindMerge TaskKind = "merge"

	// KindWriteConfig — запись синтезированной конфигурации задания.
	KindWriteConfig TaskKind = "write-config"

	// KindLoad — загрузка/аннотация (eva-pipeline).
	KindLoad TaskKind = "load"

	// KindAccession — присвоение accession.
	KindAccession TaskKind = "accession"

	// KindCompress — сжатие bgzip.
	KindCompress TaskKind = "compress"

	// KindIndex — индекс сжатого файла (.tbi или .csi).
	KindIndex TaskKind = "index"

	// KindPublish — копирование в публичное хранилище.
	KindPublish TaskKind = "publish"

	// KindStaticGate — ожидание фиксированного набора узлов.
	KindStaticGate TaskKind = "static-gate"

	// KindWatchGate — ожидание заданного количества файлов в каталоге.
	KindWatchGate TaskKind = "watch-gate"

	// KindSummary — финальная агрегация: отчёт о run.
	KindSummary TaskKind = "summary"
)

// IsGate возвращает true для узлов синхронизации.
// Такие узлы блокируются надолго и не занимают слот параллелизма.
func (k TaskKind) IsGate() bool {
	return k == KindStaticGate || k == KindWatchGate
}

// PipelineSpec — граф конвейера, готовый к выполнению.
type PipelineSpec struct {
	// Name — имя конвейера (для логов).
	Name string `json:"name"`

	// Tasks — узлы графа.
	Tasks []TaskDef `json:"tasks"`

	// Retry — политика повторов для вызовов внешних инструментов.
	Retry *RetryPolicy `json:"retry,omitempty"`

	// Rejected — элементы входа, отброшенные при планировании.
	// Непустой список завершает run статусом FAILED.
	Rejected []string `json:"rejected,omitempty"`
}

// TaskDef — определение узла графа.
type TaskDef struct {
	// ID — уникальный идентификатор узла в рамках графа.
	ID string `json:"id"`

	// Kind — тип узла.
	Kind TaskKind `json:"kind"`

	// DependsOn — узлы, которые должны завершиться раньше.
	// Для static-gate это и есть ожидаемый набор.
	DependsOn []string `json:"depends_on,omitempty"`

	// Args — аргументы исполнителя (пути, конфигурация и т.п.).
	Args map[string]any `json:"args,omitempty"`

	// Producers — узлы, чьи результаты ожидает watch-gate. Рёбер DAG
	// не создаёт: если все производители завершились, а успешных меньше
	// ожидаемого, gate прерывается досрочно.
	Producers []string `json:"producers,omitempty"`

	// Label — атрибуция для логов и ошибок: группа, файл или gate.
	Label string `json:"label,omitempty"`
}

// RetryPolicy — политика повторных попыток.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`

	// Backoff — стратегия задержки: "fixed", "exponential".
	Backoff string `json:"backoff,omitempty" yaml:"backoff,omitempty"`

	// InitialDelayMs — начальная задержка в миллисекундах.
	InitialDelayMs int `json:"initial_delay_ms,omitempty" yaml:"initial_delay_ms,omitempty"`

	// MaxDelayMs — максимальная задержка в миллисекундах.
	MaxDelayMs int `json:"max_delay_ms,omitempty" yaml:"max_delay_ms,omitempty"`
}

// Task — отдельная единица работы внутри run.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// NodeID — ID узла графа (TaskDef.ID).
	NodeID string `json:"node_id"`

	// Kind — тип узла.
	Kind TaskKind `json:"kind"`

	// Label — атрибуция (группа, файл, gate).
	Label string `json:"label,omitempty"`

	// Attempt — номер попытки (начиная с 1).
	Attempt int `json:"attempt"`

	// Status — текущий статус task.
	Status TaskStatus `json:"status"`

	// Payload — аргументы узла плюс outputs зависимостей под ключом "inputs".
	Payload map[string]any `json:"payload,omitempty"`

	// Outputs — результаты выполнения.
	Outputs map[string]any `json:"outputs,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания task.
	CreatedAt time.Time `json:"created_at"`
}

// NewTask создаёт task в статусе QUEUED для узла графа.
func NewTask(runID uuid.UUID, def *TaskDef, payload map[string]any) *Task {
	return &Task{
		ID:        uuid.New(),
		RunID:     runID,
		NodeID:    def.ID,
		Kind:      def.Kind,
		Label:     def.Label,
		Status:    TaskStatusQueued,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если task завершён.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning переводит task в статус RUNNING.
func (t *Task) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
	t.Attempt++
}

// MarkSucceeded переводит task в статус SUCCEEDED с результатами.
func (t *Task) MarkSucceeded(outputs map[string]any) {
	now := time.Now()
	t.Status = TaskStatusSucceeded
	t.FinishedAt = &now
	t.Outputs = outputs
}

// MarkFailed переводит task в статус FAILED с ошибкой.
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = err
}

// MarkFailedWithOutputs — как MarkFailed, но сохраняет частичные результаты
// (например, результаты успешных узлов для gate с PartialFailure).
func (t *Task) MarkFailedWithOutputs(err string, outputs map[string]any) {
	t.MarkFailed(err)
	t.Outputs = outputs
}

// MarkSkipped переводит task в статус SKIPPED.
func (t *Task) MarkSkipped(reason string) {
	now := time.Now()
	t.Status = TaskStatusSkipped
	t.FinishedAt = &now
	t.Error = reason
}

// ResetForRetry подготавливает task для повторной попытки.
// Сбрасывает статус в QUEUED, очищает ошибку.
func (t *Task) ResetForRetry() {
	t.Status = TaskStatusQueued
	t.StartedAt = nil
	t.FinishedAt = nil
	t.Error = ""
	// Attempt увеличится при следующем MarkRunning()
}

// CanRetry проверяет, можно ли сделать ещё одну попытку.
func (t *Task) CanRetry(maxAttempts int) bool {
	return t.Attempt < maxAttempts
}
