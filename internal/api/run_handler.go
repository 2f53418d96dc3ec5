package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/mq"
	"github.com/shaiso/varflow/internal/repo"
	"github.com/shaiso/varflow/internal/validate"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?pipeline=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.RunFilter{
		Pipeline: domain.PipelineKind(q.Get("pipeline")),
		Status:   domain.RunStatus(q.Get("status")),
		Limit:    parseInt(q.Get("limit"), 50),
		Offset:   parseInt(q.Get("offset"), 0),
	}

	if filter.Pipeline != "" && !filter.Pipeline.IsValid() {
		BadRequest(w, "invalid pipeline")
		return
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// CreateRun ставит запуск конвейера в очередь runs.pending.
// POST /api/v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	if h.requester == nil {
		Unavailable(w, "run queue is not configured")
		return
	}

	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		BadRequest(w, err.Error())
		return
	}
	if !filepath.IsAbs(req.ParamsFile) {
		BadRequest(w, "params_file must be an absolute path")
		return
	}

	payload := mq.RunRequestedPayload{
		Pipeline:       req.Pipeline,
		ParamsFile:     req.ParamsFile,
		IdempotencyKey: req.IdempotencyKey,
	}
	if err := h.requester.PublishRunRequested(r.Context(), payload); err != nil {
		h.log(r).Error("failed to queue run", "error", err)
		Unavailable(w, "failed to queue run")
		return
	}

	Accepted(w, payload)
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// ListRunTasks возвращает задачи run.
// GET /api/v1/runs/{id}/tasks
func (h *Handler) ListRunTasks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует
	_, err = h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "run not found") {
		return
	}

	tasks, err := h.tasks.ListByRunID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = TaskFromDomain(t)
	}

	List(w, result, len(result))
}

// parseInt парсит строку в int с дефолтным значением.
func parseInt(s string, defaultVal int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
