package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/pipeline"
	"github.com/shaiso/varflow/internal/sheet"
	"github.com/shaiso/varflow/internal/validate"
)

// Plan строит граф конвейера без выполнения.
// POST /api/v1/plan
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	if h.planner == nil {
		Unavailable(w, "planner is not configured")
		return
	}

	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	_, plan, err := h.planner.Prepare(pipeline.Request{
		Pipeline:   domain.PipelineKind(req.Pipeline),
		ParamsFile: req.ParamsFile,
	})
	switch {
	case err == nil:
		Success(w, PlanFromPipeline(plan))
	case errors.Is(err, os.ErrNotExist):
		NotFound(w, err.Error())
	case errors.Is(err, pipeline.ErrInvalidParams),
		errors.Is(err, sheet.ErrEmptySheet),
		errors.Is(err, sheet.ErrMissingColumns),
		errors.Is(err, sheet.ErrInvalidRow):
		InvalidParams(w, err.Error())
	default:
		InternalError(w, h.log(r), err)
	}
}
