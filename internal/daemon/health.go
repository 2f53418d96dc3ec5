package daemon

import (
	"encoding/json"
	"net/http"
)

// Probe сообщает состояние зависимости.
type Probe func() bool

// ActiveCounter — количество выполняемых runs (pipeline.Service).
type ActiveCounter interface {
	Active() int
}

// Health — обработчик /healthz.
//
// 200, если все проверки проходят, иначе 503. Тело — JSON со
// статусом каждой проверки и числом активных runs.
type Health struct {
	Checks map[string]Probe
	Runs   ActiveCounter
}

type healthResponse struct {
	Status     string          `json:"status"`
	Checks     map[string]bool `json:"checks"`
	ActiveRuns int             `json:"active_runs"`
}

// ServeHTTP реализует http.Handler.
func (h Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Checks: make(map[string]bool, len(h.Checks))}
	for name, probe := range h.Checks {
		ok := probe()
		resp.Checks[name] = ok
		if !ok {
			resp.Status = "degraded"
		}
	}
	if h.Runs != nil {
		resp.ActiveRuns = h.Runs.Active()
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}
