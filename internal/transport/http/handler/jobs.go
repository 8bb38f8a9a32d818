package handler

import (
	"net/http"

	"github.com/transfer-notifier/internal/application/retention"
)

// JobHandler triggers background jobs on demand.
type JobHandler struct {
	sweeper retention.Service
}

func NewJobHandler(sweeper retention.Service) *JobHandler {
	return &JobHandler{sweeper: sweeper}
}

func (h *JobHandler) RetentionSweep(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SweepEnvelope{Deleted: deleted})
}
