package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/transfer-notifier/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// DispatchEnvelope wraps a successful push delivery.
type DispatchEnvelope struct {
	MessageID string `json:"message_id"`
}

// SweepEnvelope wraps a retention sweep result.
type SweepEnvelope struct {
	Deleted int `json:"deleted"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps service errors onto status codes. Delivery failures surface
// as 502 so upstream callers retry.
func httpError(w http.ResponseWriter, err error) {
	var de *domain.DeliveryError
	switch {
	case errors.As(err, &de):
		writeJSON(w, http.StatusBadGateway, MessageEnvelope{Error: de.Error(), ErrorCode: de.Code})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeDispatch renders the outcome of one dispatcher run.
func writeDispatch(w http.ResponseWriter, messageID string, err error) {
	if err != nil {
		httpError(w, err)
		return
	}
	if messageID == "" {
		writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "skipped"})
		return
	}
	writeJSON(w, http.StatusOK, DispatchEnvelope{MessageID: messageID})
}
