package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/transfer-notifier/internal/application/notification"
)

// NotificationHandler handles operator notification endpoints.
type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) Redispatch(w http.ResponseWriter, r *http.Request) {
	messageID, err := h.svc.Redispatch(r.Context(), chi.URLParam(r, "id"))
	writeDispatch(w, messageID, err)
}
