package handler

import (
	"encoding/json"
	"net/http"

	"github.com/transfer-notifier/internal/application/dispatch"
	"github.com/transfer-notifier/internal/domain"
	"github.com/transfer-notifier/internal/pkg/validate"
)

// maxEventBody caps a single creation event.
const maxEventBody = 64 << 10

// CreatedEvent is a record-creation event pushed by an upstream writer.
type CreatedEvent struct {
	NotificationID string                    `json:"notificationId" validate:"required"`
	Record         domain.NotificationRecord `json:"record"`
}

// EventHandler feeds record-creation events pushed over HTTP to the dispatcher.
type EventHandler struct {
	dispatcher dispatch.Service
}

func NewEventHandler(dispatcher dispatch.Service) *EventHandler {
	return &EventHandler{dispatcher: dispatcher}
}

func (h *EventHandler) NotificationCreated(w http.ResponseWriter, r *http.Request) {
	var ev CreatedEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ev.Record.NotificationID = ev.NotificationID
	if err := validate.Struct(ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	messageID, err := h.dispatcher.Dispatch(r.Context(), ev.Record)
	writeDispatch(w, messageID, err)
}
