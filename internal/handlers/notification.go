package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/models"
	"github.com/stanstork/noticeboard/internal/notification"
)

type NotificationHandler struct {
	service notification.Service
	logger  zerolog.Logger
}

func NewNotificationHandler(service notification.Service, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("handler", "notification").Logger(),
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	req, ok := requestFromHTTP(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	resp, err := h.service.Notifications(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *NotificationHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	req, ok := requestFromHTTP(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	id := models.Identifier{
		Source: strings.TrimSpace(vars["source"]),
		ID:     strings.TrimSpace(vars["id"]),
	}
	if id.Source == "" || id.ID == "" {
		http.Error(w, "Notification source and id are required", http.StatusBadRequest)
		return
	}
	action := models.ActionKind(strings.ToLower(strings.TrimSpace(vars["action"])))

	result, err := h.service.Invoke(r.Context(), req, id, action)
	if err != nil {
		h.writeError(w, err, "failed to invoke notification action")
		return
	}
	if result.Redirect == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *NotificationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	req, ok := requestFromHTTP(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}
	h.service.Refresh(req.User)
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, notification.ErrInvalidRequest), errors.Is(err, notification.ErrUnknownAction):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, notification.ErrEntryNotFound):
		http.Error(w, "Notification not found", http.StatusNotFound)
	case errors.Is(err, notification.ErrStateStore):
		h.logger.Error().Err(err).Msg(msg)
		http.Error(w, "Failed to update notification state", http.StatusBadGateway)
	default:
		h.logger.Error().Err(err).Msg(msg)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
