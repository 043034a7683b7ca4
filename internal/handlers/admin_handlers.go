package handlers

import (
	"net/http"

	"repairTracker/internal/logger"
	"repairTracker/internal/service"

	"go.uber.org/zap"
)

const maxRestoreBytes = 64 << 20

func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		responseWithError(w, http.StatusNotFound, "backups are disabled")
		return
	}
	name, err := h.backups.Backup(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "backup")
		return
	}
	responseWithJSON(w, http.StatusCreated, toPayload("name", name))
}

// Restore replaces every stored record with the uploaded YAML snapshot.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		responseWithError(w, http.StatusNotFound, "backups are disabled")
		return
	}
	defer r.Body.Close()

	if err := h.backups.Restore(r.Context(), http.MaxBytesReader(w, r.Body, maxRestoreBytes)); err != nil {
		if handleBusinessError(w, err) {
			return
		}
		logger.Warn("HTTP: restore rejected", zap.Error(err))
		handleBusinessError(w, service.NewValidationError("snapshot", err.Error()))
		return
	}
	logger.Info("HTTP: snapshot restored", zap.String("client_ip", r.RemoteAddr))
	w.WriteHeader(http.StatusNoContent)
}
