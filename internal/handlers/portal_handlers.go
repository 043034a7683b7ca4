package handlers

import (
	"net/http"

	"repairTracker/internal/handlers/dto"
	"repairTracker/internal/logger"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// IssuePortalToken hands out a read-only link to the client's portal view.
func (h *Handler) IssuePortalToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		responseWithError(w, http.StatusNotFound, "portal is disabled")
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.svc.GetClient(r.Context(), id); err != nil {
		handleServiceError(w, r, err, "portal_token")
		return
	}
	token, expires, err := h.tokens.Issue(id)
	if err != nil {
		handleServiceError(w, r, err, "portal_token")
		return
	}
	logger.Info("HTTP: portal token issued",
		zap.String("client_id", id.String()),
		zap.Time("expires_at", expires))
	writeJSON(w, http.StatusCreated, dto.PortalTokenResponse{
		Token:     token,
		Path:      "/portal/" + token,
		ExpiresAt: expires,
	})
}

func (h *Handler) Portal(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		responseWithError(w, http.StatusNotFound, "portal is disabled")
		return
	}
	clientID, err := h.tokens.Parse(chi.URLParam(r, "token"))
	if err != nil {
		logger.Warn("HTTP: portal token rejected", zap.Error(err), zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnauthorized, "link is invalid or expired")
		return
	}
	view, err := h.svc.ClientView(r.Context(), clientID)
	if err != nil {
		handleServiceError(w, r, err, "portal")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, view)
}
