package handlers

import (
	"errors"
	"net/http"

	"repairTracker/internal/logger"
	"repairTracker/internal/service"

	"go.uber.org/zap"
)

func handleBusinessError(w http.ResponseWriter, err error) bool {
	var businessErr *service.BusinessError
	if !errors.As(err, &businessErr) {
		return false
	}
	statusCode := mapBusinessErrorToHTTP(businessErr.Code)

	logger.Warn("HTTP: business error",
		zap.String("error_code", businessErr.Code),
		zap.String("message", businessErr.Message),
		zap.Int("http_status", statusCode))

	responseWithJSON(w, statusCode,
		toPayload("error", businessErr.Code),
		toPayload("title", businessErr.Title),
		toPayload("message", businessErr.Message),
		toPayload("details", businessErr.Details),
	)
	return true
}

// handleServiceError answers with the mapped business error, or 500 for
// anything the service did not classify.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	if handleBusinessError(w, err) {
		return
	}
	logger.Error("HTTP: service error", err,
		zap.String("operation", operation),
		zap.String("path", r.URL.Path))
	responseWithJSON(w, http.StatusInternalServerError,
		toPayload("error", service.CodeInternal),
		toPayload("title", "Something went wrong"),
		toPayload("message", "The request could not be completed"))
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation, service.CodeInvalidTimeInput:
		return http.StatusBadRequest
	case service.CodeOverlapConflict, service.CodeHasActiveTasks, service.CodeDuplicateVIN,
		service.CodeVersionConflict, service.CodeInProgress:
		return http.StatusConflict
	case service.CodeInvalidTransition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
