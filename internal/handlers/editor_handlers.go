package handlers

import (
	"net/http"
	"time"

	"repairTracker/internal/editor"
	"repairTracker/internal/handlers/dto"
	"repairTracker/internal/logger"
	"repairTracker/internal/models/task"
	"repairTracker/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// dateLayout is the calendar day accepted when moving a period.
const dateLayout = "2006-01-02"

func (h *Handler) AddSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, notices, err := h.svc.AddSession(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "add_session")
		return
	}
	writeJSON(w, http.StatusCreated, dto.TaskEnvelope{Task: dto.FromTask(t), Notices: notices})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	taskID, sessionID, ok := sessionPath(w, r)
	if !ok {
		return
	}
	t, err := h.svc.DeleteSession(r.Context(), taskID, sessionID)
	if err != nil {
		handleServiceError(w, r, err, "delete_session")
		return
	}
	writeJSON(w, http.StatusOK, dto.TaskEnvelope{Task: dto.FromTask(t)})
}

func (h *Handler) AddPeriod(w http.ResponseWriter, r *http.Request) {
	taskID, sessionID, ok := sessionPath(w, r)
	if !ok {
		return
	}
	t, err := h.svc.AddPeriod(r.Context(), taskID, sessionID)
	if err != nil {
		handleServiceError(w, r, err, "add_period")
		return
	}
	writeJSON(w, http.StatusCreated, dto.TaskEnvelope{Task: dto.FromTask(t)})
}

// EditPeriod applies either a time-of-day edit or a day move, never both.
func (h *Handler) EditPeriod(w http.ResponseWriter, r *http.Request) {
	taskID, sessionID, ok := sessionPath(w, r)
	if !ok {
		return
	}
	periodID, ok := pathID(w, r, "pid")
	if !ok {
		return
	}
	var req dto.PeriodRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		t   *task.Task
		err error
		op  string
	)
	switch {
	case req.Date != "" && req.Field == "" && req.Time == "":
		op = "edit_period_date"
		day, perr := time.Parse(dateLayout, req.Date)
		if perr != nil {
			handleBusinessError(w, service.NewValidationError("date", "must be YYYY-MM-DD"))
			return
		}
		// Noon keeps the calendar day stable across local offsets.
		t, err = h.svc.EditPeriodDate(r.Context(), taskID, sessionID, periodID, day.Add(12*time.Hour))
	case req.Date == "" && req.Field != "":
		op = "edit_period_time"
		field := editor.Field(req.Field)
		if field != editor.FieldStart && field != editor.FieldEnd {
			handleBusinessError(w, service.NewValidationError("field", "must be start or end"))
			return
		}
		t, err = h.svc.EditPeriodTime(r.Context(), taskID, sessionID, periodID, field, req.Time)
	default:
		handleBusinessError(w, service.NewValidationError("period", "send either field and time, or date"))
		return
	}
	if err != nil {
		logger.Warn("HTTP: period edit rejected",
			zap.String("op", op),
			zap.String("period_id", periodID.String()),
			zap.Error(err))
		handleServiceError(w, r, err, op)
		return
	}
	writeJSON(w, http.StatusOK, dto.TaskEnvelope{Task: dto.FromTask(t)})
}

func (h *Handler) DeletePeriod(w http.ResponseWriter, r *http.Request) {
	taskID, sessionID, ok := sessionPath(w, r)
	if !ok {
		return
	}
	periodID, ok := pathID(w, r, "pid")
	if !ok {
		return
	}
	t, err := h.svc.DeletePeriod(r.Context(), taskID, sessionID, periodID)
	if err != nil {
		handleServiceError(w, r, err, "delete_period")
		return
	}
	writeJSON(w, http.StatusOK, dto.TaskEnvelope{Task: dto.FromTask(t)})
}

func (h *Handler) AddPart(w http.ResponseWriter, r *http.Request) {
	taskID, sessionID, ok := sessionPath(w, r)
	if !ok {
		return
	}
	var req dto.PartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.AddPart(r.Context(), taskID, sessionID, req.Part())
	if err != nil {
		handleServiceError(w, r, err, "add_part")
		return
	}
	writeJSON(w, http.StatusCreated, dto.TaskEnvelope{Task: dto.FromTask(t)})
}

func (h *Handler) UpdatePart(w http.ResponseWriter, r *http.Request) {
	taskID, sessionID, ok := sessionPath(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r, "index")
	if !ok {
		return
	}
	var req dto.PartUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.UpdatePart(r.Context(), taskID, sessionID, index,
		service.PartUpdate{Quantity: req.Quantity, Price: req.Price})
	if err != nil {
		handleServiceError(w, r, err, "update_part")
		return
	}
	writeJSON(w, http.StatusOK, dto.TaskEnvelope{Task: dto.FromTask(t)})
}

func (h *Handler) DeletePart(w http.ResponseWriter, r *http.Request) {
	taskID, sessionID, ok := sessionPath(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(w, r, "index")
	if !ok {
		return
	}
	t, err := h.svc.DeletePart(r.Context(), taskID, sessionID, index)
	if err != nil {
		handleServiceError(w, r, err, "delete_part")
		return
	}
	writeJSON(w, http.StatusOK, dto.TaskEnvelope{Task: dto.FromTask(t)})
}

func sessionPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	taskID, ok := pathID(w, r, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	sessionID, ok := pathID(w, r, "sid")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return taskID, sessionID, true
}
