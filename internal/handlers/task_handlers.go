package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"repairTracker/internal/handlers/dto"
	"repairTracker/internal/invoice"
	"repairTracker/internal/logger"
	"repairTracker/internal/models/task"
	"repairTracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	svc     Service
	tokens  PortalTokens
	files   Attachments
	backups Backups
	render  InvoiceRenderer
}

func NewHandler(svc Service, opts ...Option) *Handler {
	h := &Handler{svc: svc, render: invoice.Render}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")
	healthCheck(w, h.svc.HealthCheck(r.Context()))
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var filter service.TaskFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		filter.Status = task.Status(raw)
		if !filter.Status.Valid() {
			logger.Warn("HTTP: invalid status filter", zap.String("status", raw))
			responseWithError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(raw))
			return
		}
	}
	var ok bool
	if filter.ClientID, ok = queryID(w, r, "client_id"); !ok {
		return
	}
	if filter.VehicleID, ok = queryID(w, r, "vehicle_id"); !ok {
		return
	}

	tasks, err := h.svc.ListTasks(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, err, "list_tasks")
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTaskList(tasks))
}

// ActiveTask answers 204 when no timer is running.
func (h *Handler) ActiveTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.ActiveTask(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "active_task")
		return
	}
	if t == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTask(t))
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.svc.GetTask(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "get_task")
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTask(t))
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteTask(r.Context(), id); err != nil {
		handleServiceError(w, r, err, "delete_task")
		return
	}
	logger.Info("HTTP: task deleted", zap.String("task_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

type beginFunc func(context.Context, uuid.UUID) (*task.Task, []service.Notice, error)
type transitionFunc func(context.Context, uuid.UUID) (*task.Task, error)

// Begin serves the transitions into in-progress; auto-paused tasks come back
// as notices.
func (h *Handler) Begin(op string, fn func(Service) beginFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		t, notices, err := fn(h.svc)(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err, op)
			return
		}
		logger.Info("HTTP: task "+op, zap.String("task_id", id.String()), zap.Int("notices", len(notices)))
		writeJSON(w, http.StatusOK, dto.TaskEnvelope{Task: dto.FromTask(t), Notices: notices})
	}
}

func (h *Handler) Transition(op string, fn func(Service) transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		t, err := fn(h.svc)(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err, op)
			return
		}
		logger.Info("HTTP: task "+op, zap.String("task_id", id.String()), zap.String("status", string(t.Status)))
		writeJSON(w, http.StatusOK, dto.TaskEnvelope{Task: dto.FromTask(t)})
	}
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.CompleteRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.CompleteTask(r.Context(), id, req.Completion())
	if err != nil {
		handleServiceError(w, r, err, "complete")
		return
	}
	writeJSON(w, http.StatusOK, dto.TaskEnvelope{Task: dto.FromTask(t)})
}

func (h *Handler) MarkBilled(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, notices, err := h.svc.MarkBilled(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "bill")
		return
	}
	writeJSON(w, http.StatusOK, dto.TaskEnvelope{Task: dto.FromTask(t), Notices: notices})
}

func (h *Handler) Timer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	view, err := h.svc.Timer(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "timer")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) TaskCost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cost, err := h.svc.TaskCost(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "cost")
		return
	}
	writeJSON(w, http.StatusOK, cost)
}

func (h *Handler) Invoice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.svc.Invoice(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "invoice")
		return
	}
	data, err := h.render(inv)
	if err != nil {
		handleServiceError(w, r, err, "render_invoice")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+inv.Number+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Warn("HTTP: invoice write interrupted", zap.Error(err))
		return
	}
	logger.Info("HTTP_OUT: invoice rendered",
		zap.String("task_id", id.String()),
		zap.Int("bytes", len(data)),
		zap.Duration("ms", time.Since(start)))
}

func (h *Handler) RefreshSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.svc.RefreshTaskSnapshot(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "refresh_snapshot")
		return
	}
	writeJSON(w, http.StatusOK, dto.TaskEnvelope{Task: dto.FromTask(t)})
}

func (h *Handler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.svc.GetTask(r.Context(), id); err != nil {
		handleServiceError(w, r, err, "list_attachments")
		return
	}
	names, err := h.files.List(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "list_attachments")
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) PutAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.svc.GetTask(r.Context(), id); err != nil {
		handleServiceError(w, r, err, "put_attachment")
		return
	}
	name := chi.URLParam(r, "name")
	defer r.Body.Close()

	n, err := h.files.Save(r.Context(), id, name, r.Body)
	if err != nil {
		logger.Warn("HTTP: attachment rejected", zap.String("task_id", id.String()), zap.Error(err))
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, dto.AttachmentResponse{Name: name, Bytes: n})
}
