package handlers

import (
	"net/http"

	"repairTracker/internal/handlers/dto"
	"repairTracker/internal/logger"

	"go.uber.org/zap"
)

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.GetSettings(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "get_settings")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req dto.SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.svc.UpdateSettings(r.Context(), req.Settings())
	if err != nil {
		handleServiceError(w, r, err, "update_settings")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.svc.ListClients(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "list_clients")
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req dto.ClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.CreateClient(r.Context(), req.Input())
	if err != nil {
		handleServiceError(w, r, err, "create_client")
		return
	}
	logger.Info("HTTP: client created", zap.String("client_id", c.ID.String()))
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.GetClient(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "get_client")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateClient(r.Context(), id, req.Input())
	if err != nil {
		handleServiceError(w, r, err, "update_client")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteClient(r.Context(), id); err != nil {
		handleServiceError(w, r, err, "delete_client")
		return
	}
	logger.Info("HTTP: client deleted", zap.String("client_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClientSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sum, err := h.svc.ClientSummary(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "client_summary")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) ListClientVehicles(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	vehicles, err := h.svc.ListVehicles(r.Context(), &id)
	if err != nil {
		handleServiceError(w, r, err, "list_vehicles")
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// AddVehicle registers a vehicle for the client and opens its first job.
func (h *Handler) AddVehicle(w http.ResponseWriter, r *http.Request) {
	clientID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.VehicleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, t, notices, err := h.svc.AddVehicle(r.Context(), clientID, req.Input(), req.StartNow)
	if err != nil {
		handleServiceError(w, r, err, "add_vehicle")
		return
	}
	logger.Info("HTTP: vehicle added",
		zap.String("vehicle_id", v.ID.String()),
		zap.String("task_id", t.ID.String()),
		zap.Bool("started", req.StartNow))
	writeJSON(w, http.StatusCreated, dto.VehicleCreatedResponse{Vehicle: v, Task: dto.FromTask(t), Notices: notices})
}

func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	clientID, ok := queryID(w, r, "client_id")
	if !ok {
		return
	}
	vehicles, err := h.svc.ListVehicles(r.Context(), clientID)
	if err != nil {
		handleServiceError(w, r, err, "list_vehicles")
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	v, err := h.svc.GetVehicle(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "get_vehicle")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.VehicleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.svc.UpdateVehicle(r.Context(), id, req.Input())
	if err != nil {
		handleServiceError(w, r, err, "update_vehicle")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteVehicle(r.Context(), id); err != nil {
		handleServiceError(w, r, err, "delete_vehicle")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) VehicleSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sum, err := h.svc.VehicleSummary(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "vehicle_summary")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) NewJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.NewJobRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	t, notices, err := h.svc.NewJob(r.Context(), id, req.StartNow)
	if err != nil {
		handleServiceError(w, r, err, "new_job")
		return
	}
	writeJSON(w, http.StatusCreated, dto.TaskEnvelope{Task: dto.FromTask(t), Notices: notices})
}
