package handlers

import (
	"net/http"

	"repairTracker/internal/middleware"

	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	RateLimit      int
	AllowedOrigins []string
}

// NewRouter mounts every endpoint of h behind the shared middleware stack.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	if cfg.RateLimit > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimit))
	}

	r.Get("/health", h.HealthCheck)

	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.ListClients)
		r.Post("/", h.CreateClient)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetClient)
			r.Put("/", h.UpdateClient)
			r.Delete("/", h.DeleteClient)
			r.Get("/summary", h.ClientSummary)
			r.Get("/vehicles", h.ListClientVehicles)
			r.Post("/vehicles", h.AddVehicle)
			r.Post("/portal-token", h.IssuePortalToken)
		})
	})

	r.Route("/vehicles", func(r chi.Router) {
		r.Get("/", h.ListVehicles)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetVehicle)
			r.Put("/", h.UpdateVehicle)
			r.Delete("/", h.DeleteVehicle)
			r.Get("/summary", h.VehicleSummary)
			r.Post("/tasks", h.NewJob)
		})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.ListTasks)
		r.Get("/active", h.ActiveTask)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetTask)
			r.Delete("/", h.DeleteTask)

			r.Post("/start", h.Begin("start", func(s Service) beginFunc { return s.StartTask }))
			r.Post("/resume", h.Begin("resume", func(s Service) beginFunc { return s.ResumeTask }))
			r.Post("/restart", h.Begin("restart", func(s Service) beginFunc { return s.RestartTask }))
			r.Post("/pause", h.Transition("pause", func(s Service) transitionFunc { return s.PauseTask }))
			r.Post("/stop", h.Transition("stop", func(s Service) transitionFunc { return s.StopTask }))
			r.Post("/pay", h.Transition("pay", func(s Service) transitionFunc { return s.MarkPaid }))
			r.Post("/complete", h.CompleteTask)
			r.Post("/bill", h.MarkBilled)
			r.Post("/refresh-snapshot", h.RefreshSnapshot)

			r.Get("/timer", h.Timer)
			r.Get("/cost", h.TaskCost)
			r.Get("/invoice", h.Invoice)

			r.Post("/sessions", h.AddSession)
			r.Route("/sessions/{sid}", func(r chi.Router) {
				r.Delete("/", h.DeleteSession)
				r.Post("/periods", h.AddPeriod)
				r.Patch("/periods/{pid}", h.EditPeriod)
				r.Delete("/periods/{pid}", h.DeletePeriod)
				r.Post("/parts", h.AddPart)
				r.Patch("/parts/{index}", h.UpdatePart)
				r.Delete("/parts/{index}", h.DeletePart)
			})

			if h.files != nil {
				r.Get("/attachments", h.ListAttachments)
				r.Put("/attachments/{name}", h.PutAttachment)
			}
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(cfg.AllowedOrigins))
		r.Get("/portal/{token}", h.Portal)
		r.Options("/portal/{token}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/backup", h.Backup)
		r.Post("/restore", h.Restore)
	})

	return middleware.Trace("repair-tracker")(r)
}
