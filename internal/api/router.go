package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-workflow/internal/auth"
	"github.com/hackgods/hospital-workflow/internal/hospital"
	"github.com/hackgods/hospital-workflow/internal/storage"
)

type RouterConfig struct {
	Service        *hospital.Service
	Store          storage.ObjectStore
	Tokens         *auth.TokenService
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	Logger         zerolog.Logger
	Env            string
	Version        string
	MaxUploadBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoverMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Store, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens))

		r.Post("/patients", registerPatientHandler(cfg.Service))
		r.Get("/patients/tests", findPatientTestsHandler(cfg.Service))

		r.Get("/equipment", searchEquipmentHandler(cfg.Service))
		r.Post("/equipment", addEquipmentHandler(cfg.Service))
		r.Patch("/equipment/{id}/order-status", updateEquipmentOrderHandler(cfg.Service))

		r.Route("/consultations", func(r chi.Router) {
			r.Post("/", createConsultationHandler(cfg.Service))
			r.Get("/{id}", getConsultationHandler(cfg.Service))
			r.Put("/{id}/status", transitionConsultationHandler(cfg.Service))
			r.Post("/{id}/reports", requestReportHandler(cfg.Service))
			r.Get("/{id}/reports/{reportId}/download", downloadReportHandler(cfg.Service))
			r.Post("/{id}/feedback", addFeedbackHandler(cfg.Service))
			r.Post("/{id}/diagnosis", addDiagnosisHandler(cfg.Service))
			r.Put("/{id}/diagnosis/{index}", updateDiagnosisHandler(cfg.Service))
			r.Put("/{id}/notes", updateNotesHandler(cfg.Service))
			r.Put("/{id}/bill", linkBillHandler(cfg.Service))
		})

		r.Post("/reports", attachReportHandler(cfg.Service, cfg.Store, maxUpload))

		r.Route("/prescriptions", func(r chi.Router) {
			r.Post("/", createPrescriptionHandler(cfg.Service))
			r.Get("/{prescriptionId}", getPrescriptionHandler(cfg.Service))
			r.Post("/{prescriptionId}/cancel", cancelPrescriptionHandler(cfg.Service))
			r.Put("/{prescriptionId}/entries/{entryId}", dispenseHandler(cfg.Service))
		})

		r.Route("/logs", func(r chi.Router) {
			r.Get("/login", listLoginLogsHandler(cfg.Service))
			r.Post("/login", recordLoginHandler(cfg.Service))
			r.Get("/bed", listBedLogsHandler(cfg.Service))
			r.Post("/bed", recordBedHandler(cfg.Service))
			r.Get("/inventory", listInventoryLogsHandler(cfg.Service))
			r.Post("/inventory", recordInventoryHandler(cfg.Service))
			r.Get("/finance", listFinanceLogsHandler(cfg.Service))
			r.Post("/finance", recordFinanceHandler(cfg.Service))
		})
	})

	return r
}
