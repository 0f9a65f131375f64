package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service   BookingService
	Postgres  PostgresPinger
	Redis     RedisPinger
	JWTSecret string
	Logger    *zap.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(AccessLogMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Public read surface
	r.Get("/profissionais", listProfessionalsHandler(cfg.Service))
	r.Get("/profissionais/{id}", getProfessionalHandler(cfg.Service))
	r.Get("/horarios-disponiveis/profissional/{id}", listAvailabilityHandler(cfg.Service))

	// Authenticated surface
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Post("/horarios-disponiveis", publishWindowHandler(cfg.Service))
		r.Post("/consultas", reserveHandler(cfg.Service))
		r.Put("/consultas/{id}/status", updateStatusHandler(cfg.Service))
		r.Get("/consultas/paciente/{id}", listByPatientHandler(cfg.Service))
		r.Get("/consultas/profissional/{id}", listByProfessionalHandler(cfg.Service))
	})

	return r
}
