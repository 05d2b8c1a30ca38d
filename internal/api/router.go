package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service   AppointmentService
	PgPool    *pgxpool.Pool
	Redis     *redis.Client // nil when slot locking is process-local
	Log       *zap.Logger
	RateLimit int // mutating requests per minute per IP, 0 disables
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := newHandlers(cfg.Service, log)
	r.Group(func(r chi.Router) {
		r.Use(RequireCaller)
		if cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
		}

		r.Post("/appointments", h.bookAppointment)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Post("/appointments/{id}/cancel", h.cancelAppointment)
		r.Post("/appointments/{id}/reschedule", h.rescheduleAppointment)
		r.Post("/doctor/appointments/{id}/cancel", h.doctorCancelAppointment)
		r.Post("/wallets/{patientId}/top-up", h.topUpWallet)
	})

	return r
}
