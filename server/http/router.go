package serverhttp

import (
	"database/sql"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	basketHnd "basket-service/internal/basket/handler"
	"basket-service/internal/basket/service"
	"basket-service/internal/config"
	"basket-service/internal/middleware"
	"basket-service/server/http/handlers"
)

func NewRouter(cfg config.Config, logger zerolog.Logger, db *sql.DB, svc *service.Service) *chi.Mux {
	r := chi.NewRouter()

	// order matters: recover -> requestID -> logging -> cors -> limit,
	// then auth -> rate limit on the API group
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(middleware.LimitBytes(int64(cfg.MaxUploadMB) * 1024 * 1024))

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)
	r.Get("/health", handlers.Health(db))

	h := basketHnd.New(svc, logger, int64(cfg.MaxUploadMB)*1024*1024)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth([]byte(cfg.JWTSecret), logger))
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		h.Register(r)
	})

	return r
}
