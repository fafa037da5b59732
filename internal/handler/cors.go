package handler

import (
	"net/http"

	"github.com/rs/cors"

	"fridgedoor/internal/config"
)

// NewCORS builds the process-wide CORS policy. With "*" (the default) every
// origin is accepted and echoed back, so credentialed requests still work.
func NewCORS(cfg config.Config) *cors.Cors {
	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Length", "Location", "X-Message-Source", "X-Request-ID"},
		MaxAge:           300,
		AllowCredentials: true,
	}

	switch {
	case cfg.AllowsAnyOrigin():
		opts.AllowOriginFunc = func(string) bool { return true }
	case len(cfg.AllowedOrigins) == 0:
		// rs/cors reads an empty AllowedOrigins as "*"
		opts.AllowOriginFunc = func(string) bool { return false }
	default:
		opts.AllowedOrigins = cfg.AllowedOrigins
	}

	return cors.New(opts)
}
