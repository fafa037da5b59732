package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fridgedoor/internal/config"
	"fridgedoor/internal/repository"
)

// Handler holds application dependencies
type Handler struct {
	Messages repository.MessageRepository
	Config   config.Config
	Logger   *zap.Logger
	// Metrics is nil when metrics are disabled.
	Metrics *Metrics
}

// New creates a new Handler with the given dependencies
func New(messages repository.MessageRepository, cfg config.Config, logger *zap.Logger) *Handler {
	h := &Handler{
		Messages: messages,
		Config:   cfg,
		Logger:   logger,
	}
	if cfg.MetricsEnabled {
		h.Metrics = NewMetrics()
	}
	return h
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.instrument)

	// REST API
	// /messages と /messages/ の両方を受け付ける
	for _, path := range []string{"/messages", "/messages/"} {
		r.HandleFunc(path, h.ListMessages).Methods(http.MethodGet)
		r.HandleFunc(path, h.CreateMessage).Methods(http.MethodPost)
	}
	r.HandleFunc("/messages/random", h.RandomMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id:[0-9]+}", h.GetMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id:[0-9]+}", h.DeleteMessage).Methods(http.MethodDelete)

	r.HandleFunc("/cors", h.CORSCheck).Methods(http.MethodGet)

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler()).Methods(http.MethodGet)
	}

	// 静的ファイルは最後に登録して API より優先度を下げる
	if h.Config.StaticDir != "" {
		r.PathPrefix("/").Handler(StaticHandler(h.Config.StaticDir))
	}

	return r
}

// HTTPHandler returns the router wrapped in the CORS policy.
func (h *Handler) HTTPHandler() http.Handler {
	return NewCORS(h.Config).Handler(h.SetupRouter())
}

// CORSCheck handles GET /cors
func (h *Handler) CORSCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Hello CORS!"))
}
