package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"wolframgate/internal/handlers"
	"wolframgate/internal/metrics"
	"wolframgate/internal/middleware"
)

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, kh *handlers.KnowledgeHandler) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())               // panic recovery
	r.Use(middleware.Timeout(90 * time.Second)) // must outlast the retry budget
	r.Use(middleware.MaxBodySize(64 * 1024))    // 64 KB max body; inputs are short queries

	// routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", kh.Ask)
		r.Post("/solve", kh.Solve)
		r.Post("/steps", kh.Steps)
		r.Post("/facts", kh.Facts)
		r.Post("/statistics", kh.Statistics)
		r.Post("/short", kh.ShortAnswer)
		r.Post("/spoken", kh.Spoken)
		r.Post("/simple", kh.SimpleImage)
		r.Post("/converse", kh.Converse)
		r.Delete("/converse", kh.ClearConversation)
		r.Get("/diagnostics", kh.Diagnostics)
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
