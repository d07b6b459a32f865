package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"livepage/internal/models"
	"livepage/internal/services"
)

// ModelLister is the part of the model catalog the API exposes.
type ModelLister interface {
	ListModelGroups() ([]models.LLMModelGroup, error)
}

type Config struct {
	Pages      services.PageService
	Transforms services.TransformService
	Models     ModelLister
	Events     *services.EventEmitterService
	Logger     *slog.Logger
}

type handler struct {
	pages      services.PageService
	transforms services.TransformService
	models     ModelLister
	events     *services.EventEmitterService
	logger     *slog.Logger
}

// NewRouter mounts the page API on a chi router.
func NewRouter(cfg Config) http.Handler {
	h := &handler{
		pages:      cfg.Pages,
		transforms: cfg.Transforms,
		models:     cfg.Models,
		events:     cfg.Events,
		logger:     cfg.Logger,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/pages", func(r chi.Router) {
			r.Get("/", h.listPages)
			r.Post("/", h.createPage)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", h.getPage)
				r.Put("/", h.updateMarkup)
				r.Patch("/", h.updateMetadata)
				r.Delete("/", h.deletePage)
				r.Post("/transform", h.transform)
				r.Get("/transforms", h.history)
			})
		})
		if h.models != nil {
			r.Get("/models", h.listModels)
		}
		if h.events != nil {
			r.Get("/events", h.streamEvents)
		}
	})
	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"requestId", middleware.GetReqID(r.Context()))
		})
	}
}
