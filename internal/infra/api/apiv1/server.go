// Package apiv1 is the thin HTTP surface that forwards validated editor requests into the pipeline core.
package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"editorial-pipeline/internal/infra/logging"
	"editorial-pipeline/internal/usecase"
)

type Server struct {
	jobs      usecase.JobUseCase
	articles  usecase.ArticleUseCase
	schedules usecase.ScheduleUseCase
	log       *zerolog.Logger
}

func NewServer(jobs usecase.JobUseCase, articles usecase.ArticleUseCase, schedules usecase.ScheduleUseCase, logger *zerolog.Logger) *Server {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{jobs: jobs, articles: articles, schedules: schedules, log: &l}
}

// RegisterAPIV1 mounts every /api/v1 route on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJobs)
			r.Get("/", s.listJobs)
			r.Get("/{id}", s.getJob)
			r.Post("/{id}/retry", s.retryJob)
			r.Post("/{id}/salvage", s.salvageJob)
			r.Post("/{id}/cancel", s.cancelJob)
		})
		r.Route("/articles/{id}", func(r chi.Router) {
			r.Get("/", s.getArticle)
			r.Patch("/", s.editArticle)
			r.Delete("/", s.deleteArticle)
			r.Post("/review", s.reviewArticle)
			r.Post("/publish", s.publishArticle)
			r.Post("/unpublish", s.unpublishArticle)
			r.Post("/schedule", s.armSchedule)
			r.Delete("/schedule", s.disarmSchedule)
		})
	})
}

func (s *Server) logFor(r *http.Request) *zerolog.Logger {
	return logging.With(r.Context(), s.log)
}
