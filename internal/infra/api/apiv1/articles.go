package apiv1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
)

type EditArticleRequest struct {
	ExpectedVersion *int64               `json:"expected_version" validate:"required,gte=1"`
	Title           *string              `json:"title" validate:"omitempty,max=300"`
	Excerpt         *string              `json:"excerpt"`
	MetaTitle       *string              `json:"meta_title" validate:"omitempty,max=120"`
	MetaDescription *string              `json:"meta_description" validate:"omitempty,max=320"`
	Slug            *string              `json:"slug" validate:"omitempty,max=120"`
	Blocks          []model.ContentBlock `json:"blocks"`
}

type VersionRequest struct {
	ExpectedVersion *int64 `json:"expected_version" validate:"required,gte=1"`
}

type ScheduleRequest struct {
	ExpectedVersion *int64    `json:"expected_version" validate:"required,gte=1"`
	PublishAt       time.Time `json:"publish_at" validate:"required"`
}

type versionedOp func(r *http.Request, id string, expected int64) (*model.Article, error)

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	a, err := s.articles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articleView(a))
}

func (s *Server) editArticle(w http.ResponseWriter, r *http.Request) {
	var req EditArticleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.articles.Edit(r.Context(), chi.URLParam(r, "id"), *req.ExpectedVersion, model.ArticleEdit{
		Title:           req.Title,
		Excerpt:         req.Excerpt,
		MetaTitle:       req.MetaTitle,
		MetaDescription: req.MetaDescription,
		Slug:            req.Slug,
		Blocks:          req.Blocks,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articleView(a))
}

func (s *Server) reviewArticle(w http.ResponseWriter, r *http.Request) {
	s.withVersionBody(w, r, func(r *http.Request, id string, v int64) (*model.Article, error) {
		return s.articles.SubmitForReview(r.Context(), id, v)
	})
}

func (s *Server) publishArticle(w http.ResponseWriter, r *http.Request) {
	s.withVersionBody(w, r, func(r *http.Request, id string, v int64) (*model.Article, error) {
		return s.articles.Publish(r.Context(), id, v)
	})
}

func (s *Server) unpublishArticle(w http.ResponseWriter, r *http.Request) {
	s.withVersionBody(w, r, func(r *http.Request, id string, v int64) (*model.Article, error) {
		return s.articles.Unpublish(r.Context(), id, v)
	})
}

func (s *Server) deleteArticle(w http.ResponseWriter, r *http.Request) {
	s.withVersionQuery(w, r, func(r *http.Request, id string, v int64) (*model.Article, error) {
		return s.articles.Delete(r.Context(), id, v)
	})
}

func (s *Server) armSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.schedules.Arm(r.Context(), chi.URLParam(r, "id"), *req.ExpectedVersion, req.PublishAt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articleView(a))
}

func (s *Server) disarmSchedule(w http.ResponseWriter, r *http.Request) {
	s.withVersionQuery(w, r, func(r *http.Request, id string, v int64) (*model.Article, error) {
		return s.schedules.Disarm(r.Context(), id, v)
	})
}

func (s *Server) withVersionBody(w http.ResponseWriter, r *http.Request, op versionedOp) {
	var req VersionRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondArticle(w, r, op, *req.ExpectedVersion)
}

// withVersionQuery reads expected_version from the query string, used by DELETE routes.
func (s *Server) withVersionQuery(w http.ResponseWriter, r *http.Request, op versionedOp) {
	v, err := strconv.ParseInt(r.URL.Query().Get("expected_version"), 10, 64)
	if err != nil || v < 1 {
		s.writeError(w, r, domain.Invalid("expected_version", "must be a positive integer"))
		return
	}
	s.respondArticle(w, r, op, v)
}

func (s *Server) respondArticle(w http.ResponseWriter, r *http.Request, op versionedOp, expected int64) {
	a, err := op(r, chi.URLParam(r, "id"), expected)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, articleView(a))
}
