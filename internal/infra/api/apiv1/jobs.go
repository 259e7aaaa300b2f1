package apiv1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"editorial-pipeline/internal/domain"
	"editorial-pipeline/internal/domain/model"
	"editorial-pipeline/internal/domain/ports/repository"
	"editorial-pipeline/internal/infra/logging"
	"editorial-pipeline/internal/usecase"
)

type SubmitJobsRequest struct {
	CategoryID         string     `json:"category_id" validate:"required"`
	AuthorID           string     `json:"author_id" validate:"required"`
	BrandID            string     `json:"brand_id" validate:"required"`
	KnowledgeSourceIDs []string   `json:"knowledge_source_ids" validate:"required,min=1,dive,required"`
	ConversionOfferIDs []string   `json:"conversion_offer_ids" validate:"omitempty,dive,required"`
	Strategy           string     `json:"strategy" validate:"omitempty,oneof=DRAFT PUBLISH_NOW SCHEDULED"`
	PublishAt          *time.Time `json:"publish_at" validate:"required_if=Strategy SCHEDULED"`
}

func (s *Server) submitJobs(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobsRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	strategy, err := model.ParsePublishStrategy(req.Strategy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	jobs, err := s.jobs.Submit(r.Context(), usecase.SubmitRequest{
		CategoryID:         req.CategoryID,
		AuthorID:           req.AuthorID,
		BrandID:            req.BrandID,
		SubmittedBy:        logging.UserID(r.Context()),
		KnowledgeSourceIDs: req.KnowledgeSourceIDs,
		ConversionOfferIDs: req.ConversionOfferIDs,
		Strategy:           strategy,
		PublishAt:          req.PublishAt,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := JobList{Items: make([]Job, 0, len(jobs))}
	for _, j := range jobs {
		out.Items = append(out.Items, jobView(j, false))
	}
	writeJSON(w, http.StatusAccepted, out)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.JobFilter{
		Status:      model.JobStatus(q.Get("status")),
		SubmittedBy: q.Get("submitted_by"),
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, r, domain.Invalid("since", "must be an RFC 3339 timestamp"))
			return
		}
		f.Since = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, domain.Invalid("limit", "must be a non-negative integer"))
			return
		}
		f.Limit = n
	}

	jobs, err := s.jobs.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := JobList{Items: make([]Job, 0, len(jobs))}
	for _, j := range jobs {
		out.Items = append(out.Items, jobView(j, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobView(j, true))
}

func (s *Server) retryJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobView(j, true))
}

func (s *Server) salvageJob(w http.ResponseWriter, r *http.Request) {
	a, err := s.jobs.Salvage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, articleView(a))
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.jobs.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobView(j, false))
}
