package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"editorial-pipeline/internal/infra/api/apiv1"
)

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string, hc *http.Client) *apiClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &apiClient{base: strings.TrimRight(base, "/"), token: token, http: hc}
}

// apiError is a non-2xx response from the service.
type apiError struct {
	Status     int
	Body       apiv1.ErrorBody
	RetryAfter string
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("api returned %d: %s", e.Status, e.Body.Error)
	if e.Body.Field != "" {
		msg += " (field " + e.Body.Field + ")"
	}
	if len(e.Body.Errors) > 0 {
		msg += ": " + strings.Join(e.Body.Errors, "; ")
	}
	if e.RetryAfter != "" {
		msg += ", retry after " + e.RetryAfter + "s"
	}
	return msg
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		ae := &apiError{Status: resp.StatusCode, RetryAfter: resp.Header.Get("Retry-After")}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &ae.Body) != nil || ae.Body.Error == "" {
			ae.Body.Error = strings.TrimSpace(string(raw))
		}
		return ae
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) SubmitJobs(ctx context.Context, req apiv1.SubmitJobsRequest) (apiv1.JobList, error) {
	var out apiv1.JobList
	err := c.do(ctx, http.MethodPost, "/api/v1/jobs", req, &out)
	return out, err
}

func (c *apiClient) GetJob(ctx context.Context, id string) (apiv1.Job, error) {
	var out apiv1.Job
	err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *apiClient) ListJobs(ctx context.Context, q url.Values) (apiv1.JobList, error) {
	var out apiv1.JobList
	path := "/api/v1/jobs"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *apiClient) RetryJob(ctx context.Context, id string) (apiv1.Job, error) {
	var out apiv1.Job
	err := c.do(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(id)+"/retry", nil, &out)
	return out, err
}

func (c *apiClient) SalvageJob(ctx context.Context, id string) (apiv1.Article, error) {
	var out apiv1.Article
	err := c.do(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(id)+"/salvage", nil, &out)
	return out, err
}

func (c *apiClient) CancelJob(ctx context.Context, id string) (apiv1.Job, error) {
	var out apiv1.Job
	err := c.do(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(id)+"/cancel", nil, &out)
	return out, err
}
