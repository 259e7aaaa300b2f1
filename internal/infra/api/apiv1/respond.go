package apiv1

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"editorial-pipeline/internal/domain"
)

var validate = newValidator()

// newValidator reports json field names in validation errors.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into dst and runs struct validation.
func decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return domain.Invalid("body", "request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("body", err.Error())
	}
	return validate.Struct(dst)
}

// statusFor maps core errors onto HTTP statuses.
func statusFor(err error) int {
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrFireTimeNotFuture):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotScheduled),
		errors.Is(err, domain.ErrJobTerminal),
		errors.Is(err, domain.ErrJobNotResumable),
		errors.Is(err, domain.ErrNotSalvageable),
		errors.Is(err, domain.ErrNothingToSalvage):
		return http.StatusConflict
	}
	if _, ok := domain.AsAdmission(err); ok {
		return http.StatusTooManyRequests
	}
	if _, ok := domain.AsValidation(err); ok {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	body := ErrorBody{Error: err.Error()}

	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ve):
		body.Error = "validation failed"
		body.Errors = formatValidationErrors(ve)
	case code == http.StatusTooManyRequests:
		ae, _ := domain.AsAdmission(err)
		secs := int(math.Ceil(ae.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	case code == http.StatusBadRequest:
		if v, ok := domain.AsValidation(err); ok {
			body.Field = v.Field
		}
	case code == http.StatusInternalServerError:
		s.logFor(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		body.Error = "internal error"
	}
	writeJSON(w, code, body)
}

func formatValidationErrors(ve validator.ValidationErrors) []string {
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		msg := fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s (param: %s)", msg, fe.Param())
		}
		out = append(out, msg)
	}
	return out
}
