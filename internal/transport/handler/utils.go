package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/trunov/convo/internal/artifact"
	"github.com/trunov/convo/internal/entities"
	"github.com/trunov/convo/internal/passthrough"
	"github.com/trunov/convo/internal/processor"
	"github.com/trunov/convo/internal/r2"
	use_case "github.com/trunov/convo/internal/use-case"
)

type APIError struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

func writeMultipartError(w http.ResponseWriter, err error) {
	msg := strings.ToLower(err.Error())

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), strings.Contains(msg, "too large"):
		writeJSONError(w, "uploaded file exceeds maximum allowed size", http.StatusRequestEntityTooLarge)

	case strings.Contains(msg, "content-type isn't multipart/form-data"):
		writeJSONError(w, "invalid content type, expected multipart/form-data", http.StatusBadRequest)

	default:
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	}
}

// writeUseCaseError maps domain errors to status codes. Anything unexpected
// is reported to Sentry.
func writeUseCaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, processor.ErrInvalidInput), errors.Is(err, passthrough.ErrUnsupported):
		writeJSONError(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, processor.ErrDecode), errors.Is(err, processor.ErrEncode):
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)

	case errors.Is(err, artifact.ErrNotFound), errors.Is(err, entities.ErrJobNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, use_case.ErrJobsDisabled), errors.Is(err, r2.ErrQueueFull):
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)

	default:
		sentry.CaptureException(err)
		log.Error().Str("component", "handler").Err(err).Msg("request failed")
		writeJSONError(w, "internal error", http.StatusInternalServerError)
	}
}

func validationErrorsToMap(err error) map[string]string {
	errs := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			field := strings.ToLower(e.Field())
			switch e.Tag() {
			case "required":
				errs[field] = "is required"
			case "max":
				errs[field] = "exceeds maximum length"
			case "alphanum":
				errs[field] = "must be alphanumeric"
			default:
				errs[field] = "invalid value"
			}
		}
	} else {
		errs["error"] = err.Error()
	}
	return errs
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, APIError{Error: message})
}
