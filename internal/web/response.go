package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/memomind/internal/analysis"
	"github.com/conorfennell/memomind/internal/billing"
	"github.com/conorfennell/memomind/internal/domain"
)

// Stable error codes returned in the "code" field of error bodies.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodePremiumRequired       = "PREMIUM_REQUIRED"
	CodeNoteNotFound          = "NOTE_NOT_FOUND"
	CodeRateLimited           = "RATE_LIMITED"
	CodeAnalysisNotConfigured = "ANALYSIS_NOT_CONFIGURED"
	CodeAnalysisUpstream      = "ANALYSIS_UPSTREAM_ERROR"
	CodeAnalysisMalformed     = "ANALYSIS_MALFORMED_RESPONSE"
	CodeBillingNotConfigured  = "BILLING_NOT_CONFIGURED"
	CodeInvalidSignature      = "INVALID_SIGNATURE"
	CodeInternal              = "INTERNAL_ERROR"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorBody{
		Error:     msg,
		Code:      code,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// respondError turns err into a structured error response. Anything not
// recognised is logged and reported as an internal error.
func respondError(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	var (
		verr      *domain.ValidationError
		configErr *analysis.ConfigurationError
		upErr     *analysis.UpstreamError
		malErr    *analysis.MalformedResponseError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, r, http.StatusBadRequest, CodeValidation, verr.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, r, http.StatusNotFound, CodeNoteNotFound, "Note not found")
	case errors.As(err, &configErr):
		writeError(w, r, http.StatusInternalServerError, CodeAnalysisNotConfigured, "AI analysis is not configured")
	case errors.As(err, &upErr):
		logRequestError(r, "Analysis upstream failed", err)
		writeError(w, r, http.StatusInternalServerError, CodeAnalysisUpstream, "AI service error: "+upErr.Error())
	case errors.As(err, &malErr):
		logRequestError(r, "Analysis response malformed", err, "content", malErr.Content)
		writeError(w, r, http.StatusInternalServerError, CodeAnalysisMalformed, "Invalid response format from AI")
	case errors.Is(err, billing.ErrInvalidPlan):
		writeError(w, r, http.StatusBadRequest, CodeValidation, "Invalid plan type")
	case errors.Is(err, billing.ErrInvalidSignature):
		writeError(w, r, http.StatusBadRequest, CodeInvalidSignature, "Invalid signature")
	case errors.Is(err, billing.ErrNotConfigured):
		writeError(w, r, http.StatusInternalServerError, CodeBillingNotConfigured, "Payment gateway not configured")
	default:
		logRequestError(r, internalMsg, err)
		writeError(w, r, http.StatusInternalServerError, CodeInternal, internalMsg)
	}
}

func logRequestError(r *http.Request, msg string, err error, args ...any) {
	args = append([]any{
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", RequestIDFromContext(r.Context()),
	}, args...)
	slog.Error(msg, args...)
}

// decodeJSON reads a single JSON value from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &domain.ValidationError{Reason: "request body is required"}
		}
		return &domain.ValidationError{Reason: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	return nil
}

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct checks the struct tags of v and reports failures as a
// domain.ValidationError naming the offending fields.
func validateStruct(validate *validator.Validate, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()[strings.Index(fe.Namespace(), ".")+1:])
	}
	return &domain.ValidationError{Fields: fields}
}
