package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/poiesic/sibyl/chat"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/generation"
	"github.com/poiesic/sibyl/ingestion"
)

// Error codes.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeFileTooLarge  = "FILE_TOO_LARGE"
	CodeConfiguration = "CONFIGURATION_ERROR"
	CodeUnavailable   = "MODEL_UNAVAILABLE"
	CodeNotFound      = "NOT_FOUND"
	CodeUpstream      = "UPSTREAM_ERROR"
	CodeInternal      = "INTERNAL_ERROR"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	// Failures lists the provider attempts of a MODEL_UNAVAILABLE error.
	Failures []ProviderFailure `json:"failures,omitempty"`
}

// ProviderFailure is one failed generation attempt.
type ProviderFailure struct {
	Provider string `json:"provider"`
	Reason   string `json:"reason"`
}

// classify maps an error to its status and body.
func classify(err error) (int, ErrorDetail) {
	var verr *core.ValidationError
	var cerr *generation.ConfigurationError
	var uerr *generation.ServiceUnavailableError

	switch {
	case errors.As(err, &verr):
		if verr.Code == CodeFileTooLarge {
			return http.StatusRequestEntityTooLarge, ErrorDetail{Code: CodeFileTooLarge, Message: verr.Error(), Field: verr.Field}
		}
		return http.StatusBadRequest, ErrorDetail{Code: CodeValidation, Message: verr.Error(), Field: verr.Field}
	case errors.Is(err, generation.ErrMissingField),
		errors.Is(err, generation.ErrUnknownKind),
		errors.Is(err, generation.ErrDuplicateName),
		errors.Is(err, generation.ErrDuplicatePriority):
		return http.StatusBadRequest, ErrorDetail{Code: CodeValidation, Message: err.Error(), Field: "providers"}
	case errors.As(err, &cerr):
		return http.StatusServiceUnavailable, ErrorDetail{Code: CodeConfiguration, Message: cerr.Error()}
	case errors.As(err, &uerr):
		d := ErrorDetail{Code: CodeUnavailable, Message: uerr.Error()}
		for _, f := range uerr.Failures {
			d.Failures = append(d.Failures, ProviderFailure{Provider: f.Provider, Reason: string(f.Reason)})
		}
		return http.StatusServiceUnavailable, d
	case errors.Is(err, generation.ErrModelList):
		return http.StatusBadGateway, ErrorDetail{Code: CodeUpstream, Message: err.Error()}
	case errors.Is(err, chat.ErrConversationNotFound), errors.Is(err, ingestion.ErrBatchNotFound):
		return http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: err.Error()}
	}
	return http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: "internal error"}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		logger.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, ErrorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Debug("failed to encode response", "err", err)
	}
}
