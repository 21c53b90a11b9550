// Package negotiate turns pipeline outcomes into HTTP responses. It is the
// only place a failure is classified for the client.
package negotiate

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/pipeline"
	"github.com/tjfontaine/blueprint-api/internal/server"
)

const genericMessage = "internal server error"

// Negotiator writes failure responses.
type Negotiator struct {
	// Expose includes the underlying error message and failing stage in
	// server error bodies. Client errors always carry their message.
	Expose bool
	Logger *slog.Logger
}

// New creates a Negotiator.
func New(expose bool, logger *slog.Logger) *Negotiator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{Expose: expose, Logger: logger}
}

// ErrorBody is the JSON failure envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Type    domain.ErrorType `json:"type"`
	Code    domain.ErrorCode `json:"code,omitempty"`
	Message string           `json:"message"`
	Param   string           `json:"param,omitempty"`
	Stage   string           `json:"stage,omitempty"`
}

// Failure writes err as a classified JSON failure. Errors that carry no
// *domain.APIError become server errors.
func (n *Negotiator) Failure(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := domain.AsAPIError(err)
	status := apiErr.HTTPStatusCode()
	server.AddError(r.Context(), err)

	detail := ErrorDetail{
		Type:    apiErr.Type,
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Param:   apiErr.Param,
	}

	if status >= http.StatusInternalServerError {
		n.Logger.Error("action failed",
			slog.String("request_id", server.GetRequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		if !n.Expose {
			detail.Message = genericMessage
		}
	}
	if stage, ok := pipeline.FailedStage(err); ok {
		server.AddLogField(r.Context(), server.FieldStage, stage)
		if n.Expose || status < http.StatusInternalServerError {
			detail.Stage = stage
		}
	}

	WriteJSON(w, status, ErrorBody{Error: detail})
}

// Outcome writes the response for a finished pipeline: the envelope with
// success status, a bare 404, or a negotiated failure.
func (n *Negotiator) Outcome(w http.ResponseWriter, r *http.Request, out domain.Outcome, success int) {
	switch out.Status {
	case domain.OutcomeOK:
		WriteJSON(w, success, out.Envelope)
	case domain.OutcomeNotFound:
		NotFound(w)
	default:
		n.Failure(w, r, out.Err)
	}
}

// NotFound writes a 404 with no body.
func NotFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("failed to encode response", slog.String("error", err.Error()))
	}
}
