package negotiate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tjfontaine/blueprint-api/internal/core/domain"
	"github.com/tjfontaine/blueprint-api/internal/pipeline"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestFailure_Classification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   domain.ErrorType
	}{
		{"invalid request", domain.ErrInvalidRequest("bad tag"), http.StatusBadRequest, domain.ErrorTypeInvalidRequest},
		{"permission", domain.ErrPermission("denied").WithCode(domain.ErrorCodeHookDenied), http.StatusForbidden, domain.ErrorTypePermission},
		{"conflict", domain.ErrConflict("duplicate"), http.StatusConflict, domain.ErrorTypeConflict},
		{"wrapped", fmt.Errorf("link: %w", domain.ErrInvalidRequest("unknown id")), http.StatusBadRequest, domain.ErrorTypeInvalidRequest},
		{"unclassified", errors.New("disk on fire"), http.StatusInternalServerError, domain.ErrorTypeServer},
		{"consistency", fmt.Errorf("%w: record missing after create", domain.ErrConsistency), http.StatusInternalServerError, domain.ErrorTypeServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			New(true, quiet()).Failure(rec, httptest.NewRequest("POST", "/posts", nil), tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q", ct)
			}
			if got := decode(t, rec); got.Type != tt.wantType {
				t.Errorf("type = %q, want %q", got.Type, tt.wantType)
			}
		})
	}
}

func TestFailure_HidesServerDetailWhenNotExposed(t *testing.T) {
	err := &pipeline.StageError{Stage: "populate", Err: fmt.Errorf("%w: record missing after create", domain.ErrConsistency)}

	rec := httptest.NewRecorder()
	New(false, quiet()).Failure(rec, httptest.NewRequest("POST", "/posts", nil), err)
	got := decode(t, rec)
	if got.Message != genericMessage || got.Stage != "" {
		t.Errorf("detail leaked: %+v", got)
	}

	rec = httptest.NewRecorder()
	New(true, quiet()).Failure(rec, httptest.NewRequest("POST", "/posts", nil), err)
	got = decode(t, rec)
	if got.Stage != "populate" || got.Message == genericMessage {
		t.Errorf("expected exposed detail, got %+v", got)
	}
}

func TestFailure_ClientErrorsKeepMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &pipeline.StageError{Stage: "link", Err: domain.ErrInvalidRequest("unknown tag 9").WithParam("tags")}
	New(false, quiet()).Failure(rec, httptest.NewRequest("PUT", "/posts/1", nil), err)

	got := decode(t, rec)
	if got.Message != "unknown tag 9" || got.Param != "tags" || got.Stage != "link" {
		t.Errorf("detail = %+v", got)
	}
}

func TestOutcome(t *testing.T) {
	n := New(true, quiet())
	req := httptest.NewRequest("PUT", "/posts/1", nil)

	rec := httptest.NewRecorder()
	n.Outcome(rec, req, domain.Outcome{Status: domain.OutcomeOK, Envelope: domain.Envelope{"post": map[string]any{"id": 1}}}, http.StatusCreated)
	if rec.Code != http.StatusCreated {
		t.Errorf("ok status = %d", rec.Code)
	}
	var env map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil || env["post"] == nil {
		t.Errorf("envelope body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	n.Outcome(rec, req, domain.Outcome{Status: domain.OutcomeNotFound}, http.StatusOK)
	if rec.Code != http.StatusNotFound || rec.Body.Len() != 0 {
		t.Errorf("not found: status %d body %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	n.Outcome(rec, req, domain.Outcome{Status: domain.OutcomeFailed, Err: errors.New("x")}, http.StatusOK)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("failed status = %d", rec.Code)
	}
}
