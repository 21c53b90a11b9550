package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Fields the actions attach to their request log line. They are emitted
// ahead of any other field, in this order.
const (
	FieldModel   = "model"
	FieldKey     = "pk"
	FieldSocket  = "socket"
	FieldOutcome = "outcome"
	FieldStage   = "stage"
	FieldError   = "error"
)

var actionFields = []string{FieldModel, FieldKey, FieldSocket, FieldOutcome, FieldStage, FieldError}

type requestLogKey struct{}

// requestLog collects fields for one request. Stages may run concurrently,
// so writes are locked.
type requestLog struct {
	mu     sync.Mutex
	fields map[string]string
}

func (l *requestLog) set(key, value string) {
	l.mu.Lock()
	l.fields[key] = value
	l.mu.Unlock()
}

func (l *requestLog) attrs() []slog.Attr {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]slog.Attr, 0, len(l.fields))
	for _, k := range actionFields {
		if v, ok := l.fields[k]; ok {
			out = append(out, slog.String(k, v))
		}
	}
	var rest []string
	for k := range l.fields {
		if !isActionField(k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, slog.String(k, l.fields[k]))
	}
	return out
}

func isActionField(k string) bool {
	for _, f := range actionFields {
		if f == k {
			return true
		}
	}
	return false
}

// LoggingMiddleware writes one structured line per request once it
// finishes: the request identity, the matched route, the status and
// duration, then whatever the action recorded through AddLogField. Server
// errors log at Error and client errors at Warn.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rl := &requestLog{fields: make(map[string]string)}
			ctx := context.WithValue(r.Context(), requestLogKey{}, rl)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			requestID := GetRequestID(r.Context())

			logger.Debug("request started",
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)

			next.ServeHTTP(rec, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			}
			if rctx := chi.RouteContext(ctx); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					attrs = append(attrs, slog.String("route", pattern))
				}
			}
			attrs = append(attrs,
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
			)
			attrs = append(attrs, rl.attrs()...)

			logger.LogAttrs(ctx, levelFor(rec.status), "request completed", attrs...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades through the logger.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// AddLogField records key on the request log line. Empty values are
// ignored, as are calls outside LoggingMiddleware.
func AddLogField(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if rl, ok := ctx.Value(requestLogKey{}).(*requestLog); ok {
		rl.set(key, value)
	}
}

// AddError records err on the request log line.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	AddLogField(ctx, FieldError, err.Error())
}
