package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/jacksonlee411/worklog/pkg/docstore"
	"github.com/jacksonlee411/worklog/pkg/httperr"
)

type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    ErrorEnvelopeMeta `json:"meta"`
}

type ErrorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	writeJSON(w, status, ErrorEnvelope{
		Code:    code,
		Message: message,
		TraceID: traceIDFromRequest(r),
		Meta: ErrorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
	})
}

// writeServiceError maps service errors onto statuses. Anything that is not
// a coded error is logged and reported as defaultCode.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error, defaultCode string) {
	code := httperr.Code(err)
	switch {
	case httperr.IsBadRequest(err):
		writeError(w, r, http.StatusBadRequest, code, "invalid request")
	case httperr.IsNotFound(err):
		writeError(w, r, http.StatusNotFound, code, "not found")
	case httperr.IsConflict(err):
		writeError(w, r, http.StatusConflict, code, "conflict")
	case httperr.IsForbidden(err):
		writeError(w, r, http.StatusForbidden, code, "forbidden")
	case httperr.IsTooManyRequests(err):
		writeError(w, r, http.StatusTooManyRequests, code, "too many requests")
	case errors.Is(err, docstore.ErrConcurrentUpdate):
		log.Warn("concurrent update failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "concurrent_update_failed", "concurrent update failed")
	default:
		log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", defaultCode),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, defaultCode, "internal error")
	}
}

// traceIDFromRequest prefers a W3C traceparent and falls back to the request id.
func traceIDFromRequest(r *http.Request) string {
	if id := traceparentID(r.Header.Get("traceparent")); id != "" {
		return id
	}
	return requestIDFrom(r.Context())
}

func traceparentID(traceparent string) string {
	traceparent = strings.TrimSpace(traceparent)
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
