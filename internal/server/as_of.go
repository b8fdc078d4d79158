package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jacksonlee411/worklog/pkg/asof"
)

// requireAsOf reads the as_of query parameter, defaulting to today (UTC).
func requireAsOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if raw == "" {
		return asof.Today(), true
	}
	if _, err := time.Parse(asof.Layout, raw); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_as_of", "invalid as_of")
		return "", false
	}
	return raw, true
}

// queryInt returns def for an absent parameter and false after writing a 400
// for a malformed one.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_"+name, "invalid "+name)
		return 0, false
	}
	return n, true
}

func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_"+name, "invalid "+name)
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_id", "invalid id")
		return 0, false
	}
	return id, true
}
