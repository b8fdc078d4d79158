package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// userIDHeader carries the caller identity set by the authenticating proxy.
const userIDHeader = "X-User-ID"

type Principal struct {
	UserID int64
}

type principalContextKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func currentPrincipal(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalContextKey{})
	if v == nil {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

func requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(userIDHeader))
		if raw == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthenticated", "missing "+userIDHeader)
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, http.StatusUnauthorized, "unauthenticated", "invalid "+userIDHeader)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), Principal{UserID: id})))
	})
}

// viewerID is only called behind requirePrincipal.
func viewerID(r *http.Request) int64 {
	p, _ := currentPrincipal(r.Context())
	return p.UserID
}
