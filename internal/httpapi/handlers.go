// Package httpapi exposes a small local debug surface for a running
// client: liveness and a read-only session snapshot.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jspeir/arenaclient/internal/session"
)

// SessionStatus reports the session snapshot as JSON. The read goes
// through the session loop, never through direct field access.
func SessionStatus(s *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		st, err := s.Status(ctx)
		if err != nil {
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
