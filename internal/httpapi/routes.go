package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jspeir/arenaclient/internal/session"
)

// SetupRoutes builds the local debug router around an injected session.
func SetupRoutes(s *session.Session) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/session", SessionStatus(s))
	return r
}
