// Package handler exposes the plugin's HTTP surface: the OAuth login
// flow, session start, the broker core's auth-result callback, and the
// credential views for hosts.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the route tree. auth may be nil when no OAuth
// provider is configured; the login flow and the browser-facing
// credential pages are then not served.
func NewRouter(auth *AuthHandler, sessions *SessionHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/session/{purpose}", sessions.AuthSelect)
	r.Post("/start", sessions.Start)
	r.Post("/auth_result/{attr_id}", sessions.AuthResult)
	r.Get("/session_info", sessions.SessionInfo)

	if auth != nil {
		r.Get("/auth/login", auth.Login)
		r.Get("/auth/redirect", auth.Redirect)
		r.Post("/auth/logout", auth.Logout)

		guard := func(next http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				if err := auth.requireValidToken(r); err != nil {
					writeError(w, err)
					return
				}
				next(w, r)
			}
		}
		r.Get("/credentials.html", guard(sessions.CredentialsPage))
		r.Get("/credentials", guard(sessions.CredentialsFragment))
	}

	return r
}
