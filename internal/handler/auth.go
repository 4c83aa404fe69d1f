package handler

import (
	"net/http"

	"github.com/google/uuid"

	"commauth/internal/apperror"
	"commauth/internal/provider"
)

const (
	tokenCookie    = "token"
	redirectCookie = "redirect"
	stateCookie    = "state"
)

// AuthHandler runs the cookie-based login flow against the configured
// OAuth identity provider.
type AuthHandler struct {
	provider *provider.Provider
}

// NewAuthHandler returns the login-flow handler.
func NewAuthHandler(p *provider.Provider) *AuthHandler {
	return &AuthHandler{provider: p}
}

func setCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Login stores the caller's return URL and a CSRF state, then sends the
// user to the provider's consent page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	redirect := r.URL.Query().Get("redirect")
	if redirect == "" {
		writeError(w, apperror.BadRequest("missing redirect parameter"))
		return
	}

	state := uuid.New().String()
	setCookie(w, redirectCookie, redirect)
	setCookie(w, stateCookie, state)

	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusSeeOther)
}

// Redirect completes the code exchange. The token is accepted only if
// the provider can still serve the user's profile with it; anything
// else is a rejection, with no cookie and no redirect loop.
func (h *AuthHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || state.Value != r.URL.Query().Get("state") {
		writeError(w, apperror.ErrForbidden)
		return
	}
	clearCookie(w, stateCookie)

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.BadRequest("missing code parameter"))
		return
	}

	tok, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, apperror.ErrForbidden)
		return
	}
	ok, err := h.provider.CheckToken(r.Context(), tok.AccessToken)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, apperror.ErrForbidden)
		return
	}

	setCookie(w, tokenCookie, tok.AccessToken)

	target := "/"
	if c, err := r.Cookie(redirectCookie); err == nil && c.Value != "" {
		target = c.Value
	}
	clearCookie(w, redirectCookie)

	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Logout deletes the token cookie. The provider-side grant is untouched.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearCookie(w, tokenCookie)
	w.WriteHeader(http.StatusNoContent)
}

// requireValidToken checks the token cookie against the provider. A
// missing or stale token is a Forbidden, a provider outage an error.
func (h *AuthHandler) requireValidToken(r *http.Request) error {
	c, err := r.Cookie(tokenCookie)
	if err != nil || c.Value == "" {
		return apperror.ErrForbidden
	}
	ok, err := h.provider.CheckToken(r.Context(), c.Value)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ErrForbidden
	}
	return nil
}
