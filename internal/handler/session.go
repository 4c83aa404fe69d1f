package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"commauth/internal/apperror"
	"commauth/internal/credentials"
	"commauth/internal/session/repository"
	"commauth/internal/session/service"
	"commauth/internal/token"
)

// maxAuthResultSize bounds the broker core's callback body.
const maxAuthResultSize = 1 << 20

// CoreClient starts authentication-only flows at the broker core.
type CoreClient struct {
	// CoreURL is the broker core's base URL.
	CoreURL string
	// HTTPClient defaults to a client with a sane timeout.
	HTTPClient *http.Client
}

// NewCoreClient returns a client for the broker core.
func NewCoreClient(coreURL string) *CoreClient {
	return &CoreClient{
		CoreURL:    coreURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type startAuthResponse struct {
	ClientURL string `json:"client_url"`
}

// StartAuth posts a signed start-authentication request and returns
// the URL the guest's client must visit to authenticate.
func (c *CoreClient) StartAuth(ctx context.Context, signedRequest string) (string, error) {
	body, err := json.Marshal(map[string]string{"request": signedRequest})
	if err != nil {
		return "", err
	}
	url := strings.TrimSuffix(c.CoreURL, "/") + "/start"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("start auth at core: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("start auth at core: unexpected status %d", resp.StatusCode)
	}

	var out startAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode core response: %w", err)
	}
	return out.ClientURL, nil
}

// URLs carries the deployment's base URLs and display name for the
// routes that hand users off to other components.
type URLs struct {
	// Server is the plugin's externally reachable base URL.
	Server string
	// Internal is the base URL the broker core uses to call back.
	Internal string
	// Widget is the auth-select widget's base URL.
	Widget string
	// DisplayName labels this communication method in the widget.
	DisplayName string
}

// SessionHandler exposes the plugin's session and credential surface.
type SessionHandler struct {
	service  *service.Service
	repo     repository.Repository
	keys     *token.KeyRing
	renderer *credentials.Renderer
	core     *CoreClient
	urls     URLs
}

// NewSessionHandler wires the session routes.
func NewSessionHandler(svc *service.Service, repo repository.Repository, keys *token.KeyRing, renderer *credentials.Renderer, core *CoreClient, urls URLs) *SessionHandler {
	return &SessionHandler{
		service:  svc,
		repo:     repo,
		keys:     keys,
		renderer: renderer,
		core:     core,
		urls:     urls,
	}
}

// AuthSelect sends the user to the auth-select widget with signed
// parameters for the given purpose. The widget returns them to /start
// on method selection.
func (h *SessionHandler) AuthSelect(w http.ResponseWriter, r *http.Request) {
	purpose := chi.URLParam(r, "purpose")
	if purpose == "" {
		writeError(w, apperror.BadRequest("missing purpose"))
		return
	}

	signed, err := token.SignAuthSelectParams(token.AuthSelectParams{
		Purpose:     purpose,
		StartURL:    strings.TrimSuffix(h.urls.Server, "/") + "/start",
		DisplayName: h.urls.DisplayName,
	}, h.keys.WidgetSigner)
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, strings.TrimSuffix(h.urls.Widget, "/")+"#"+signed, http.StatusSeeOther)
}

type startRequest struct {
	Purpose    string `json:"purpose"`
	AuthMethod string `json:"auth_method"`
	GuestToken string `json:"guest_token"`
}

type startResponse struct {
	ClientURL string `json:"client_url"`
}

// Start verifies the guest's platform token, opens a session, and asks
// the broker core to begin an authentication-only flow. The guest's
// attributes will arrive later on the session's attr_id callback.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.BadRequest("invalid request body"))
		return
	}
	if req.Purpose == "" || req.AuthMethod == "" || req.GuestToken == "" {
		writeError(w, apperror.BadRequest("purpose, auth_method and guest_token are required"))
		return
	}

	guest, err := token.ParseGuestToken(req.GuestToken, h.keys.GuestSecret)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := h.service.Create(r.Context(), *guest, req.Purpose)
	if err != nil {
		writeError(w, err)
		return
	}

	signed, err := token.SignStartAuthRequest(token.StartAuthRequest{
		Purpose:    req.Purpose,
		AuthMethod: req.AuthMethod,
		CommURL:    guest.RedirectURL,
		AttrURL:    strings.TrimSuffix(h.urls.Internal, "/") + "/auth_result/" + sess.AttrID,
	}, h.keys.StartAuthSigner)
	if err != nil {
		writeError(w, err)
		return
	}

	clientURL, err := h.core.StartAuth(r.Context(), signed)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, startResponse{ClientURL: clientURL})
}

// AuthResult receives the broker core's callback: the opaque signed and
// encrypted attribute bundle for one session. The blob is stored as-is;
// it is only opened when a host asks for credentials.
func (h *SessionHandler) AuthResult(w http.ResponseWriter, r *http.Request) {
	attrID := chi.URLParam(r, "attr_id")

	var blob bytes.Buffer
	if _, err := blob.ReadFrom(http.MaxBytesReader(w, r.Body, maxAuthResultSize)); err != nil {
		writeError(w, apperror.BadRequest("could not read auth result"))
		return
	}

	if err := h.service.RegisterAuthResult(r.Context(), attrID, blob.String()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// hostTokenFrom pulls the host platform token from the Authorization
// header or, for browser-facing pages, the host_token query parameter.
func hostTokenFrom(r *http.Request) (string, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		raw, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || raw == "" {
			return "", apperror.BadRequest("malformed authorization header")
		}
		return raw, nil
	}
	if raw := r.URL.Query().Get("host_token"); raw != "" {
		return raw, nil
	}
	return "", apperror.BadRequest("missing host token")
}

// SessionInfo returns the room's verified credentials as JSON to the
// host platform.
func (h *SessionHandler) SessionInfo(w http.ResponseWriter, r *http.Request) {
	raw, err := hostTokenFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	creds, err := credentials.ForHost(r.Context(), raw, h.keys, h.repo)
	if err != nil {
		writeError(w, err)
		return
	}
	h.render(w, creds, credentials.RenderJSON)
}

// CredentialsPage renders the room's credentials as a standalone page.
func (h *SessionHandler) CredentialsPage(w http.ResponseWriter, r *http.Request) {
	h.renderedCredentials(w, r, credentials.RenderHTMLPage)
}

// CredentialsFragment renders the credential sections for embedding.
func (h *SessionHandler) CredentialsFragment(w http.ResponseWriter, r *http.Request) {
	h.renderedCredentials(w, r, credentials.RenderHTML)
}

func (h *SessionHandler) renderedCredentials(w http.ResponseWriter, r *http.Request, kind credentials.RenderType) {
	raw, err := hostTokenFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	creds, err := credentials.ForHost(r.Context(), raw, h.keys, h.repo)
	if err != nil {
		writeError(w, err)
		return
	}
	h.render(w, creds, kind)
}

func (h *SessionHandler) render(w http.ResponseWriter, creds []credentials.Credentials, kind credentials.RenderType) {
	out, err := h.renderer.Render(creds, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Content); err != nil {
		writeError(w, err)
	}
}
