// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package auth

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/nfvlabs/nbi/internal/logging"
	"github.com/nfvlabs/nbi/internal/models"
)

// TokenHandler exposes the token-management API consumed by administrative
// callers. Creation is reachable without a prior session (it is how sessions
// begin); every other route sits behind the authorization middleware.
type TokenHandler struct {
	auth     *Authenticator
	throttle *issueThrottle
}

// NewTokenHandler creates the token API handler.
func NewTokenHandler(a *Authenticator) *TokenHandler {
	return &TokenHandler{
		auth:     a,
		throttle: newIssueThrottle(rate.Every(2 * time.Second), 5),
	}
}

// ProtectedRoutes returns the routes that require an authorized session.
func (h *TokenHandler) ProtectedRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	return r
}

// Create handles token issuance: fresh credentials in the body, or an
// existing bearer token re-scoped to another project. Credential attempts
// are throttled per peer host to damp brute forcing.
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	remote := remoteInfo(r)

	var creds Credentials
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, models.NewError(models.KindUnauthorized, "malformed token request body"))
			return
		}
	}

	if creds.Username != "" && !h.throttle.allow(remote.Host) {
		logging.Warn().Str("remote_host", remote.Host).Msg("token issuance throttled")
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"code":   "too_many_requests",
			"status": http.StatusTooManyRequests,
			"detail": "too many authentication attempts",
		})
		return
	}

	// An existing valid session may be re-scoped instead of presenting
	// credentials again.
	var existing *models.Session
	if token := bearerToken(r); token != "" {
		if s, err := h.auth.ValidateToken(r.Context(), token); err == nil {
			existing = s
		}
	}

	session, err := h.auth.NewToken(r.Context(), existing, creds, remote)
	if err != nil {
		w.Header().Set("WWW-Authenticate", h.auth.Challenge())
		writeError(w, err)
		return
	}

	setSessionCookie(w, session.ID)
	writeJSON(w, http.StatusOK, sessionBody(session))
}

func (h *TokenHandler) list(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, models.NewError(models.KindUnauthorized, "no session in request context"))
		return
	}
	tokens, err := h.auth.GetTokenList(r.Context(), session)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, sessionBody(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TokenHandler) get(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, models.NewError(models.KindUnauthorized, "no session in request context"))
		return
	}
	token, err := h.auth.GetToken(r.Context(), session, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionBody(token))
}

func (h *TokenHandler) delete(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, models.NewError(models.KindUnauthorized, "no session in request context"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.auth.DelToken(r.Context(), session, id); err != nil {
		writeError(w, err)
		return
	}
	if id == session.ID {
		clearSessionCookie(w)
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// bearerToken extracts a Bearer token from the request, falling back to the
// stored session cookie.
func bearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != logoutMarker {
		return cookie.Value
	}
	return ""
}

// sessionBody is the wire shape of a session record. The record id doubles
// as the bearer token.
func sessionBody(s *models.Session) map[string]any {
	body := map[string]any{
		"id":         s.ID,
		"_id":        s.ID,
		"issued_at":  s.IssuedAt,
		"expires":    s.Expires,
		"username":   s.Username,
		"project_id": s.ProjectID,
		"admin":      s.Admin,
	}
	if s.RemoteHost != "" {
		body["remote_host"] = s.RemoteHost
	}
	if s.RemotePort != 0 {
		body["remote_port"] = s.RemotePort
	}
	return body
}

// statusFromKind is the single place mapping error kinds to wire statuses.
func statusFromKind(kind models.Kind) int {
	switch kind {
	case models.KindUnauthorized:
		return http.StatusUnauthorized
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	case models.KindBackend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a typed error as its wire status and JSON body.
func writeError(w http.ResponseWriter, err error) {
	kind := models.KindOf(err)
	writeJSON(w, statusFromKind(kind), map[string]any{
		"code":   kind.String(),
		"status": statusFromKind(kind),
		"detail": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("encode response body")
	}
}

// issueThrottle rate-limits credential-based token issuance per peer host.
type issueThrottle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newIssueThrottle(r rate.Limit, burst int) *issueThrottle {
	return &issueThrottle{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

func (t *issueThrottle) allow(host string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	limiter, ok := t.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(t.rate, t.burst)
		t.limiters[host] = limiter
	}
	return limiter.Allow()
}
