// NBI - Northbound access-control gate for the orchestration API
// Copyright 2026 NFV Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/nfvlabs/nbi

package auth

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/nfvlabs/nbi/internal/models"
)

// SessionCookie is the cookie carrying the stored session reference.
const SessionCookie = "nbi_session"

// logoutMarker is the cookie value set by logout: it forces re-authentication
// instead of silently reusing the stored reference.
const logoutMarker = "logout"

type contextKey int

const sessionContextKey contextKey = iota

// SessionFromContext returns the session attached by the middleware.
func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(sessionContextKey).(*models.Session)
	return s, ok
}

// ContextWithSession attaches a session to the context (exported for tests
// and for handlers invoked outside the middleware).
func ContextWithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// Middleware gates every request behind Authorize. On success the session is
// attached to the request context; on failure the stored session cookie is
// cleared and a 401 with a WWW-Authenticate Bearer challenge is returned.
func Middleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := &Request{
				Method:        r.Method,
				Path:          r.URL.Path,
				Authorization: r.Header.Get("Authorization"),
				Remote:        remoteInfo(r),
			}
			if cookie, err := r.Cookie(SessionCookie); err == nil {
				if cookie.Value == logoutMarker {
					req.LoggedOut = true
				} else {
					req.StoredToken = cookie.Value
				}
			}

			session, err := a.Authorize(r.Context(), req)
			if err != nil {
				clearSessionCookie(w)
				w.Header().Set("WWW-Authenticate", a.Challenge())
				writeError(w, err)
				return
			}

			if req.IssuedToken != "" {
				setSessionCookie(w, req.IssuedToken)
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// remoteInfo extracts the peer host and port from the request.
func remoteInfo(r *http.Request) models.RemoteInfo {
	host, portStr, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return models.RemoteInfo{Host: r.RemoteAddr}
	}
	port, _ := strconv.Atoi(portStr)
	return models.RemoteInfo{Host: host, Port: port}
}
