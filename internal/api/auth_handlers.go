package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odvcencio/songlist/internal/auth"
)

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	names := s.providerNames
	if names == nil {
		names = []string{}
	}
	jsonResponse(w, http.StatusOK, map[string][]string{"providers": names})
}

// safeReturnTo accepts only same-origin absolute paths.
func safeReturnTo(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return "/"
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") || strings.ContainsAny(raw, "\r\n") {
		return "/"
	}
	return raw
}

func (s *Server) provider(w http.ResponseWriter, r *http.Request) (*auth.Provider, bool) {
	p, ok := s.providers[r.PathValue("provider")]
	if !ok {
		jsonError(w, "unknown identity provider", http.StatusNotFound)
		return nil, false
	}
	return p, true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := s.provider(w, r)
	if !ok {
		return
	}
	nonce, state, err := s.authSvc.IssueState(p.Name(), safeReturnTo(r.URL.Query().Get("return_to")))
	if err != nil {
		slog.Error("issue oauth state", "provider", p.Name(), "error", err)
		jsonError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	auth.SetStateCookie(w, state, s.secureCookies)
	http.Redirect(w, r, p.AuthCodeURL(nonce), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := s.provider(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		auth.ClearStateCookie(w, s.secureCookies)
		jsonError(w, "login was not completed: "+e, http.StatusUnauthorized)
		return
	}
	cookie, err := r.Cookie(auth.StateCookieName)
	if err != nil {
		jsonError(w, "missing login state", http.StatusBadRequest)
		return
	}
	returnTo, err := s.authSvc.VerifyState(cookie.Value, p.Name(), q.Get("state"))
	auth.ClearStateCookie(w, s.secureCookies)
	if err != nil {
		jsonError(w, "invalid login state", http.StatusBadRequest)
		return
	}
	code := q.Get("code")
	if code == "" {
		jsonError(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	profile, err := p.Exchange(r.Context(), code)
	if err != nil {
		slog.Warn("oauth exchange failed", "provider", p.Name(), "error", err)
		jsonError(w, "identity provider rejected the login", http.StatusBadGateway)
		return
	}
	user := profile.User(p.Name())
	if err := s.db.UpsertUser(r.Context(), user); err != nil {
		slog.Error("upsert user", "provider", p.Name(), "error", err)
		jsonError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	token, sess, err := s.authSvc.CreateSession(r.Context(), user.ID)
	if err != nil {
		slog.Error("create session", "user_id", user.ID, "error", err)
		jsonError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	auth.SetSessionCookie(w, token, sess.ExpiresAt, s.secureCookies)
	slog.Info("user logged in", "user_id", user.ID, "provider", p.Name())
	http.Redirect(w, r, safeReturnTo(returnTo), http.StatusFound)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.db.GetUserByID(r.Context(), currentUserID(r))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.authSvc.Revoke(r.Context(), auth.RequestToken(r)); err != nil && !errors.Is(err, auth.ErrInvalidToken) {
		writeServiceError(w, r, err)
		return
	}
	auth.ClearSessionCookie(w, s.secureCookies)
	w.WriteHeader(http.StatusNoContent)
}
