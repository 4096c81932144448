package api

import (
	"net/http"
	"time"

	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/pkg/schema"
)

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.deps.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body auth.RegisterInput
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.deps.Accounts.Register(r.Context(), body); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.deps.Accounts.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	s.setSessionCookie(w, sess)
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.deps.Accounts.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	s.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.deps.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Accounts.Me(r.Context(), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Accounts.ListUsers(r.Context(), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body auth.NewUserInput
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	user, err := s.deps.Accounts.CreateUser(r.Context(), principal(r), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role schema.Role `json:"role"`
	}
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if !body.Role.Valid() {
		writeError(w, schema.NewErrorf(schema.ErrCodeValidation, "invalid role %q", body.Role).WithField("role"))
		return
	}
	userID := r.PathValue("id")
	if err := s.deps.Accounts.UpdateUserRole(r.Context(), principal(r), userID, body.Role); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user_id": userID, "role": body.Role})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if err := s.deps.Accounts.DeleteUser(r.Context(), principal(r), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "user_id": userID})
}
