package api

import (
	"encoding/json"
	"net/http"

	"sphere-cms/internal/auth"
	"sphere-cms/internal/logger"
)

// requireAdmin rejects requests without a live admin session.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.admin.Check(auth.TokenFromRequest(r)); err != nil {
			writeError(w, errorStatus(err), err.Error())
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	sess, err := s.admin.Login(req.Password)
	if err != nil {
		logger.Warn("AUTH", "Login rejected: "+err.Error())
		writeErr(w, r, err)
		return
	}
	auth.SetCookie(w, sess)
	logger.Info("AUTH", "Admin logged in")
	writeJSON(w, map[string]interface{}{
		"logged_in":  true,
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt.Unix(),
	})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.admin.Check(auth.TokenFromRequest(r))
	if err != nil {
		writeJSON(w, map[string]interface{}{"logged_in": false, "enabled": s.admin.Enabled()})
		return
	}
	writeJSON(w, map[string]interface{}{
		"logged_in":  true,
		"enabled":    true,
		"expires_at": sess.ExpiresAt.Unix(),
	})
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		s.admin.Logout(token)
	}
	auth.ClearCookie(w)
	logger.Info("AUTH", "Logged out")
	writeJSON(w, map[string]interface{}{"logged_in": false})
}
