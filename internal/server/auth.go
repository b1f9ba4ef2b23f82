package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"manageease/internal/users"
)

const refreshCookie = "refreshToken"

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// handleRegister creates a new account.
func (s *Server) handleRegister(c *gin.Context) {
	var in users.RegisterInput
	if !s.bindJSON(c, &in) {
		return
	}
	u, err := s.users.Register(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"user": u}, "User registered successfully")
}

// handleLogin issues a token pair and sets the refresh cookie.
func (s *Server) handleLogin(c *gin.Context) {
	var in users.LoginInput
	if !s.bindJSON(c, &in) {
		return
	}
	sess, err := s.users.Login(c.Request.Context(), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.setRefreshCookie(c, sess.Tokens.RefreshToken)
	respondSuccess(c, http.StatusOK, sessionPayload(sess), "Login successful")
}

// handleRefresh accepts the refresh token from the cookie or the body.
func (s *Server) handleRefresh(c *gin.Context) {
	token, _ := c.Cookie(refreshCookie)
	if token == "" && c.Request.ContentLength != 0 {
		var req refreshRequest
		if !s.bindJSON(c, &req) {
			return
		}
		token = strings.TrimSpace(req.RefreshToken)
	}

	sess, err := s.users.Refresh(c.Request.Context(), token)
	if err != nil {
		s.clearRefreshCookie(c)
		s.respondError(c, err)
		return
	}
	s.setRefreshCookie(c, sess.Tokens.RefreshToken)
	respondSuccess(c, http.StatusOK, sessionPayload(sess), "Token refreshed")
}

// handleLogout clears the refresh cookie.
func (s *Server) handleLogout(c *gin.Context) {
	s.clearRefreshCookie(c)
	respondSuccess(c, http.StatusOK, nil, "Logged out successfully")
}

func sessionPayload(sess users.Session) gin.H {
	return gin.H{
		"user":         sess.User,
		"accessToken":  sess.Tokens.AccessToken,
		"refreshToken": sess.Tokens.RefreshToken,
		"expiresIn":    sess.Tokens.ExpiresIn,
	}
}

func (s *Server) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, token, int(s.users.RefreshTTL().Seconds()), "/api/v1/auth", "", s.cfg.SecureCookies, true)
}

func (s *Server) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookie, "", -1, "/api/v1/auth", "", s.cfg.SecureCookies, true)
}
