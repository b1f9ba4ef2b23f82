package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"manageease/internal/models"
)

const requesterKey = "requester"

// recoverWithLogger turns panics into a 500 envelope and logs the stack.
func recoverWithLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered",
					slog.String("path", c.Request.URL.Path),
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())))
				abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		c.Next()
	}
}

// requireAuth resolves the bearer token to an active user and stores the
// requester on the context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthenticated", "access token required")
			return
		}

		u, err := s.users.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.Set(requesterKey, models.Requester{UserID: u.ID, IsActive: u.IsActive})
		c.Next()
	}
}

// requester returns the identity set by requireAuth. The zero value is
// rejected by every service operation.
func requester(c *gin.Context) models.Requester {
	if v, ok := c.Get(requesterKey); ok {
		if r, ok := v.(models.Requester); ok {
			return r
		}
	}
	return models.Requester{}
}
