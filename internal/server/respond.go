package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"manageease/internal/apperr"
)

type errorBody struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type successBody struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// errorStatus maps an error kind to its HTTP status and wire name.
func errorStatus(err error) (int, string) {
	switch apperr.Kind(err) {
	case apperr.ErrUnauthenticated:
		return http.StatusUnauthorized, "unauthenticated"
	case apperr.ErrInvalidCredentials:
		return http.StatusUnauthorized, "invalid_credentials"
	case apperr.ErrValidation:
		return http.StatusBadRequest, "validation_error"
	case apperr.ErrInvalidAssignee:
		return http.StatusBadRequest, "invalid_assignee"
	case apperr.ErrInvalidStatus:
		return http.StatusBadRequest, "invalid_status"
	case apperr.ErrForbidden:
		return http.StatusForbidden, "forbidden"
	case apperr.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case apperr.ErrConflict:
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// respondError logs the error and writes the failure envelope. Unexpected
// errors are logged in full and reported with a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	status, kind := errorStatus(err)
	body := errorBody{Error: kind, Message: apperr.Message(err)}

	var e *apperr.Error
	if errors.As(err, &e) {
		body.Fields = e.Fields
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	} else {
		s.logger.Debug("request rejected", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, body)
}

// respondSuccess wraps a payload in the success envelope.
func respondSuccess(c *gin.Context, status int, data any, message string) {
	c.JSON(status, successBody{Success: true, Message: message, Data: data})
}

func abortJSON(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: kind, Message: message})
}
