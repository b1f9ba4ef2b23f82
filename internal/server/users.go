package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"manageease/internal/users"
)

// handleListUsers serves the assignee picker.
func (s *Server) handleListUsers(c *gin.Context) {
	list, err := s.users.Directory(c.Request.Context(), requester(c), c.Query("search"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"users": list}, "")
}

// handleGetUser returns the public view of an active user.
func (s *Server) handleGetUser(c *gin.Context) {
	u, err := s.users.GetUser(c.Request.Context(), requester(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": u}, "")
}

// handleGetProfile returns the requester with task counts.
func (s *Server) handleGetProfile(c *gin.Context) {
	p, err := s.users.Profile(c.Request.Context(), requester(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": p}, "")
}

// handleUpdateProfile updates name and email.
func (s *Server) handleUpdateProfile(c *gin.Context) {
	var in users.ProfileInput
	if !s.bindJSON(c, &in) {
		return
	}
	u, err := s.users.UpdateProfile(c.Request.Context(), requester(c), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": u}, "Profile updated successfully")
}

// handleChangePassword replaces the requester's password.
func (s *Server) handleChangePassword(c *gin.Context) {
	var in users.PasswordInput
	if !s.bindJSON(c, &in) {
		return
	}
	if err := s.users.ChangePassword(c.Request.Context(), requester(c), in); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, nil, "Password changed successfully")
}

// handleDeactivate disables the account and ends the session.
func (s *Server) handleDeactivate(c *gin.Context) {
	if err := s.users.Deactivate(c.Request.Context(), requester(c)); err != nil {
		s.respondError(c, err)
		return
	}
	s.clearRefreshCookie(c)
	respondSuccess(c, http.StatusOK, nil, "Account deactivated successfully")
}

// handleDeleteAccount removes the account and its tasks.
func (s *Server) handleDeleteAccount(c *gin.Context) {
	if err := s.users.DeleteAccount(c.Request.Context(), requester(c)); err != nil {
		s.respondError(c, err)
		return
	}
	s.clearRefreshCookie(c)
	respondSuccess(c, http.StatusOK, nil, "Account deleted successfully")
}
