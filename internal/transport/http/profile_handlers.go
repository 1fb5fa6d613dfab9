package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ovoronin/talkline-server/internal/auth"
	"github.com/ovoronin/talkline-server/internal/store"
)

// ProfileHandlers provides HTTP handlers for the caller's own account.
type ProfileHandlers struct {
	store       store.UserStore
	authService *auth.Service
	log         *zerolog.Logger
}

// NewProfileHandlers creates a new profile handlers instance.
func NewProfileHandlers(st store.UserStore, authService *auth.Service, logger *zerolog.Logger) *ProfileHandlers {
	return &ProfileHandlers{
		store:       st,
		authService: authService,
		log:         logger,
	}
}

// UpdateUsernameRequest represents the username change request body.
type UpdateUsernameRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
}

// ChangePasswordRequest represents the password change request body.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// Me returns the authenticated user's own profile.
// GET /api/me
func (h *ProfileHandlers) Me(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	user, err := h.store.GetUserByID(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", uid).Msg("failed to load profile")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

// UpdateUsername renames the account and hands back a token carrying the new
// name; the caller swaps it in so later requests match the directory.
// PATCH /api/profile/username
func (h *ProfileHandlers) UpdateUsername(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req UpdateUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.ChangeUsername(c.Request.Context(), uid, req.Username)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "username already taken"})
		case errors.Is(err, auth.ErrInvalidUsername):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid username"})
		default:
			h.log.Error().Err(err).Str("user_id", uid).Msg("failed to update username")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("user_id", uid).Str("username", req.Username).Msg("username updated")
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// ChangePassword verifies the current password before accepting a new one.
// PATCH /api/profile/password
func (h *ProfileHandlers) ChangePassword(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), uid, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "current password is incorrect"})
		case errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid new password"})
		default:
			h.log.Error().Err(err).Str("user_id", uid).Msg("failed to change password")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}
