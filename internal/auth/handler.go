package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-media/gallery/pkg/response"
	"github.com/aura-media/gallery/pkg/utils"
)

// ContextSessionID is the gin context key holding the authenticated session id.
const ContextSessionID = "session_id"

const adminSubject = "admin"

// Handler serves the login, logout and password endpoints.
type Handler struct {
	creds    *CredentialStore
	sessions SessionStore
	jwt      *JWTService
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(creds *CredentialStore, sessions SessionStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{creds: creds, sessions: sessions, jwt: jwt, logger: logger}
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ChangePasswordRequest is the body of PUT /api/password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// Login handles POST /api/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "password is required")
		return
	}
	if !h.creds.Verify(req.Password) {
		response.Unauthorized(c, "invalid password")
		return
	}
	token, sessionID, expiresAt, err := h.jwt.Generate(adminSubject)
	if err != nil {
		h.logger.Error("sign session token", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}
	if err := h.sessions.Create(c.Request.Context(), sessionID, h.jwt.TTL()); err != nil {
		h.logger.Error("store session", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}
	h.logger.Info("session created", zap.String("session_id", sessionID))
	response.OK(c, LoginResponse{Token: token, ExpiresAt: expiresAt.UTC()})
}

// Logout handles POST /api/logout. Requires RequireSession upstream.
func (h *Handler) Logout(c *gin.Context) {
	sessionID := c.GetString(ContextSessionID)
	if sessionID == "" {
		response.Unauthorized(c, "not logged in")
		return
	}
	if err := h.sessions.Revoke(c.Request.Context(), sessionID); err != nil {
		h.logger.Error("revoke session", zap.String("session_id", sessionID), zap.Error(err))
		response.Internal(c, "failed to log out")
		return
	}
	response.OKMessage(c, "Logged out")
}

// ChangePassword handles PUT /api/password and revokes every session on success.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "oldPassword and newPassword are required")
		return
	}
	err := h.creds.Rotate(req.OldPassword, req.NewPassword)
	switch {
	case errors.Is(err, ErrInvalidCredential):
		response.Unauthorized(c, "invalid password")
		return
	case errors.Is(err, utils.ErrPasswordTooShort):
		response.BadRequest(c, err.Error())
		return
	case err != nil:
		h.logger.Error("rotate password", zap.Error(err))
		response.Internal(c, "failed to change password")
		return
	}
	if err := h.sessions.RevokeAll(c.Request.Context()); err != nil {
		h.logger.Error("revoke sessions after password change", zap.Error(err))
	}
	h.logger.Info("admin password changed")
	response.OKMessage(c, "Password changed")
}
