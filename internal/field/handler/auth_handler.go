package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/session"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/shared/zonda"
)

// AuthHandler exposes login/logout over the local API. The real credential
// check happens on the Zonda backend; the agent just brokers and persists
// the session.
type AuthHandler struct {
	sess *session.Manager
}

func NewAuthHandler(sess *session.Manager) *AuthHandler {
	return &AuthHandler{sess: sess}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, "email and password are required")
		return
	}

	user, err := h.sess.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var apiErr *zonda.APIError
		if errors.As(err, &apiErr) {
			if apiErr.Message != "" {
				Error(c, apiErr.StatusCode, apiErr.Message)
			} else {
				Error(c, apiErr.StatusCode, "invalid credentials")
			}
			return
		}
		Error(c, 503, "could not reach the server")
		return
	}

	Success(c, user)
}

// Logout POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sess.Logout(); err != nil {
		Error(c, 500, "failed to clear session")
		return
	}
	Success(c, nil)
}

// Me GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user := h.sess.Current()
	if user == nil {
		Error(c, 401, "not authenticated")
		return
	}
	Success(c, user)
}
