package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/studhelper/studhelper/internal/auth"
	"github.com/studhelper/studhelper/pkg/response"
)

// AuthHandler exchanges the dashboard password for a bearer token.
type AuthHandler struct {
	auth *iauth.DashboardAuthenticator
}

type tokenRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewAuthHandler constructs the token endpoint handler.
func NewAuthHandler(auth *iauth.DashboardAuthenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// POST /api/auth/token
func (h *AuthHandler) Token(c *gin.Context) {
	var body tokenRequest
	if !bindAndValidate(c, &body) {
		return
	}

	token, expiresAt, err := h.auth.Login(body.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	})
}
