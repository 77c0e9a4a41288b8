// Package authapi implements the super-admin authentication endpoint.
package authapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/org-manager/org-manager/internal/services"
)

// Handlers holds the dependencies for the super-admin auth endpoints.
type Handlers struct {
	authService *services.AuthService
}

// NewHandlers creates a new Handlers instance
func NewHandlers(authService *services.AuthService) *Handlers {
	return &Handlers{authService: authService}
}

// LoginRequest is the JSON body of a super-admin login attempt.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the OAuth2-style bearer token envelope returned on login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// @Summary      Super-admin login
// @Description  Authenticate a super admin by email and password; returns a bearer token carrying the super-admin flag.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body  LoginRequest  true  "Credentials"
// @Success      200  {object}  TokenResponse
// @Failure      400  {object}  map[string]interface{}  "Malformed request body"
// @Failure      401  {object}  map[string]interface{}  "Incorrect email or password"
// @Router       /api/v1/auth/login [post]
// LoginHandler authenticates a super admin and issues a bearer token.
// POST /api/v1/auth/login
func (h *Handlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}

		token, err := h.authService.AuthenticateSuperAdmin(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, services.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "Incorrect email or password",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Authentication failed",
			})
			return
		}

		c.JSON(http.StatusOK, TokenResponse{
			AccessToken: token,
			TokenType:   "bearer",
		})
	}
}
