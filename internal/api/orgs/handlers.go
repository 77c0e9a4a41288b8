// Package orgs implements the organization management and org-admin
// authentication endpoints.
package orgs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/org-manager/org-manager/internal/services"
)

// Handlers holds the dependencies for the organization endpoints.
type Handlers struct {
	orgService  *services.OrganizationService
	authService *services.AuthService
}

// NewHandlers creates a new Handlers instance
func NewHandlers(orgService *services.OrganizationService, authService *services.AuthService) *Handlers {
	return &Handlers{orgService: orgService, authService: authService}
}

// AdminLoginRequest is the JSON body of an org-admin login attempt.
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the OAuth2-style bearer token envelope returned on login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// CreateOrganizationRequest is the JSON body for provisioning a new
// organization. The admin password arrives in plaintext over TLS and is
// bcrypt-hashed before anything is stored.
type CreateOrganizationRequest struct {
	OrganizationName string `json:"organization_name" binding:"required"`
	AdminEmail       string `json:"admin_email" binding:"required,email"`
	AdminPassword    string `json:"admin_password" binding:"required,min=8"`
}

// OrganizationResponse is the public view of an organization. The admin
// password hash is never serialized.
type OrganizationResponse struct {
	OrganizationName string `json:"organization_name"`
	DBURL            string `json:"db_url"`
	AdminEmail       string `json:"admin_email"`
}

// @Summary      Org-admin login
// @Description  Authenticate an organization admin by email and password; returns a bearer token scoped to the organization.
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body  AdminLoginRequest  true  "Credentials"
// @Success      200  {object}  TokenResponse
// @Failure      400  {object}  map[string]interface{}  "Malformed request body"
// @Failure      401  {object}  map[string]interface{}  "Incorrect email or password"
// @Router       /api/v1/admin/login [post]
// AdminLoginHandler authenticates an organization admin and issues a bearer token.
// POST /api/v1/admin/login
func (h *Handlers) AdminLoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdminLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}

		token, err := h.authService.AuthenticateOrgAdmin(c.Request.Context(), req.Email, req.Password)
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

// @Summary      Create organization
// @Description  Provision a dedicated tenant database for the organization and register its admin account. Super-admin only.
// @Tags         Organizations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        request  body  CreateOrganizationRequest  true  "Organization definition"
// @Success      200  {object}  OrganizationResponse
// @Failure      400  {object}  map[string]interface{}  "Malformed request body or organization already exists"
// @Failure      401  {object}  map[string]interface{}  "Missing or invalid token"
// @Failure      403  {object}  map[string]interface{}  "Caller is not a super admin"
// @Failure      502  {object}  map[string]interface{}  "Tenant database provisioning failed"
// @Router       /api/v1/org/create [post]
// CreateOrganizationHandler provisions a tenant database and registers the organization.
// POST /api/v1/org/create
func (h *Handlers) CreateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrganizationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}

		org, err := h.orgService.CreateOrganization(c.Request.Context(), req.OrganizationName, req.AdminEmail, req.AdminPassword)
		if err != nil {
			if errors.Is(err, services.ErrDuplicateOrganization) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Organization already exists",
				})
				return
			}
			// Provisioning failures carry actionable detail for the super
			// admin (the caller is already fully privileged); generated
			// credentials never appear in error chains.
			c.JSON(http.StatusBadGateway, gin.H{
				"error":  "Failed to create organization",
				"detail": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, OrganizationResponse{
			OrganizationName: org.Name,
			DBURL:            org.DBURL,
			AdminEmail:       org.AdminEmail,
		})
	}
}

// @Summary      Get organization
// @Description  Look an organization up by name (case-insensitive) and return its connection descriptor.
// @Tags         Organizations
// @Produce      json
// @Param        organization_name  query  string  true  "Organization name"
// @Success      200  {object}  OrganizationResponse
// @Failure      400  {object}  map[string]interface{}  "Missing organization_name parameter"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Router       /api/v1/org/get [get]
// GetOrganizationHandler looks up an organization by name.
// GET /api/v1/org/get?organization_name=Acme
func (h *Handlers) GetOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("organization_name")
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "organization_name query parameter is required",
			})
			return
		}

		org, err := h.orgService.GetOrganization(c.Request.Context(), name)
		if err != nil {
			if errors.Is(err, services.ErrOrgNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Organization not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to look up organization",
			})
			return
		}

		c.JSON(http.StatusOK, OrganizationResponse{
			OrganizationName: org.Name,
			DBURL:            org.DBURL,
			AdminEmail:       org.AdminEmail,
		})
	}
}
