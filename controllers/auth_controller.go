package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quantpulse/apperrors"
	"quantpulse/middleware"
	"quantpulse/services/auth"
)

// AuthController handles registration, login, and user administration
type AuthController struct {
	service *auth.Service
	limiter *middleware.RateLimiter
}

// NewAuthController creates a new auth controller
func NewAuthController(service *auth.Service, limiter *middleware.RateLimiter) *AuthController {
	return &AuthController{service: service, limiter: limiter}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register creates a new user account pending admin approval
// POST /api/v1/auth/register
func (ctrl *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	user, err := ctrl.service.Register(req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Your account is pending admin approval.",
		"user":    user,
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates a user and issues access and refresh tokens
// POST /api/v1/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	user, err := ctrl.service.Login(req.Username, req.Password)
	if err != nil {
		if ctrl.limiter != nil {
			ctrl.limiter.RecordFailure(c.ClientIP())
		}
		respondError(c, err)
		return
	}
	if ctrl.limiter != nil {
		ctrl.limiter.RecordSuccess(c.ClientIP())
	}

	accessToken, err := middleware.GenerateAccessToken(user)
	if err != nil {
		respondError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	refreshToken, err := middleware.GenerateRefreshToken(user)
	if err != nil {
		respondError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "bearer",
		"user":          user,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh exchanges a refresh token for a new access token
// POST /api/v1/auth/refresh
func (ctrl *AuthController) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	claims, err := middleware.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		respondError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired refresh token"))
		return
	}

	user, err := ctrl.service.GetUser(claims.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !user.CanLogin() {
		respondError(c, apperrors.ErrForbidden)
		return
	}

	accessToken, err := middleware.GenerateAccessToken(user)
	if err != nil {
		respondError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "bearer",
	})
}

// Me returns the authenticated user's profile
// GET /api/v1/auth/me
func (ctrl *AuthController) Me(c *gin.Context) {
	user, err := middleware.UserFromContext(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,max=100"`
}

// UpdateMe updates the authenticated user's profile
// PUT /api/v1/auth/me
func (ctrl *AuthController) UpdateMe(c *gin.Context) {
	user, err := middleware.UserFromContext(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	updated, err := ctrl.service.UpdateProfile(user.ID, req.FirstName, req.LastName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": updated})
}

// ListUsers returns all users
// GET /api/v1/auth/users (admin)
func (ctrl *AuthController) ListUsers(c *gin.Context) {
	users, err := ctrl.service.ListUsers()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// ListPendingUsers returns users awaiting approval
// GET /api/v1/auth/users/pending (admin)
func (ctrl *AuthController) ListPendingUsers(c *gin.Context) {
	users, err := ctrl.service.ListPendingUsers()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// ApproveUser approves a pending registration
// POST /api/v1/auth/users/:id/approve (admin)
func (ctrl *AuthController) ApproveUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	user, err := ctrl.service.Approve(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User approved", "user": user})
}

// RejectUser rejects a pending registration
// POST /api/v1/auth/users/:id/reject (admin)
func (ctrl *AuthController) RejectUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	user, err := ctrl.service.Reject(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User rejected", "user": user})
}

// DeactivateUser disables a user account
// DELETE /api/v1/auth/users/:id (admin)
func (ctrl *AuthController) DeactivateUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	admin, err := middleware.UserFromContext(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := ctrl.service.Deactivate(id, admin.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deactivated"})
}

func parseUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondInvalid(c, err)
		return 0, false
	}
	return uint(id), true
}
