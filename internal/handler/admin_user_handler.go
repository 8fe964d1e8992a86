package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nomadsim/esim_api/internal/models"
	"github.com/nomadsim/esim_api/internal/service"
	"github.com/nomadsim/esim_api/internal/utils"
)

// AdminUserHandler handles back-office team management.
type AdminUserHandler struct {
	auth *service.AdminAuthService
}

// NewAdminUserHandler constructs an AdminUserHandler.
func NewAdminUserHandler(auth *service.AdminAuthService) *AdminUserHandler {
	return &AdminUserHandler{auth: auth}
}

// GetUsers lists all back-office users.
func (h *AdminUserHandler) GetUsers(c *gin.Context) {
	users, err := h.auth.ListAdmins()
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to get users")
		return
	}

	utils.Success(c, 200, "Users retrieved successfully", gin.H{
		"users": users,
	})
}

// CreateUser adds a team member.
func (h *AdminUserHandler) CreateUser(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		Name     string `json:"name" binding:"required"`
		Role     string `json:"role" binding:"required,oneof=admin operator viewer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	user, err := h.auth.CreateAdmin(req.Email, req.Password, req.Name, models.AdminRole(req.Role))
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to create user")
		return
	}

	utils.Success(c, 201, "User created", gin.H{
		"user": user,
	})
}

// UpdateUser edits a team member's profile.
func (h *AdminUserHandler) UpdateUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid user id")
		return
	}

	user, err := h.auth.GetAdmin(id)
	if err != nil {
		utils.Error(c, 404, "USER_NOT_FOUND", "User not found")
		return
	}

	var req struct {
		Name     *string `json:"name"`
		Role     *string `json:"role" binding:"omitempty,oneof=admin operator viewer"`
		IsActive *bool   `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Role != nil {
		user.Role = models.AdminRole(*req.Role)
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := h.auth.UpdateAdmin(user); err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to update user")
		return
	}

	utils.Success(c, 200, "User updated", gin.H{
		"user": user,
	})
}

// ChangePassword replaces a team member's password.
func (h *AdminUserHandler) ChangePassword(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid user id")
		return
	}

	var req struct {
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Password must be at least 8 characters")
		return
	}

	if err := h.auth.ChangePassword(id, req.Password); err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to change password")
		return
	}

	utils.Success(c, 200, "Password changed", nil)
}
