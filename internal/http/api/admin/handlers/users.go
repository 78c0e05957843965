package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/models"
	"github.com/synapseiq/secadmin/internal/service"
	"github.com/synapseiq/secadmin/internal/store"
)

// UserHandler manages operator accounts.
type UserHandler struct {
	svc *service.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(svc *service.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// createUserRequest captures the payload for creating a user.
type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// Create adds an operator account.
func (h *UserHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		WriteError(c, errs.ErrUnauthenticated)
		return
	}
	var body createUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	user, errCreate := h.svc.CreateUser(c.Request.Context(), actor, store.NewUser{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		IsAdmin:  body.IsAdmin,
	})
	writeResult(c, http.StatusCreated, formatUser(user), errCreate)
}

// updateUserRequest captures the optional fields for updating a user.
type updateUserRequest struct {
	Email     *string `json:"email"`
	IsActive  *bool   `json:"is_active"`
	IsAdmin   *bool   `json:"is_admin"`
	ResetTOTP *bool   `json:"reset_totp"`
}

// Update applies the provided fields to a user.
func (h *UserHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		WriteError(c, errs.ErrUnauthenticated)
		return
	}
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	user, errUpdate := h.svc.UpdateUser(c.Request.Context(), actor, id, store.UserUpdate{
		Email:     body.Email,
		IsActive:  body.IsActive,
		IsAdmin:   body.IsAdmin,
		ResetTOTP: body.ResetTOTP,
	})
	writeResult(c, http.StatusOK, formatUser(user), errUpdate)
}

func formatUser(user models.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"email":        user.Email,
		"is_active":    user.IsActive,
		"is_admin":     user.IsAdmin,
		"totp_enabled": user.HasTOTP(),
		"created_at":   user.CreatedAt,
		"last_login":   user.LastLogin,
	}
}
