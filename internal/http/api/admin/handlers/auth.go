package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/service"
)

// AuthHandler serves token issuance, password changes and authenticator enrolment.
type AuthHandler struct {
	svc *service.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *service.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Token exchanges form credentials for a bearer token.
func (h *AuthHandler) Token(c *gin.Context) {
	// form mirrors the OAuth2 password grant fields.
	var form struct {
		Username string `form:"username"`
		Password string `form:"password"`
		OTP      string `form:"otp"`
	}
	if errBind := c.ShouldBind(&form); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if form.Username == "" || form.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	issued, errLogin := h.svc.Login(c.Request.Context(), service.LoginRequest{
		Username: form.Username,
		Password: form.Password,
		OTP:      form.OTP,
		ClientIP: c.ClientIP(),
	})
	if errLogin != nil && !errs.IsDegraded(errLogin) {
		switch {
		case errors.Is(errLogin, service.ErrInvalidOTP):
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing one-time code"})
		case errors.Is(errLogin, errs.ErrUnauthenticated):
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect username or password"})
		case errors.Is(errLogin, errs.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "Login not permitted for this account or address"})
		default:
			WriteError(c, errLogin)
		}
		return
	}
	writeResult(c, http.StatusOK, gin.H{
		"access_token": issued.AccessToken,
		"token_type":   issued.TokenType,
		"expires_in":   issued.ExpiresIn,
	}, errLogin)
}

// ChangePassword replaces the caller's password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		WriteError(c, errs.ErrUnauthenticated)
		return
	}
	var body struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	errChange := h.svc.ChangePassword(c.Request.Context(), actor, body.CurrentPassword, body.NewPassword)
	if errors.Is(errChange, errs.ErrInvalidCredential) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Current password is incorrect"})
		return
	}
	writeResult(c, http.StatusOK, gin.H{"message": "Password changed successfully"}, errChange)
}

// totpCodeRequest carries a one-time code from the caller's authenticator.
type totpCodeRequest struct {
	Code string `json:"code"`
}

// SetupTOTP starts authenticator enrolment for the caller.
// Callers with an enrolled authenticator must send its current code.
func (h *AuthHandler) SetupTOTP(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		WriteError(c, errs.ErrUnauthenticated)
		return
	}
	var body totpCodeRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	enrollment, errBegin := h.svc.BeginTOTP(c.Request.Context(), actor, body.Code)
	if errBegin != nil {
		WriteError(c, errBegin)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"secret":      enrollment.Secret,
		"otpauth_url": enrollment.URL,
	})
}

// ConfirmTOTP activates the pending authenticator when the submitted code matches.
func (h *AuthHandler) ConfirmTOTP(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		WriteError(c, errs.ErrUnauthenticated)
		return
	}
	var body totpCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	errConfirm := h.svc.ConfirmTOTP(c.Request.Context(), actor, body.Code)
	writeResult(c, http.StatusOK, gin.H{
		"message": fmt.Sprintf("Two-factor authenticator enabled for %s", actor.User.Username),
	}, errConfirm)
}

// DisableTOTP removes the caller's authenticator when the submitted code matches.
func (h *AuthHandler) DisableTOTP(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		WriteError(c, errs.ErrUnauthenticated)
		return
	}
	var body totpCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	errDisable := h.svc.DisableTOTP(c.Request.Context(), actor, body.Code)
	writeResult(c, http.StatusOK, gin.H{"message": "Two-factor authenticator disabled"}, errDisable)
}
