package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/synapseiq/secadmin/internal/apikeys"
	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/service"
)

// APIKeyHandler manages the caller's personal API keys.
type APIKeyHandler struct {
	svc *service.Service
}

// NewAPIKeyHandler constructs an APIKeyHandler.
func NewAPIKeyHandler(svc *service.Service) *APIKeyHandler {
	return &APIKeyHandler{svc: svc}
}

// List returns the caller's keys in masked form.
func (h *APIKeyHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		WriteError(c, errs.ErrUnauthenticated)
		return
	}
	keys, errList := h.svc.ListAPIKeys(c.Request.Context(), actor)
	if errList != nil {
		WriteError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		out = append(out, gin.H{
			"id":          key.ID,
			"name":        key.Name,
			"key":         key.Masked,
			"created":     key.Created,
			"last_used":   key.LastUsed,
			"permissions": key.Permissions,
		})
	}
	c.JSON(http.StatusOK, out)
}

// Create issues a key. The plaintext is only returned here.
func (h *APIKeyHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		WriteError(c, errs.ErrUnauthenticated)
		return
	}
	// body holds the create request payload.
	var body struct {
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
	}
	if errBindJSON := c.ShouldBindJSON(&body); errBindJSON != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	created, errCreate := h.svc.CreateAPIKey(c.Request.Context(), actor, body.Name, body.Permissions)
	writeResult(c, http.StatusCreated, gin.H{
		"id":          created.ID,
		"name":        created.Name,
		"key":         created.Plaintext,
		"created":     created.Created,
		"permissions": created.Permissions,
	}, errCreate)
}

// Revoke deletes one of the caller's keys.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		WriteError(c, errs.ErrUnauthenticated)
		return
	}
	errRevoke := h.svc.RevokeAPIKey(c.Request.Context(), actor, c.Param("id"))
	if errors.Is(errRevoke, errs.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}
	writeResult(c, http.StatusOK, gin.H{"message": "API key deleted successfully"}, errRevoke)
}

// Introspect describes the API key that authenticated the request.
func (h *APIKeyHandler) Introspect(c *gin.Context) {
	key, ok := currentAPIKey(c)
	if !ok {
		WriteError(c, errs.ErrUnauthenticated)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          key.ID,
		"name":        key.Name,
		"permissions": key.Permissions,
		"user_id":     key.UserID,
		"last_used":   key.LastUsed,
	})
}

// Permissions lists the scopes a key may carry.
func (h *APIKeyHandler) Permissions(c *gin.Context) {
	c.JSON(http.StatusOK, apikeys.Definitions())
}
