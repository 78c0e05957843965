package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/models"
	"github.com/synapseiq/secadmin/internal/service"
	"github.com/synapseiq/secadmin/internal/store"
)

// SecuritySettingHandler lists and toggles the security settings catalog.
type SecuritySettingHandler struct {
	svc *service.Service
}

// NewSecuritySettingHandler constructs a settings handler.
func NewSecuritySettingHandler(svc *service.Service) *SecuritySettingHandler {
	return &SecuritySettingHandler{svc: svc}
}

// List returns all settings ordered by id.
func (h *SecuritySettingHandler) List(c *gin.Context) {
	rows, errList := h.svc.ListSettings(c.Request.Context())
	if errList != nil {
		WriteError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatSetting(row))
	}
	c.JSON(http.StatusOK, out)
}

// updateSecuritySettingRequest captures the toggle payload.
type updateSecuritySettingRequest struct {
	Enabled *bool `json:"enabled"` // Required new state.
}

// Update toggles a setting by id.
func (h *SecuritySettingHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		WriteError(c, errs.ErrUnauthenticated)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	var body updateSecuritySettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}

	setting, errUpdate := h.svc.UpdateSetting(c.Request.Context(), actor, id, store.SettingUpdate{Enabled: body.Enabled})
	writeResult(c, http.StatusOK, formatSetting(setting), errUpdate)
}

func formatSetting(row models.SecuritySetting) gin.H {
	return gin.H{
		"id":           row.ID,
		"name":         row.Name,
		"description":  row.Description,
		"enabled":      row.Enabled,
		"last_updated": row.LastUpdated,
	}
}
