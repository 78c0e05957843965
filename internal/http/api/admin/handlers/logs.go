package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/synapseiq/secadmin/internal/audit"
	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/service"
)

// SecurityLogHandler lists security events.
type SecurityLogHandler struct {
	svc *service.Service
}

// NewSecurityLogHandler constructs a SecurityLogHandler.
func NewSecurityLogHandler(svc *service.Service) *SecurityLogHandler {
	return &SecurityLogHandler{svc: svc}
}

// List returns the latest events, newest first. Admin sessions and keys with read:logs may call it.
func (h *SecurityLogHandler) List(c *gin.Context) {
	limit := audit.DefaultListLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	var (
		entries []audit.Entry
		errList error
	)
	if key, ok := currentAPIKey(c); ok {
		entries, errList = h.svc.ListLogsWithKey(c.Request.Context(), key, limit)
	} else if actor, ok := currentActor(c); ok {
		entries, errList = h.svc.ListLogs(c.Request.Context(), actor, limit)
	} else {
		errList = errs.ErrUnauthenticated
	}
	if errList != nil {
		WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, entries)
}
