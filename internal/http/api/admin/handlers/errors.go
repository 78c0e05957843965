package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/synapseiq/secadmin/internal/errs"
)

// auditWarning is returned to clients when the operation succeeded but its security log entry is missing.
const auditWarning = "security log entry was not recorded"

// WriteError maps a domain error to its HTTP status and writes the error body.
// Server faults are logged and answered with a generic message.
func WriteError(c *gin.Context, err error) {
	status, message := describeError(err)
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func describeError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal server error"
	case errors.Is(err, errs.ErrUnauthenticated):
		return http.StatusUnauthorized, "Could not validate credentials"
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, "Not enough permissions"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, detail(err, errs.ErrConflict)
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, detail(err, errs.ErrValidation)
	case errors.Is(err, errs.ErrInvalidCredential):
		return http.StatusBadRequest, detail(err, errs.ErrInvalidCredential)
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, detail(err, errs.ErrRateLimited)
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// detail strips the sentinel suffix so clients see the contextual message only.
func detail(err, kind error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+kind.Error())
	if msg == "" {
		return kind.Error()
	}
	return msg
}

// writeResult writes body with status. A degraded audit error still counts as success.
func writeResult(c *gin.Context, status int, body gin.H, err error) {
	if err != nil {
		if !errs.IsDegraded(err) {
			WriteError(c, err)
			return
		}
		log.WithError(err).WithField("path", c.FullPath()).Error("security log write failed")
		c.Header("Warning", `199 - "`+auditWarning+`"`)
		body["warning"] = auditWarning
	}
	c.JSON(status, body)
}
