package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/synapseiq/secadmin/internal/apikeys"
	"github.com/synapseiq/secadmin/internal/models"
	"github.com/synapseiq/secadmin/internal/service"
)

// Context keys set by the admin middleware.
const (
	ContextUserKey   = "user"
	ContextAPIKeyKey = "apiKey"
)

// currentActor returns the session user stored by the session middleware.
func currentActor(c *gin.Context) (service.Actor, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return service.Actor{}, false
	}
	user, ok := value.(models.User)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{User: user, IP: c.ClientIP()}, true
}

func currentAPIKey(c *gin.Context) (apikeys.Key, bool) {
	value, ok := c.Get(ContextAPIKeyKey)
	if !ok {
		return apikeys.Key{}, false
	}
	key, ok := value.(apikeys.Key)
	return key, ok
}
