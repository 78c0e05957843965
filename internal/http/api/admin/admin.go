// Package admin registers the security API routes and their authentication middleware.
package admin

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/synapseiq/secadmin/internal/errs"
	handlers "github.com/synapseiq/secadmin/internal/http/api/admin/handlers"
	"github.com/synapseiq/secadmin/internal/metrics"
	"github.com/synapseiq/secadmin/internal/models"
	"github.com/synapseiq/secadmin/internal/security"
	"github.com/synapseiq/secadmin/internal/service"
	"github.com/synapseiq/secadmin/internal/session"
	"gorm.io/gorm"
)

// apiKeyHeader carries a personal API key as an alternative to the Authorization header.
const apiKeyHeader = "X-API-Key"

// Deps lists what the routes need. Metrics and Registry may be nil.
type Deps struct {
	DB       *gorm.DB
	Service  *service.Service
	Guard    *session.Guard
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// RegisterRoutes registers the auth, security and operational routes.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil || deps.Service == nil || deps.Guard == nil {
		return
	}
	r.Use(deps.Metrics.GinMiddleware())

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)
	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Registry)))
	}

	authHandler := handlers.NewAuthHandler(deps.Service)
	r.POST("/auth/token", authHandler.Token)

	authed := r.Group("")
	authed.Use(sessionMiddleware(deps.Guard))
	authed.POST("/auth/change-password", authHandler.ChangePassword)
	authed.POST("/auth/totp/setup", authHandler.SetupTOTP)
	authed.POST("/auth/totp/confirm", authHandler.ConfirmTOTP)
	authed.POST("/auth/totp/disable", authHandler.DisableTOTP)

	settingHandler := handlers.NewSecuritySettingHandler(deps.Service)
	authed.GET("/security/settings", settingHandler.List)
	authed.PUT("/security/settings/:id", settingHandler.Update)

	apiKeyHandler := handlers.NewAPIKeyHandler(deps.Service)
	authed.GET("/security/api-keys", apiKeyHandler.List)
	authed.POST("/security/api-keys", apiKeyHandler.Create)
	authed.GET("/security/api-keys/permissions", apiKeyHandler.Permissions)
	authed.DELETE("/security/api-keys/:id", apiKeyHandler.Revoke)
	r.GET("/security/api-keys/introspect", apiKeyMiddleware(deps.Service), apiKeyHandler.Introspect)

	logHandler := handlers.NewSecurityLogHandler(deps.Service)
	r.GET("/security/logs", credentialMiddleware(deps.Guard, deps.Service), logHandler.List)

	admins := authed.Group("")
	admins.Use(requireAdmin())

	userHandler := handlers.NewUserHandler(deps.Service)
	admins.POST("/security/users", userHandler.Create)
	admins.PATCH("/security/users/:id", userHandler.Update)
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(authHeader) < len("Bearer ") || !strings.EqualFold(authHeader[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[len("Bearer "):])
}

// presentedAPIKey returns the API key sent in X-API-Key or as a bearer token.
func presentedAPIKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader(apiKeyHeader)); key != "" {
		return key
	}
	if token := bearerToken(c); security.LooksLikeAPIKey(token) {
		return token
	}
	return ""
}

// sessionMiddleware resolves the bearer token to an active user and stores it in the context.
func sessionMiddleware(guard *session.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			handlers.WriteError(c, errs.ErrUnauthenticated)
			return
		}
		user, errResolve := guard.Resolve(c.Request.Context(), token)
		if errResolve != nil {
			handlers.WriteError(c, errResolve)
			return
		}
		c.Set(handlers.ContextUserKey, user)
		c.Next()
	}
}

// requireAdmin rejects session users without the admin flag. It must run after sessionMiddleware.
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdmin(c) {
			handlers.WriteError(c, errs.ErrForbidden)
			return
		}
		c.Next()
	}
}

func isAdmin(c *gin.Context) bool {
	value, ok := c.Get(handlers.ContextUserKey)
	if !ok {
		return false
	}
	user, ok := value.(models.User)
	return ok && user.IsAdmin
}

// apiKeyMiddleware authenticates the request with a personal API key.
func apiKeyMiddleware(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := presentedAPIKey(c)
		if raw == "" {
			handlers.WriteError(c, errs.ErrUnauthenticated)
			return
		}
		key, errAuth := svc.AuthenticateAPIKey(c.Request.Context(), raw)
		if errAuth != nil {
			handlers.WriteError(c, errAuth)
			return
		}
		c.Set(handlers.ContextAPIKeyKey, key)
		c.Next()
	}
}

// credentialMiddleware accepts either an API key or a session token.
func credentialMiddleware(guard *session.Guard, svc *service.Service) gin.HandlerFunc {
	viaKey := apiKeyMiddleware(svc)
	viaSession := sessionMiddleware(guard)
	return func(c *gin.Context) {
		if presentedAPIKey(c) != "" {
			viaKey(c)
			return
		}
		viaSession(c)
	}
}
