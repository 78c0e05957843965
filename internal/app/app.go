package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/synapseiq/secadmin/internal/apikeys"
	"github.com/synapseiq/secadmin/internal/audit"
	"github.com/synapseiq/secadmin/internal/config"
	"github.com/synapseiq/secadmin/internal/db"
	internalhttp "github.com/synapseiq/secadmin/internal/http/api/admin"
	"github.com/synapseiq/secadmin/internal/metrics"
	"github.com/synapseiq/secadmin/internal/ratelimit"
	"github.com/synapseiq/secadmin/internal/security"
	"github.com/synapseiq/secadmin/internal/service"
	"github.com/synapseiq/secadmin/internal/session"
	internalsettings "github.com/synapseiq/secadmin/internal/settings"
	"github.com/synapseiq/secadmin/internal/store"
	"gorm.io/gorm"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn.WithContext(ctx))
}

// RunServer boots the security API and serves until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig, portOverride int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	logCfg, err := config.LoadLoggingConfig(configPath)
	if err != nil {
		return err
	}
	configureLogging(logCfg)

	serverCfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		serverCfg.Port = portOverride
	}

	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	log.Infof("database ready (dialect=%s)", db.DialectName(conn))

	bootstrapCfg, err := config.LoadBootstrapConfig(configPath)
	if err != nil {
		return err
	}
	if _, errBootstrap := EnsureBootstrapAdmin(ctx, conn, bootstrapCfg); errBootstrap != nil {
		return errBootstrap
	}

	jwtCfg, err := config.LoadJWTConfig(configPath)
	if err != nil {
		return err
	}
	if jwtCfg.Secret == "" {
		jwtCfg.Secret = generateJWTSecret()
		log.Warn("jwt secret not configured, generated a random one; tokens will not survive a restart")
	}
	securityCfg, err := config.LoadSecurityConfig(configPath)
	if err != nil {
		return err
	}
	warnUnenforcedIPRestriction(ctx, store.New(conn), securityCfg)

	if !logCfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, cleanup, err := NewEngine(conn, jwtCfg, securityCfg)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := net.JoinHostPort(serverCfg.Host, strconv.Itoa(serverCfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting secadmin on %s with config=%s", addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	log.Info("server stopped")
	return nil
}

// NewEngine wires the components on top of an open, migrated database.
// The returned cleanup releases the limiter's Redis client.
func NewEngine(conn *gorm.DB, jwtCfg config.JWTConfig, securityCfg config.SecurityConfig) (*gin.Engine, func(), error) {
	if conn == nil {
		return nil, nil, fmt.Errorf("app: nil db")
	}
	tokens, err := security.NewTokenIssuer(jwtCfg)
	if err != nil {
		return nil, nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	limiter := ratelimit.NewManager(ratelimit.StaticSettings(ratelimit.SettingsFromConfig(securityCfg)), nil, nil).
		WithObserver(m)
	cleanup := func() {
		if errClose := limiter.Close(); errClose != nil {
			log.WithError(errClose).Warn("close rate limiter")
		}
	}

	users := store.New(conn)
	svc, err := service.New(service.Deps{
		Users:           users,
		Keys:            apikeys.NewManager(conn),
		Audit:           audit.NewLogger(conn, m),
		Tokens:          tokens,
		Limiter:         limiter,
		Metrics:         m,
		AllowedNetworks: securityCfg.AllowedNetworks,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	trusted := []string(nil)
	if securityCfg.TrustProxy {
		trusted = []string{"0.0.0.0/0", "::/0"}
	}
	if errProxies := engine.SetTrustedProxies(trusted); errProxies != nil {
		cleanup()
		return nil, nil, fmt.Errorf("app: trusted proxies: %w", errProxies)
	}

	internalhttp.RegisterRoutes(engine, internalhttp.Deps{
		DB:       conn,
		Service:  svc,
		Guard:    session.NewGuard(tokens, users),
		Metrics:  m,
		Registry: registry,
	})
	return engine, cleanup, nil
}

// warnUnenforcedIPRestriction flags an ip-restriction toggle that has no allowed networks to enforce.
func warnUnenforcedIPRestriction(ctx context.Context, users *store.Store, cfg config.SecurityConfig) bool {
	if len(cfg.AllowedNetworks) > 0 {
		return false
	}
	enabled, errSetting := users.SettingEnabled(ctx, internalsettings.IPRestrictionID)
	if errSetting != nil || !enabled {
		return false
	}
	log.Warn("ip-restriction is enabled but security.allowed-networks is empty; logins are not restricted")
	return true
}

// configureLogging applies the logging section to the global logrus logger.
func configureLogging(cfg config.LoggingConfig) {
	if cfg.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		return
	}
	log.SetLevel(log.InfoLevel)
}

// corsMiddleware enables CORS for the dashboard frontend.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
