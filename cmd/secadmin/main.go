package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/synapseiq/secadmin/internal/app"
	"github.com/synapseiq/secadmin/internal/config"

	log "github.com/sirupsen/logrus"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if errRun := run(ctx, os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		stop()
		os.Exit(1)
	}
}

// run parses flags, loads config, and runs the requested command.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("secadmin", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 0, "listen port, overrides the config file")
	migrateOnly := fs.Bool("migrate", false, "run database migrations and exit")
	initConfig := fs.Bool("init-config", false, "write a starter config file with a random JWT secret and exit")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}

	appCfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if strings.TrimSpace(*cfgPath) != "" {
		appCfg.ConfigPath = config.ResolveConfigPath(*cfgPath)
	}
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)

	switch {
	case *initConfig:
		errWrite := app.WriteConfigFile(configPath, os.Getenv(config.EnvDBConnection), *port)
		if errors.Is(errWrite, app.ErrConfigExists) {
			log.Infof("config already present at %s", configPath)
			return nil
		}
		if errWrite != nil {
			return errWrite
		}
		log.Infof("wrote config to %s", configPath)
		return nil
	case *migrateOnly:
		if errMigrate := app.Migrate(ctx, appCfg); errMigrate != nil {
			return errMigrate
		}
		log.Info("migrations applied")
		return nil
	}

	if !app.ConfigExists(configPath) {
		log.Infof("config not found at %s, using defaults and environment", configPath)
	}
	return app.RunServer(ctx, appCfg, *port)
}

// validatePort accepts 0 (use config) or a valid TCP port.
func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
