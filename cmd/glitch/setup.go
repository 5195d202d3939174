package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/glitch/internal/auth"
	"github.com/srg/glitch/internal/config"
	"github.com/srg/glitch/internal/devicefactory"
	"github.com/srg/glitch/scanner"
)

// environment is what every command needs before doing real work.
type environment struct {
	cmd    *cobra.Command
	cfg    *config.Config
	logger *logrus.Logger
	close  func()
}

// loadEnvironment reads the config file named by --config (or the default
// location), applies --database-url and builds the logger.
func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if url, _ := cmd.Flags().GetString("database-url"); url != "" {
		cfg.Database.URL = url
	}

	logger, closer, err := configureLogger(cmd, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	logger.WithField("config", path).Debug("Configuration loaded")

	return &environment{cmd: cmd, cfg: cfg, logger: logger, close: closer}, nil
}

// quiet moves logging off the terminal for full-screen output.
func (e *environment) quiet() {
	quietOutput(e.cmd, e.cfg.LogFile, e.logger)
}

func (e *environment) newSession(allowDuplicates bool) (*scanner.Session, devicefactory.PowerMonitor, error) {
	session, monitor, err := devicefactory.NewSession(devicefactory.SessionConfig{
		AllowDuplicates:   allowDuplicates,
		PowerPollInterval: e.cfg.Scan.PowerPollInterval,
		Permissions:       e.cfg.PermissionMode(),
	}, e.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create BLE scanner: %w", err)
	}
	return session, monitor, nil
}

// openStore connects to the account database and makes sure the schema
// exists. Close the store to release the connection pool.
func (e *environment) openStore(ctx context.Context) (*auth.PGStore, error) {
	if e.cfg.Database.URL == "" {
		return nil, ErrNoDatabase
	}

	store, err := auth.Connect(ctx, e.cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// openAuth is openStore wrapped in a credential service. The returned closer
// releases the connection pool.
func (e *environment) openAuth(ctx context.Context) (*auth.Service, func(), error) {
	store, err := e.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewService(store, auth.WithLogger(e.logger)), store.Close, nil
}
