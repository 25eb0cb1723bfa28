package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/voiceclone/internal/api"
	"github.com/charlesng35/voiceclone/internal/app"
	"github.com/charlesng35/voiceclone/internal/app/maintenance"
	"github.com/charlesng35/voiceclone/internal/database"
	"github.com/charlesng35/voiceclone/internal/middleware"
	"github.com/charlesng35/voiceclone/internal/provider/fishaudio"
	"github.com/charlesng35/voiceclone/internal/services"
)

// runtimeStack bundles the long-lived pieces behind the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Limiter *middleware.Limiter
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, the provider client, services,
// background maintenance, and the router, in dependency order.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	success := false
	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	db, err := database.Open(databaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	stack.DB = db

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	provider, err := fishaudio.New(fishaudio.Config{
		APIKey:  cfg.Provider.APIKey,
		BaseURL: cfg.Provider.BaseURL,
		WSURL:   cfg.Provider.WSURL,
		Backend: cfg.Provider.Backend,
		Timeout: cfg.Provider.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise provider client: %w", err)
	}

	store, err := services.NewModelService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise model service: %w", err)
	}

	voices, err := services.NewVoiceService(provider, store, cfg.Audio.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("initialise voice service: %w", err)
	}

	stack.Limiter = middleware.NewLimiter()

	stack.Cleaner = maintenance.NewCleaner(
		stack.Limiter,
		cfg.Audio.OutputDir,
		cfg.Audio.Retention,
		maintenance.WithSchedule(cfg.Maintenance.SweepSchedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	router, err := api.NewRouter(api.Deps{
		DB:       db,
		Config:   cfg,
		Limiter:  stack.Limiter,
		Store:    store,
		Voices:   voices,
		Streamer: provider,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}
	stack.Router = router

	success = true
	return stack, nil
}

// Shutdown stops background work and closes the database. Safe to call on a
// partially initialised stack.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if err := s.Cleaner.RunOnce(stopCtx); err != nil && log != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// databaseConfig flattens the application config into connection options.
func databaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	}

	var auth app.DBAuthConfig
	switch cfg.Database.Driver {
	case "postgres", "postgresql":
		auth = cfg.Database.Postgres
	case "mysql":
		auth = cfg.Database.MySQL
	default:
		return dbCfg
	}

	dbCfg.Host = auth.Host
	dbCfg.Port = auth.Port
	dbCfg.User = auth.Username
	dbCfg.Password = auth.Password
	dbCfg.Name = auth.Database
	return dbCfg
}
