package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/common"
	"github.com/ternarybob/ecocalc/internal/handlers"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
	"github.com/ternarybob/ecocalc/internal/services/calculations"
	"github.com/ternarybob/ecocalc/internal/services/eco"
	"github.com/ternarybob/ecocalc/internal/services/matrix"
	"github.com/ternarybob/ecocalc/internal/services/report"
	"github.com/ternarybob/ecocalc/internal/services/settings"
	"github.com/ternarybob/ecocalc/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Services
	Engine             *eco.Engine
	SettingsService    *settings.Service
	SettingsRefresher  *settings.Refresher
	CalculationService *calculations.Service
	ReportService      *report.Service
	MatrixImporter     *matrix.Importer

	// HTTP handlers
	APIHandler         *handlers.APIHandler
	CalculationHandler *handlers.CalculationHandler
	MetadataHandler    *handlers.MetadataHandler
	SettingsHandler    *handlers.SettingsHandler
}

// New initializes storage, services and handlers. When the config asks for it
// the rate matrix is imported from the seed directory before services start.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.MatrixImporter = matrix.NewImporter(app.StorageManager.RateMatrix(), app.Logger)
	if cfg.Matrix.ImportOnStartup {
		if _, err := app.ImportMatrix(context.Background(), cfg.Matrix.SeedDir); err != nil {
			app.Logger.Warn().Err(err).Str("dir", cfg.Matrix.SeedDir).Msg("Startup matrix import failed, keeping existing tables")
		}
	}
	app.warnIfMatrixEmpty()

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("matrix_backend", cfg.Matrix.Backend).
		Str("refresh_schedule", cfg.Settings.RefreshSchedule).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger or memory + SQLite)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager
	return nil
}

func (a *App) initServices() error {
	ratePerUnit, innovationMultiplier := a.Config.DefaultRates()

	a.SettingsService = settings.NewService(
		a.StorageManager.KeyValueStorage(),
		map[string]string{
			models.SettingRatePerUnit:          ratePerUnit.String(),
			models.SettingInnovationMultiplier: innovationMultiplier.String(),
		},
		a.Logger,
	)

	a.SettingsRefresher = settings.NewRefresher(a.SettingsService, a.Logger)
	if err := a.SettingsRefresher.Start(a.Config.Settings.RefreshSchedule); err != nil {
		return fmt.Errorf("failed to start settings refresher: %w", err)
	}

	a.Engine = eco.NewEngine(
		a.StorageManager.RateMatrix(),
		a.SettingsService,
		eco.Rates{RatePerUnit: ratePerUnit, InnovationMultiplier: innovationMultiplier},
		a.Logger,
	)

	a.CalculationService = calculations.NewService(a.Engine, a.StorageManager.CalculationStorage(), a.Logger)
	a.ReportService = report.NewService(a.Logger)
	return nil
}

func (a *App) initHandlers() {
	checks := map[string]handlers.HealthCheck{
		"matrix": func(ctx context.Context) error {
			_, err := a.StorageManager.RateMatrix().Stats(ctx)
			return err
		},
	}
	if pinger, ok := a.StorageManager.CalculationStorage().(interface {
		Ping(ctx context.Context) error
	}); ok {
		checks["calculations"] = pinger.Ping
	}

	a.APIHandler = handlers.NewAPIHandler(checks, a.Logger)
	a.CalculationHandler = handlers.NewCalculationHandler(a.CalculationService, a.ReportService, a.Logger)
	a.MetadataHandler = handlers.NewMetadataHandler(a.Engine, a.StorageManager.RateMatrix(), a.Logger)
	a.SettingsHandler = handlers.NewSettingsHandler(a.SettingsService, a.Logger)
}

// ImportMatrix replaces the rate matrix tables from dir
func (a *App) ImportMatrix(ctx context.Context, dir string) (*matrix.ImportSummary, error) {
	return a.MatrixImporter.ImportDir(ctx, dir)
}

func (a *App) warnIfMatrixEmpty() {
	stats, err := a.StorageManager.RateMatrix().Stats(context.Background())
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to read matrix stats")
		return
	}
	if stats.Total == 0 {
		a.Logger.Warn().
			Str("seed_dir", a.Config.Matrix.SeedDir).
			Msg("Rate matrix is empty, every lookup will report no match until an import runs")
		return
	}
	a.Logger.Info().
		Int("eco4_partial", stats.Tables[models.TableECO4Partial]).
		Int("gbis_partial", stats.Tables[models.TableGBISPartial]).
		Int("full_project", stats.Tables[models.TableFullProject]).
		Msg("Rate matrix loaded")
}

// Close stops background work and closes storage
func (a *App) Close() error {
	if a.SettingsRefresher != nil {
		a.SettingsRefresher.Stop()
		a.Logger.Debug().Msg("Settings refresher stopped")
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}
	return nil
}
