package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/config"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/content"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/jobs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/offline"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/persistence"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/service"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/translator"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	v          *viper.Viper
}

func newApp() *app {
	return &app{v: viper.New()}
}

// loadConfig reads .env files, the optional --config file and the runtime
// settings file, in increasing order of precedence over the environment.
func (a *app) loadConfig() (*config.Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	if a.configPath != "" {
		a.v.SetConfigFile(a.configPath)
		if err := a.v.ReadInConfig(); err != nil {
			return nil, errs.Wrap(err, errs.ErrConfig, "read config file").WithContext("path", a.configPath)
		}
	}

	opts := []config.Option{config.WithViper(a.v)}
	settingsPath := config.RuntimeSettingsFilePath()
	settings, err := config.LoadRuntimeSettingsFile(settingsPath)
	switch {
	case err == nil:
		opts = append(opts, config.WithRuntimeSettings(settings))
	case errors.Is(err, fs.ErrNotExist):
	default:
		log.Warn("Ignoring runtime settings file %s: %v", settingsPath, err)
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return nil, err
	}
	log.SetLevel(log.ParseLevel(cfg.System.LogLevel))
	return cfg, nil
}

func openLibrary(ctx context.Context, cfg *config.Config) (*offline.Store, error) {
	var opts []offline.Option
	if cfg.Offline.QuotaBytes > 0 {
		opts = append(opts, offline.WithQuota(cfg.Offline.QuotaBytes))
	}
	library := offline.NewStore(cfg.Offline.DBPath, opts...)
	if err := library.Init(ctx); err != nil {
		return nil, err
	}
	return library, nil
}

// openContentStore returns the configured document store and a func that
// releases it.
func openContentStore(ctx context.Context, cfg *config.Config) (content.Store, func(), error) {
	switch cfg.Content.Backend {
	case config.BackendPostgres:
		pg, err := content.OpenPGStore(ctx, cfg.Content.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return content.NewFileStore(cfg.Content.CatalogPath), func() {}, nil
	}
}

// syncComponents is everything a sync run needs, opened from one config.
type syncComponents struct {
	service *service.SyncService
	queue   *jobs.Queue
	state   *persistence.SQLiteStore
	cron    *cron.Cron
	close   func()
}

func buildSync(ctx context.Context, cfg *config.Config) (*syncComponents, error) {
	httpClient := &http.Client{Timeout: cfg.Translate.CallTimeout + 5*time.Second}
	factory := func(next *config.Config) (*translator.Stack, error) {
		return translator.FromConfig(ctx, next, httpClient)
	}
	stack, err := factory(cfg)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openContentStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	state, err := persistence.NewSQLiteStore(cfg.Sync.StatePath)
	if err != nil {
		closeStore()
		return nil, errs.Wrap(err, errs.ErrStoreUnavailable, "open sync state").WithContext("path", cfg.Sync.StatePath)
	}

	queue := jobs.NewQueue(1, state)
	engine := cron.New()
	svc := service.NewSyncService(*cfg, store, stack, queue, engine,
		service.WithLedger(state),
		service.WithReportStore(state),
		service.WithStackFactory(factory),
	)
	return &syncComponents{
		service: svc,
		queue:   queue,
		state:   state,
		cron:    engine,
		close: func() {
			_ = state.Close()
			closeStore()
		},
	}, nil
}
