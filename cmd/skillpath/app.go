package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HerbHall/skillpath/internal/auth"
	"github.com/HerbHall/skillpath/internal/catalog"
	"github.com/HerbHall/skillpath/internal/config"
	"github.com/HerbHall/skillpath/internal/event"
	"github.com/HerbHall/skillpath/internal/metrics"
	"github.com/HerbHall/skillpath/internal/mqttbridge"
	"github.com/HerbHall/skillpath/internal/searchlog"
	"github.com/HerbHall/skillpath/internal/session"
	"github.com/HerbHall/skillpath/internal/skillboost"
	"github.com/HerbHall/skillpath/internal/store"
	"github.com/HerbHall/skillpath/internal/tools"
	pkgcatalog "github.com/HerbHall/skillpath/pkg/catalog"
)

// app holds the components shared by the serve and mcp commands.
type app struct {
	settings   config.Settings
	logger     *zap.Logger
	registry   *prometheus.Registry
	sessions   *session.Manager
	engine     *catalog.Engine
	dispatcher *tools.Dispatcher
	auth       *auth.Authenticator
	searchLog  *searchlog.Repository

	closers []func() error
}

func loadSettings(path string) (config.Settings, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Settings{}, err
	}
	return cfg.Settings()
}

func newLogger(s config.LogSettings) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if s.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if s.Level != "" {
		level, err := zapcore.ParseLevel(s.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	// stdout belongs to the MCP stdio transport.
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func newAuthenticator(s config.Settings, logger *zap.Logger) *auth.Authenticator {
	return auth.New(s.Auth, logger)
}

func newApp(configPath string) (*app, error) {
	settings, err := loadSettings(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(settings.Log)
	if err != nil {
		return nil, err
	}

	a := &app{
		settings: settings,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	a.closers = append(a.closers, func() error {
		_ = logger.Sync()
		return nil
	})
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(a.registry)

	client := skillboost.NewClient(settings.SkillBoost, &http.Client{Timeout: settings.SkillBoost.Timeout}, logger.Named("skillboost"), m)

	var fetcher catalog.Fetcher = client
	if settings.Catalog.File != "" {
		fetcher = pkgcatalog.NewFileSource(settings.Catalog.File)
		logger.Info("serving catalog from file", zap.String("path", settings.Catalog.File))
	}

	cache := catalog.NewCache(fetcher, settings.Catalog.FetchTimeout, logger.Named("catalog"), m)
	a.engine = catalog.NewEngine(cache, settings.Catalog, logger.Named("catalog"))

	a.sessions = session.NewManager(settings.Server.MaxSessions, logger.Named("session"), m)
	a.sessions.OnClose(cache.Forget)

	bus := event.NewBus(logger.Named("event"))
	if settings.Store.Path != "" {
		st, err := store.New(settings.Store.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.closers = append(a.closers, st.Close)

		repo, err := searchlog.NewRepository(context.Background(), st)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.searchLog = repo
		unsubscribe := searchlog.NewRecorder(repo, logger.Named("searchlog")).Subscribe(bus)
		a.closers = append(a.closers, func() error {
			unsubscribe()
			return nil
		})
	}

	if settings.MQTT.Enabled() {
		bridge, disconnect, err := mqttbridge.Connect(settings.MQTT, logger.Named("mqtt"))
		if err != nil {
			a.Close()
			return nil, err
		}
		unsubscribe := bridge.Subscribe(bus)
		a.closers = append(a.closers, func() error {
			unsubscribe()
			disconnect()
			return nil
		})
	}

	a.dispatcher = tools.NewDispatcher(settings.Tools, a.engine, client, bus, logger.Named("tools"), m)
	a.auth = newAuthenticator(settings, logger.Named("auth"))
	if !a.auth.Enabled() {
		logger.Warn("API authentication disabled; set auth.jwt_secret to require tokens")
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown step failed", zap.Error(err))
		}
	}
}
