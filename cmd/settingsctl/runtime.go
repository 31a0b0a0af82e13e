package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/goliatone/go-account-settings/adapters/gologger"
	promadapter "github.com/goliatone/go-account-settings/adapters/prometheus"
	"github.com/goliatone/go-account-settings/core"
	"github.com/goliatone/go-account-settings/homeserver"
	"github.com/goliatone/go-account-settings/identity"
	settingsmigrations "github.com/goliatone/go-account-settings/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// runtime holds what a single settingsctl invocation needs. Clients are nil
// when their configuration is absent.
type runtime struct {
	cfg        cliConfig
	logger     *gologger.SlogLogger
	registry   *prometheus.Registry
	service    *core.Service
	homeserver *homeserver.Client
	identity   *identity.Client
}

func newRuntime(cfg cliConfig, stderr io.Writer) (*runtime, error) {
	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	service, err := core.NewService(core.DefaultConfig(),
		core.WithLoggerProvider(gologger.NewSlogProvider(logger)),
		core.WithMetricsRecorder(promadapter.NewRecorder(registry)),
		core.WithConfigProvider(core.NewCfgxConfigProvider(core.NewStaticConfigLoader(cfg.settingsValues()))),
	)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		service:  service,
	}
	timeout := service.Config().Transport.RequestTimeout

	if cfg.HomeserverURL != "" && cfg.AccessToken != "" {
		rt.homeserver, err = homeserver.NewClient(homeserver.Config{
			BaseURL:        cfg.HomeserverURL,
			AccessToken:    cfg.AccessToken,
			UserID:         cfg.UserID,
			RequestTimeout: timeout,
		})
		if err != nil {
			service.Close()
			return nil, err
		}
	}
	if cfg.IdentityServerURL != "" {
		identityCfg := identity.Config{
			BaseURL:        cfg.IdentityServerURL,
			AccessToken:    cfg.IdentityToken,
			RequestTimeout: timeout,
		}
		if rt.homeserver != nil {
			identityCfg.AcceptedTerms = rt.homeserver
		}
		rt.identity, err = identity.NewClient(identityCfg)
		if err != nil {
			service.Close()
			return nil, err
		}
	}
	return rt, nil
}

func (r *runtime) Close() {
	if r == nil || r.service == nil {
		return
	}
	r.service.Close()
}

// identityService returns nil, not a typed nil, when no identity server is
// configured so the controller reports ModeNoIdentityService.
func (r *runtime) identityService() core.IdentityService {
	if r.identity == nil {
		return nil
	}
	return r.identity
}

// writeMetrics prints the metrics recorded during the command in the
// Prometheus text format.
func (r *runtime) writeMetrics(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(cfg cliConfig, w io.Writer) (*gologger.SlogLogger, error) {
	level, err := gologger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		return gologger.NewJSONLogger(w, level), nil
	case "", "text":
		return gologger.NewTextLogger(w, level), nil
	default:
		return nil, fmt.Errorf("%sLOG_FORMAT: unsupported format %q", envPrefix, cfg.LogFormat)
	}
}

type persistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.dsn
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "settingsctl"
}

// openDatabase connects to the identifier cache database and registers the
// migrations for its dialect. Migrations are applied only when migrate is
// true.
func openDatabase(ctx context.Context, cfg cliConfig, migrate bool) (*persistence.Client, error) {
	if err := cfg.requireDatabase(); err != nil {
		return nil, err
	}
	dialectName, err := settingsmigrations.DialectForDriver(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	var dialect schema.Dialect
	switch dialectName {
	case settingsmigrations.DialectPostgres:
		dialect = pgdialect.New()
	default:
		dialect = sqlitedialect.New()
	}

	driverName := "postgres"
	if dialectName == settingsmigrations.DialectSQLite {
		driverName = "sqlite3"
	}
	sqlDB, err := sql.Open(driverName, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if dialectName == settingsmigrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{
		driver: driverName,
		dsn:    cfg.DatabaseDSN,
		debug:  strings.EqualFold(cfg.LogLevel, "trace"),
	}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if _, err := settingsmigrations.RegisterDialect(ctx, dialectName, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	}); err != nil {
		_ = client.Close()
		return nil, err
	}
	if migrate {
		if err := client.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}
