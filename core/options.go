package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	classifier      ErrorClassifier
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	executor        Executor
	identifiers     IdentifierSource
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithErrorClassifier(classifier ErrorClassifier) Option {
	return func(b *serviceBuilder) {
		b.classifier = classifier
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

// WithExecutor shares a host-owned executor between controllers. Without it
// the service starts a SerialExecutor and stops it on Close.
func WithExecutor(executor Executor) Option {
	return func(b *serviceBuilder) {
		b.executor = executor
	}
}

func WithIdentifierSource(source IdentifierSource) Option {
	return func(b *serviceBuilder) {
		b.identifiers = source
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("account-settings", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		classifier:      NewMatrixErrorClassifier(),
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return settingsErrorMapper(err)
}

// ControllerOption customises a single controller. Service-built controllers
// receive the service dependencies first, so these override them.
type ControllerOption func(*controllerConfig)

type controllerConfig struct {
	executor              Executor
	logger                Logger
	metricsRecorder       MetricsRecorder
	classifier            ErrorClassifier
	termsNotSignedCode    string
	requireDistinctSecret bool
	observer              ViewStateObserver
	selectionHandler      IdentifierSelectionHandler
	termsPromptHandler    TermsPromptHandler
	loadingIndicator      LoadingIndicator
}

func WithControllerExecutor(executor Executor) ControllerOption {
	return func(c *controllerConfig) {
		c.executor = executor
	}
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *controllerConfig) {
		c.logger = logger
	}
}

func WithControllerMetrics(recorder MetricsRecorder) ControllerOption {
	return func(c *controllerConfig) {
		c.metricsRecorder = recorder
	}
}

func WithControllerClassifier(classifier ErrorClassifier) ControllerOption {
	return func(c *controllerConfig) {
		c.classifier = classifier
	}
}

func WithTermsNotSignedCode(code string) ControllerOption {
	return func(c *controllerConfig) {
		if trimmed := strings.TrimSpace(code); trimmed != "" {
			c.termsNotSignedCode = trimmed
		}
	}
}

func WithRequireDistinctSecret(required bool) ControllerOption {
	return func(c *controllerConfig) {
		c.requireDistinctSecret = required
	}
}

func WithViewStateObserver(observer ViewStateObserver) ControllerOption {
	return func(c *controllerConfig) {
		c.observer = observer
	}
}

func WithSelectionHandler(handler IdentifierSelectionHandler) ControllerOption {
	return func(c *controllerConfig) {
		c.selectionHandler = handler
	}
}

func WithTermsPromptHandler(handler TermsPromptHandler) ControllerOption {
	return func(c *controllerConfig) {
		c.termsPromptHandler = handler
	}
}

func WithLoadingIndicator(indicator LoadingIndicator) ControllerOption {
	return func(c *controllerConfig) {
		c.loadingIndicator = indicator
	}
}

func resolveControllerConfig(options []ControllerOption) controllerConfig {
	cfg := controllerConfig{termsNotSignedCode: MatrixErrorTermsNotSigned}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	cfg.logger = glog.Ensure(cfg.logger)
	if cfg.metricsRecorder == nil {
		cfg.metricsRecorder = NopMetricsRecorder{}
	}
	if cfg.classifier == nil {
		cfg.classifier = NewMatrixErrorClassifier()
	}
	if cfg.loadingIndicator == nil {
		cfg.loadingIndicator = nopLoadingIndicator{}
	}
	return cfg
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticConfigLoader serves a fixed raw config map, e.g. one decoded by the
// host from its own settings file.
func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap omits zero values unless includeZero is set so that an
// upper layer only overrides what it actually configures.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.Identity.TermsNotSignedCode) != "" {
		layer["identity"] = map[string]any{
			"terms_not_signed_code": cfg.Identity.TermsNotSignedCode,
		}
	}

	transport := map[string]any{}
	if includeZero || cfg.Transport.RequestTimeout > 0 {
		transport["request_timeout"] = cfg.Transport.RequestTimeout
	}
	if includeZero || cfg.Transport.MaxResponseBytes > 0 {
		transport["max_response_bytes"] = cfg.Transport.MaxResponseBytes
	}
	if len(transport) > 0 {
		layer["transport"] = transport
	}

	if includeZero || cfg.Credential.RequireDistinctSecret {
		layer["credential"] = map[string]any{
			"require_distinct_secret": cfg.Credential.RequireDistinctSecret,
		}
	}
	return layer
}
