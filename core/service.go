package core

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

// Service carries the resolved configuration and shared dependencies used to
// build controllers for one account session.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	classifier      ErrorClassifier
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	identifiers     IdentifierSource
	executor        Executor
	ownedExecutor   *SerialExecutor
}

type ServiceDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorMapper      ErrorMapper
	ErrorClassifier  ErrorClassifier
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	IdentifierSource IdentifierSource
	Executor         Executor
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("account-settings", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("account-settings"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.classifier == nil {
		builder.classifier = NewMatrixErrorClassifier()
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	svc := &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		classifier:      builder.classifier,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		identifiers:     builder.identifiers,
		executor:        builder.executor,
	}
	if svc.executor == nil {
		svc.ownedExecutor = NewSerialExecutor()
		svc.executor = svc.ownedExecutor
	}
	return svc, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:           s.logger,
		LoggerProvider:   s.loggerProvider,
		MetricsRecorder:  s.metricsRecorder,
		ErrorMapper:      s.errorMapper,
		ErrorClassifier:  s.classifier,
		ConfigProvider:   s.configProvider,
		OptionsResolver:  s.optionsResolver,
		IdentifierSource: s.identifiers,
		Executor:         s.executor,
	}
}

// NewDiscoveryController builds a discovery controller on the service
// executor. identity may be nil when no identity server is configured.
func (s *Service) NewDiscoveryController(
	identifiers []ThirdPartyIdentifier,
	identity IdentityService,
	opts ...ControllerOption,
) *DiscoveryController {
	return NewDiscoveryController(identifiers, identity, append(s.controllerOptions(), opts...)...)
}

// LoadDiscoveryController seeds the controller from the configured
// IdentifierSource.
func (s *Service) LoadDiscoveryController(
	ctx context.Context,
	userID string,
	identity IdentityService,
	opts ...ControllerOption,
) (*DiscoveryController, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	if s.identifiers == nil {
		return nil, s.mapError(fmt.Errorf("core: identifier source is required"))
	}
	if strings.TrimSpace(userID) == "" {
		return nil, s.mapError(validationError("user_id", "user id is required"))
	}
	identifiers, err := s.identifiers.ListIdentifiers(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, s.mapError(err)
	}
	return s.NewDiscoveryController(identifiers, identity, opts...), nil
}

// RefreshIdentifiers reloads identifiers from the IdentifierSource and hands
// them to the controller.
func (s *Service) RefreshIdentifiers(ctx context.Context, userID string, controller *DiscoveryController) error {
	if s == nil || s.identifiers == nil {
		return dependencyError("core: identifier source is required")
	}
	if controller == nil {
		return dependencyError("core: discovery controller is required")
	}
	identifiers, err := s.identifiers.ListIdentifiers(ctx, strings.TrimSpace(userID))
	if err != nil {
		return s.mapError(err)
	}
	controller.UpdateIdentifiers(identifiers)
	return nil
}

func (s *Service) NewChangeCredentialController(
	client CredentialChangeClient,
	handler CredentialChangeHandler,
	opts ...ControllerOption,
) *ChangeCredentialController {
	return NewChangeCredentialController(client, handler, append(s.controllerOptions(), opts...)...)
}

// Close stops the executor the service started. Controllers built on it stop
// receiving work.
func (s *Service) Close() {
	if s == nil || s.ownedExecutor == nil {
		return
	}
	s.ownedExecutor.Close()
}

func (s *Service) controllerOptions() []ControllerOption {
	if s == nil {
		return nil
	}
	return []ControllerOption{
		WithControllerExecutor(s.executor),
		WithControllerLogger(s.logger),
		WithControllerMetrics(s.metricsRecorder),
		WithControllerClassifier(s.classifier),
		WithTermsNotSignedCode(s.config.Identity.TermsNotSignedCode),
		WithRequireDistinctSecret(s.config.Credential.RequireDistinctSecret),
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	return mapBuildError(s.errorMapper, err)
}
