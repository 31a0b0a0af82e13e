package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type failingConfigProvider struct {
	err error
}

func (p failingConfigProvider) Load(context.Context, Config) (Config, error) {
	return Config{}, p.err
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer svc.Close()

	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorMapper == nil {
		t.Fatalf("expected default error mapper")
	}
	if deps.ErrorClassifier == nil {
		t.Fatalf("expected default error classifier")
	}
	if deps.Executor == nil {
		t.Fatalf("expected service executor")
	}
	cfg := svc.Config()
	if cfg.ServiceName != "account-settings" {
		t.Fatalf("expected default service_name, got %q", cfg.ServiceName)
	}
	if cfg.Identity.TermsNotSignedCode != MatrixErrorTermsNotSigned {
		t.Fatalf("expected default terms code, got %q", cfg.Identity.TermsNotSignedCode)
	}
	if cfg.Transport.RequestTimeout != 30*time.Second {
		t.Fatalf("expected default request timeout, got %s", cfg.Transport.RequestTimeout)
	}
}

func TestNewService_ConfigLayers(t *testing.T) {
	loader := mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"credential": map[string]any{
			"require_distinct_secret": true,
		},
	}}

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithConfigProvider(NewCfgxConfigProvider(loader)),
		WithExecutor(newManualExecutor()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "runtime" {
		t.Fatalf("expected runtime layer to win, got %q", cfg.ServiceName)
	}
	if !cfg.Credential.RequireDistinctSecret {
		t.Fatalf("expected config layer to enable require_distinct_secret")
	}
	if cfg.Identity.TermsNotSignedCode != MatrixErrorTermsNotSigned {
		t.Fatalf("expected defaults to fill unset keys, got %q", cfg.Identity.TermsNotSignedCode)
	}
}

func TestNewService_WithOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	recorder := &captureMetricsRecorder{}
	classifier := MatrixErrorClassifier{Messages: map[string]string{}}
	executor := newManualExecutor()
	source := &staticIdentifierSource{}

	svc, err := NewService(Config{},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithMetricsRecorder(recorder),
		WithErrorClassifier(classifier),
		WithExecutor(executor),
		WithIdentifierSource(source),
		WithConfigProvider(&fixedConfigProvider{cfg: DefaultConfig()}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger")
	}
	if deps.MetricsRecorder != recorder {
		t.Fatalf("expected custom metrics recorder")
	}
	if deps.Executor != executor {
		t.Fatalf("expected host executor")
	}
	if deps.IdentifierSource != source {
		t.Fatalf("expected identifier source")
	}
	svc.Close()
	if !executor.Post(func() {}) {
		t.Fatalf("expected host executor to outlive the service")
	}
}

func TestNewService_ConfigErrorIsMapped(t *testing.T) {
	sentinel := errors.New("config unreadable")
	_, err := NewService(Config{}, WithConfigProvider(failingConfigProvider{err: sentinel}))
	if err == nil {
		t.Fatalf("expected error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected mapped goerrors error, got %T", err)
	}
	if rich.TextCode != SettingsErrorInternal {
		t.Fatalf("expected %s, got %s", SettingsErrorInternal, rich.TextCode)
	}
}

func TestService_ControllersInheritConfig(t *testing.T) {
	executor := newManualExecutor()
	loader := mapRawLoader{values: map[string]any{
		"credential": map[string]any{"require_distinct_secret": true},
	}}
	svc, err := NewService(Config{}, WithExecutor(executor), WithConfigProvider(NewCfgxConfigProvider(loader)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	client := &fakeCredentialClient{}
	handler := &recordingHandler{}
	controller := svc.NewChangeCredentialController(client, handler)
	controller.Submit(context.Background(), CredentialChangeRequest{OldSecret: "same", NewSecret: "same"})
	executor.runPending()

	if results := handler.snapshot(); len(results) != 1 || results[0] == nil {
		t.Fatalf("expected distinct secret rule from config, got %v", results)
	}
	executor.closeWith(t, controller.Close)
}

func TestService_LoadDiscoveryController(t *testing.T) {
	executor := newManualExecutor()
	source := &staticIdentifierSource{identifiers: []ThirdPartyIdentifier{
		{Medium: MediumEmail, Address: "a@x.com"},
	}}
	svc, err := NewService(Config{}, WithExecutor(executor), WithIdentifierSource(source))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	observer := &recordingObserver{}
	identity := &fakeIdentityService{baseURL: "https://id.example.org", progress: fixedProgress(1, 1)}
	controller, err := svc.LoadDiscoveryController(context.Background(), " @alice:example.org ", identity,
		WithViewStateObserver(observer),
	)
	if err != nil {
		t.Fatalf("load controller: %v", err)
	}
	if len(source.userIDs) != 1 || source.userIDs[0] != "@alice:example.org" {
		t.Fatalf("expected trimmed user id, got %v", source.userIDs)
	}

	loadAndSettle(t, controller, executor)
	got := observer.kinds()
	if got[len(got)-1] != "loaded(identifiers_linked)" {
		t.Fatalf("expected identifiers from source, got %v", got)
	}

	source.identifiers = nil
	if err := svc.RefreshIdentifiers(context.Background(), "@alice:example.org", controller); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	executor.runPending()
	got = observer.kinds()
	if got[len(got)-1] != "loaded(no_identifiers_linked)" {
		t.Fatalf("expected refresh to re-derive, got %v", got)
	}
	executor.closeWith(t, controller.Close)
}

func TestService_LoadDiscoveryControllerRequiresUser(t *testing.T) {
	svc, err := NewService(Config{}, WithExecutor(newManualExecutor()), WithIdentifierSource(&staticIdentifierSource{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.LoadDiscoveryController(context.Background(), "  ", nil)
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != SettingsErrorBadInput {
		t.Fatalf("expected bad input, got %v", err)
	}
}
