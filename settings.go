package settings

import "github.com/goliatone/go-account-settings/core"

type Config = core.Config

type Option = core.Option

type ControllerOption = core.ControllerOption

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type DiscoveryController = core.DiscoveryController
type ChangeCredentialController = core.ChangeCredentialController

type ThirdPartyIdentifier = core.ThirdPartyIdentifier
type Medium = core.Medium
type TermsAgreementProgress = core.TermsAgreementProgress
type CredentialChangeRequest = core.CredentialChangeRequest

type ViewState = core.ViewState
type DisplayMode = core.DisplayMode

type IdentityService = core.IdentityService
type CredentialChangeClient = core.CredentialChangeClient
type IdentifierSource = core.IdentifierSource

const (
	MediumEmail = core.MediumEmail
	MediumPhone = core.MediumPhone
)

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithMetricsRecorder  = core.WithMetricsRecorder
	WithErrorMapper      = core.WithErrorMapper
	WithErrorClassifier  = core.WithErrorClassifier
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithExecutor         = core.WithExecutor
	WithIdentifierSource = core.WithIdentifierSource

	WithViewStateObserver  = core.WithViewStateObserver
	WithSelectionHandler   = core.WithSelectionHandler
	WithTermsPromptHandler = core.WithTermsPromptHandler
	WithLoadingIndicator   = core.WithLoadingIndicator
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
