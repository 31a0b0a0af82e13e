package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// IdentityService is the identity server the discovery screen is gated on.
type IdentityService interface {
	TermsAgreementProgress(ctx context.Context) (TermsAgreementProgress, error)
	// TriggerAccountCheck issues an authenticated no-op request. Its only
	// purpose is to surface M_TERMS_NOT_SIGNED so the host can present the
	// terms acceptance flow.
	TriggerAccountCheck(ctx context.Context) error
	BaseURL() string
}

type CredentialChangeClient interface {
	ChangeCredential(ctx context.Context, oldSecret string, newSecret string, invalidateOtherSessions bool) error
}

type ErrorClassifier interface {
	Classify(err error) ErrorClassification
}

type ViewStateObserver interface {
	OnViewStateChanged(state ViewState)
}

type ViewStateObserverFunc func(state ViewState)

func (f ViewStateObserverFunc) OnViewStateChanged(state ViewState) {
	if f != nil {
		f(state)
	}
}

type IdentifierSelectionHandler interface {
	OnIdentifierSelected(medium Medium, address string)
}

type IdentifierSelectionHandlerFunc func(medium Medium, address string)

func (f IdentifierSelectionHandlerFunc) OnIdentifierSelected(medium Medium, address string) {
	if f != nil {
		f(medium, address)
	}
}

// TermsPromptHandler is told when the identity server still requires its
// terms after AcceptTerms. The view state does not change; the host is
// expected to present the policies.
type TermsPromptHandler interface {
	OnTermsPromptRequired(host string)
}

type TermsPromptHandlerFunc func(host string)

func (f TermsPromptHandlerFunc) OnTermsPromptRequired(host string) {
	if f != nil {
		f(host)
	}
}

// CredentialChangeHandler receives the outcome of a submitted change. err is
// nil on success, otherwise a display-ready *goerrors.Error.
type CredentialChangeHandler interface {
	OnCredentialChangeCompleted(err error)
}

type CredentialChangeHandlerFunc func(err error)

func (f CredentialChangeHandlerFunc) OnCredentialChangeCompleted(err error) {
	if f != nil {
		f(err)
	}
}

type LoadingIndicator interface {
	Show()
	Hide()
}

type nopLoadingIndicator struct{}

func (nopLoadingIndicator) Show() {}
func (nopLoadingIndicator) Hide() {}

// Executor is the serialized context controllers run on. Work must run one
// item at a time in post order. Post returns false when the work was dropped
// because the executor is closed.
type Executor interface {
	Post(fn func()) bool
}

// IdentifierSource loads the identifiers linked to an account, e.g. from the
// homeserver or a local cache.
type IdentifierSource interface {
	ListIdentifiers(ctx context.Context, userID string) ([]ThirdPartyIdentifier, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
