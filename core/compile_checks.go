package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ ErrorClassifier  = MatrixErrorClassifier{}
	_ MetricsRecorder  = NopMetricsRecorder{}
	_ ConfigProvider   = (*CfgxConfigProvider)(nil)
	_ OptionsResolver  = GoOptionsResolver{}
	_ Executor         = (*SerialExecutor)(nil)
	_ LoadingIndicator = nopLoadingIndicator{}

	_ ViewStateObserver          = ViewStateObserverFunc(nil)
	_ IdentifierSelectionHandler = IdentifierSelectionHandlerFunc(nil)
	_ CredentialChangeHandler    = CredentialChangeHandlerFunc(nil)
	_ TermsPromptHandler         = TermsPromptHandlerFunc(nil)

	_ DisplayMode = ModeNoIdentityService{}
	_ DisplayMode = ModeTermsNotSigned{}
	_ DisplayMode = ModeNoIdentifiersLinked{}
	_ DisplayMode = ModeIdentifiersLinked{}

	_ ViewState = StateIdle{}
	_ ViewState = StateLoading{}
	_ ViewState = StateLoaded{}
	_ ViewState = StateFailed{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
