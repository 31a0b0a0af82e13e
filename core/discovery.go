package core

import (
	"context"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// DiscoveryController projects the account's linked identifiers into a
// ViewState, gated by the identity server's terms of service.
//
// Public methods may be called from any goroutine: they post onto the
// controller's executor, where all state changes and observer callbacks run.
type DiscoveryController struct {
	identity           IdentityService
	identifiers        []ThirdPartyIdentifier
	state              ViewState
	observer           ViewStateObserver
	observerSeq        uint64
	selectionHandler   IdentifierSelectionHandler
	termsPrompt        TermsPromptHandler
	classifier         ErrorClassifier
	termsNotSignedCode string
	telemetry          telemetry

	executor      Executor
	ownedExecutor *SerialExecutor
	lifetime      context.Context
	stop          context.CancelFunc
	closed        bool
}

// NewDiscoveryController stores the identifiers and the optional identity
// service. A nil identity service makes every Load yield
// ModeNoIdentityService.
func NewDiscoveryController(
	identifiers []ThirdPartyIdentifier,
	identity IdentityService,
	opts ...ControllerOption,
) *DiscoveryController {
	cfg := resolveControllerConfig(opts)
	lifetime, stop := context.WithCancel(context.Background())
	c := &DiscoveryController{
		identity:           identity,
		identifiers:        cloneIdentifiers(identifiers),
		state:              StateIdle{},
		observer:           cfg.observer,
		selectionHandler:   cfg.selectionHandler,
		termsPrompt:        cfg.termsPromptHandler,
		classifier:         cfg.classifier,
		termsNotSignedCode: cfg.termsNotSignedCode,
		telemetry:          telemetry{logger: cfg.logger, metricsRecorder: cfg.metricsRecorder},
		executor:           cfg.executor,
		lifetime:           lifetime,
		stop:               stop,
	}
	if c.executor == nil {
		c.ownedExecutor = NewSerialExecutor()
		c.executor = c.ownedExecutor
	}
	return c
}

// SetObserver registers the single observer, replacing any previous one. The
// controller does not manage the observer's lifetime; call the returned
// function to detach it.
func (c *DiscoveryController) SetObserver(observer ViewStateObserver) (detach func()) {
	var registered uint64
	posted := c.executor.Post(func() {
		c.observerSeq++
		registered = c.observerSeq
		c.observer = observer
	})
	return func() {
		if !posted {
			return
		}
		c.executor.Post(func() {
			if c.observerSeq == registered {
				c.observer = nil
			}
		})
	}
}

func (c *DiscoveryController) Load(ctx context.Context) {
	c.executor.Post(func() { c.load(ctx) })
}

func (c *DiscoveryController) AcceptTerms(ctx context.Context) {
	c.executor.Post(func() { c.acceptTerms(ctx) })
}

func (c *DiscoveryController) UpdateIdentifiers(identifiers []ThirdPartyIdentifier) {
	copied := cloneIdentifiers(identifiers)
	c.executor.Post(func() { c.updateIdentifiers(copied) })
}

func (c *DiscoveryController) SelectIdentifier(identifier ThirdPartyIdentifier) {
	c.executor.Post(func() { c.selectIdentifier(identifier) })
}

// State reads the current state through the executor. It must not be called
// from an observer or selection handler, which run on the executor.
func (c *DiscoveryController) State(ctx context.Context) (ViewState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make(chan ViewState, 1)
	if !c.executor.Post(func() { out <- c.state }) {
		return nil, dependencyError("core: discovery executor is closed")
	}
	select {
	case state := <-out:
		return state, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels outstanding identity-service calls. Their results are
// discarded and no further notifications are delivered. Close must not be
// called from work running on the executor.
func (c *DiscoveryController) Close() {
	if c == nil {
		return
	}
	c.stop()
	done := make(chan struct{})
	if c.executor.Post(func() {
		defer close(done)
		c.closed = true
		c.observer = nil
	}) {
		<-done
	}
	if c.ownedExecutor != nil {
		c.ownedExecutor.Close()
	}
}

func (c *DiscoveryController) load(ctx context.Context) {
	if c.closed {
		return
	}
	if c.state.Kind() == ViewStateLoading {
		c.telemetry.debug(ctx, "discovery load ignored while loading", nil)
		return
	}
	if c.identity == nil {
		c.setState(StateLoaded{Mode: ModeNoIdentityService{}})
		return
	}

	previous := c.state
	c.setState(StateLoading{})

	identity := c.identity
	opCtx, cancel := c.operationContext(ctx)
	startedAt := time.Now().UTC()
	go func() {
		defer cancel()
		progress, err := identity.TermsAgreementProgress(opCtx)
		canceled := err != nil && opCtx.Err() != nil
		c.executor.Post(func() {
			c.finishLoad(ctx, startedAt, previous, progress, err, canceled)
		})
	}()
}

func (c *DiscoveryController) finishLoad(
	ctx context.Context,
	startedAt time.Time,
	previous ViewState,
	progress TermsAgreementProgress,
	err error,
	canceled bool,
) {
	if c.closed {
		return
	}
	fields := map[string]any{
		"terms_agreed": progress.Agreed,
		"terms_total":  progress.Total,
	}
	if canceled {
		c.telemetry.observe(ctx, startedAt, "discovery.load", statusCanceled, err, fields)
		c.setState(previous)
		return
	}
	if err != nil {
		c.telemetry.observe(ctx, startedAt, "discovery.load", statusFailure, err, fields)
		c.setState(StateFailed{Err: err})
		return
	}

	c.telemetry.observe(ctx, startedAt, "discovery.load", statusSuccess, nil, fields)
	if progress.Complete() {
		c.recompute()
		return
	}
	c.setState(StateLoaded{Mode: ModeTermsNotSigned{Host: IdentityHost(c.identity.BaseURL())}})
}

func (c *DiscoveryController) acceptTerms(ctx context.Context) {
	if c.closed {
		return
	}
	if c.identity == nil {
		c.telemetry.debug(ctx, "discovery accept terms ignored without identity service", nil)
		return
	}

	identity := c.identity
	opCtx, cancel := c.operationContext(ctx)
	startedAt := time.Now().UTC()
	go func() {
		defer cancel()
		err := identity.TriggerAccountCheck(opCtx)
		canceled := err != nil && opCtx.Err() != nil
		c.executor.Post(func() {
			c.finishAcceptTerms(ctx, startedAt, err, canceled)
		})
	}()
}

func (c *DiscoveryController) finishAcceptTerms(ctx context.Context, startedAt time.Time, err error, canceled bool) {
	if c.closed {
		return
	}
	if canceled {
		c.telemetry.observe(ctx, startedAt, "discovery.accept_terms", statusCanceled, err, nil)
		return
	}
	if err == nil {
		c.telemetry.observe(ctx, startedAt, "discovery.accept_terms", statusSuccess, nil, nil)
		c.recompute()
		return
	}

	classified := c.classifier.Classify(err)
	fields := map[string]any{"error_code": classified.Code}
	if classified.Recognized && strings.EqualFold(classified.Code, c.termsNotSignedCode) {
		c.telemetry.observe(ctx, startedAt, "discovery.accept_terms", statusSuccess, nil, fields)
		if c.termsPrompt != nil {
			c.termsPrompt.OnTermsPromptRequired(IdentityHost(c.identity.BaseURL()))
		}
		return
	}
	c.telemetry.observe(ctx, startedAt, "discovery.accept_terms", statusFailure, err, fields)
	c.setState(StateFailed{Err: err})
}

func (c *DiscoveryController) updateIdentifiers(identifiers []ThirdPartyIdentifier) {
	if c.closed {
		return
	}
	c.identifiers = identifiers
	loaded, ok := c.state.(StateLoaded)
	if !ok || loaded.Mode == nil {
		return
	}
	switch loaded.Mode.Kind() {
	case DisplayModeIdentifiersLinked, DisplayModeNoIdentifiersLinked:
		c.recompute()
	}
}

func (c *DiscoveryController) selectIdentifier(identifier ThirdPartyIdentifier) {
	if c.closed || c.selectionHandler == nil {
		return
	}
	c.selectionHandler.OnIdentifierSelected(identifier.Medium, identifier.Address)
}

func (c *DiscoveryController) recompute() {
	c.setState(StateLoaded{Mode: DeriveDisplayMode(c.identifiers)})
}

func (c *DiscoveryController) setState(state ViewState) {
	c.state = state
	if c.observer != nil {
		c.observer.OnViewStateChanged(state)
	}
}

func (c *DiscoveryController) operationContext(parent context.Context) (context.Context, context.CancelFunc) {
	return mergeCancellation(parent, c.lifetime)
}

// mergeCancellation derives a context from parent that is also cancelled
// when lifetime ends.
func mergeCancellation(parent context.Context, lifetime context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	if lifetime == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// IdentityHost returns the identity server host shown in the terms prompt.
// Internationalised hosts are rendered in Unicode. When no host can be parsed
// the endpoint is returned unchanged.
func IdentityHost(endpoint string) string {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || parsed.Hostname() == "" {
		return endpoint
	}
	host := parsed.Hostname()
	if display, err := idna.ToUnicode(host); err == nil && display != "" {
		return display
	}
	return host
}
