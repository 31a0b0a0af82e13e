package core

import (
	"context"
	"time"
)

// ChangeCredentialController runs one password change at a time. A new Submit
// supersedes the previous one: the old request is cancelled and its outcome
// is never reported.
type ChangeCredentialController struct {
	client                CredentialChangeClient
	handler               CredentialChangeHandler
	indicator             LoadingIndicator
	classifier            ErrorClassifier
	requireDistinctSecret bool
	telemetry             telemetry
	slot                  TaskSlot

	executor      Executor
	ownedExecutor *SerialExecutor
	lifetime      context.Context
	stop          context.CancelFunc
	closed        bool
}

// NewChangeCredentialController binds the client and the completion handler.
// The handler is fixed for the controller's lifetime.
func NewChangeCredentialController(
	client CredentialChangeClient,
	handler CredentialChangeHandler,
	opts ...ControllerOption,
) *ChangeCredentialController {
	cfg := resolveControllerConfig(opts)
	lifetime, stop := context.WithCancel(context.Background())
	c := &ChangeCredentialController{
		client:                client,
		handler:               handler,
		indicator:             cfg.loadingIndicator,
		classifier:            cfg.classifier,
		requireDistinctSecret: cfg.requireDistinctSecret,
		telemetry:             telemetry{logger: cfg.logger, metricsRecorder: cfg.metricsRecorder},
		executor:              cfg.executor,
		lifetime:              lifetime,
		stop:                  stop,
	}
	if c.executor == nil {
		c.ownedExecutor = NewSerialExecutor()
		c.executor = c.ownedExecutor
	}
	return c
}

func (c *ChangeCredentialController) Submit(ctx context.Context, req CredentialChangeRequest) {
	c.executor.Post(func() { c.submit(ctx, req) })
}

// Cancel abandons the in-flight change without reporting it and hides the
// loading indicator if a change was running.
func (c *ChangeCredentialController) Cancel() {
	c.executor.Post(c.abandonInFlight)
}

func (c *ChangeCredentialController) abandonInFlight() {
	if !c.slot.Active() {
		return
	}
	c.slot.Cancel()
	c.indicator.Hide()
}

// InFlight reports whether a change is outstanding. It must not be called
// from the completion handler, which runs on the executor.
func (c *ChangeCredentialController) InFlight(ctx context.Context) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make(chan bool, 1)
	if !c.executor.Post(func() { out <- c.slot.Active() }) {
		return false, dependencyError("core: credential executor is closed")
	}
	select {
	case active := <-out:
		return active, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Close cancels the in-flight change silently. It must not be called from
// work running on the executor.
func (c *ChangeCredentialController) Close() {
	if c == nil {
		return
	}
	c.stop()
	done := make(chan struct{})
	if c.executor.Post(func() {
		defer close(done)
		c.closed = true
		c.slot.Cancel()
	}) {
		<-done
	}
	if c.ownedExecutor != nil {
		c.ownedExecutor.Close()
	}
}

func (c *ChangeCredentialController) submit(ctx context.Context, req CredentialChangeRequest) {
	if c.closed {
		return
	}
	fields := map[string]any{"invalidate_other_sessions": req.InvalidateOtherSessions}
	if c.client == nil {
		c.abandonInFlight()
		c.deliver(DisplayError(c.classifier, dependencyError("core: credential change client is required")))
		return
	}
	if err := req.Validate(); err != nil {
		c.abandonInFlight()
		c.telemetry.observe(ctx, time.Now().UTC(), "credential.change", statusFailure, err, fields)
		c.deliver(DisplayError(c.classifier, err))
		return
	}
	if c.requireDistinctSecret && req.OldSecret == req.NewSecret {
		err := validationError("new_secret", "new password must differ from the current password")
		c.abandonInFlight()
		c.telemetry.observe(ctx, time.Now().UTC(), "credential.change", statusFailure, err, fields)
		c.deliver(DisplayError(c.classifier, err))
		return
	}

	c.indicator.Show()

	parent, release := mergeCancellation(ctx, c.lifetime)
	opCtx, token := c.slot.Replace(parent)
	client := c.client
	startedAt := time.Now().UTC()
	go func() {
		defer release()
		err := client.ChangeCredential(opCtx, req.OldSecret, req.NewSecret, req.InvalidateOtherSessions)
		canceled := err != nil && opCtx.Err() != nil
		c.executor.Post(func() {
			c.finish(ctx, startedAt, token, err, canceled, fields)
		})
	}()
}

func (c *ChangeCredentialController) finish(
	ctx context.Context,
	startedAt time.Time,
	token uint64,
	err error,
	canceled bool,
	fields map[string]any,
) {
	if c.closed {
		return
	}
	if !c.slot.Release(token) {
		c.telemetry.observe(ctx, startedAt, "credential.change", statusSuperseded, nil, fields)
		return
	}
	if canceled {
		c.telemetry.observe(ctx, startedAt, "credential.change", statusCanceled, err, fields)
		return
	}

	c.indicator.Hide()
	if err == nil {
		c.telemetry.observe(ctx, startedAt, "credential.change", statusSuccess, nil, fields)
		c.deliver(nil)
		return
	}

	display := DisplayError(c.classifier, err)
	fields["error_code"] = display.TextCode
	c.telemetry.observe(ctx, startedAt, "credential.change", statusFailure, err, fields)
	c.deliver(display)
}

func (c *ChangeCredentialController) deliver(err error) {
	if c.handler == nil {
		c.telemetry.debug(c.lifetime, "credential change completed without handler", nil)
		return
	}
	c.handler.OnCredentialChangeCompleted(err)
}
