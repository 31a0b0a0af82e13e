package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func newTestCredentialController(
	t *testing.T,
	client CredentialChangeClient,
	opts ...ControllerOption,
) (*ChangeCredentialController, *manualExecutor, *recordingHandler, *countingIndicator) {
	t.Helper()
	executor := newManualExecutor()
	handler := &recordingHandler{}
	indicator := &countingIndicator{}
	base := []ControllerOption{
		WithControllerExecutor(executor),
		WithLoadingIndicator(indicator),
		WithControllerLogger(stubLogger{}),
	}
	controller := NewChangeCredentialController(client, handler, append(base, opts...)...)
	t.Cleanup(func() { executor.closeWith(t, controller.Close) })
	return controller, executor, handler, indicator
}

func TestChangeCredential_SuccessShowsAndHidesOnce(t *testing.T) {
	client := &fakeCredentialClient{}
	controller, executor, handler, indicator := newTestCredentialController(t, client)

	controller.Submit(context.Background(), CredentialChangeRequest{
		OldSecret:               "a",
		NewSecret:               "b",
		InvalidateOtherSessions: true,
	})
	executor.runPending()
	executor.awaitPost(t)
	executor.runPending()

	shown, hidden := indicator.counts()
	if shown != 1 || hidden != 1 {
		t.Fatalf("expected one show and one hide, got show=%d hide=%d", shown, hidden)
	}
	results := handler.snapshot()
	if len(results) != 1 || results[0] != nil {
		t.Fatalf("expected a single success callback, got %v", results)
	}
	calls := client.recorded()
	if len(calls) != 1 {
		t.Fatalf("expected one client call, got %d", len(calls))
	}
	if calls[0] != (credentialCall{oldSecret: "a", newSecret: "b", invalidate: true}) {
		t.Fatalf("unexpected client call %+v", calls[0])
	}
}

func TestChangeCredential_SecondSubmitSupersedesFirst(t *testing.T) {
	firstCanceled := make(chan struct{})
	client := &fakeCredentialClient{
		fn: func(ctx context.Context, call credentialCall) error {
			if call.newSecret != "first" {
				return nil
			}
			<-ctx.Done()
			close(firstCanceled)
			return ctx.Err()
		},
	}
	controller, executor, handler, indicator := newTestCredentialController(t, client)

	controller.Submit(context.Background(), CredentialChangeRequest{OldSecret: "old", NewSecret: "first"})
	controller.Submit(context.Background(), CredentialChangeRequest{OldSecret: "old", NewSecret: "second"})
	executor.runPending()

	select {
	case <-firstCanceled:
	case <-time.After(testWait):
		t.Fatalf("expected the first change to be canceled")
	}
	deadline := time.After(testWait)
	for len(handler.snapshot()) == 0 {
		executor.awaitPost(t)
		executor.runPending()
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for completion")
		default:
		}
	}
	executor.runPending()

	results := handler.snapshot()
	if len(results) != 1 || results[0] != nil {
		t.Fatalf("expected exactly one success callback, got %v", results)
	}
	shown, hidden := indicator.counts()
	if shown != 2 || hidden != 1 {
		t.Fatalf("expected show=2 hide=1, got show=%d hide=%d", shown, hidden)
	}
	inFlight := true
	executor.Post(func() { inFlight = controller.slot.Active() })
	executor.runPending()
	if inFlight {
		t.Fatalf("expected no change in flight")
	}
}

func TestChangeCredential_InvalidSubmitSupersedesInFlight(t *testing.T) {
	release := make(chan struct{})
	client := &fakeCredentialClient{
		fn: func(_ context.Context, call credentialCall) error {
			if call.newSecret == "first" {
				<-release
			}
			return nil
		},
	}
	controller, executor, handler, indicator := newTestCredentialController(t, client)

	controller.Submit(context.Background(), CredentialChangeRequest{OldSecret: "old", NewSecret: "first"})
	executor.runPending()
	controller.Submit(context.Background(), CredentialChangeRequest{OldSecret: "old", NewSecret: ""})
	executor.runPending()

	close(release)
	executor.awaitPost(t)
	executor.runPending()

	results := handler.snapshot()
	if len(results) != 1 {
		t.Fatalf("expected exactly one callback, got %v", results)
	}
	var rich *goerrors.Error
	if !goerrors.As(results[0], &rich) || rich.TextCode != SettingsErrorBadInput {
		t.Fatalf("expected the validation error, got %v", results[0])
	}
	shown, hidden := indicator.counts()
	if shown != 1 || hidden != 1 {
		t.Fatalf("expected show=1 hide=1, got show=%d hide=%d", shown, hidden)
	}
	if len(client.recorded()) != 1 {
		t.Fatalf("expected only the first change to reach the client")
	}
}

func TestChangeCredential_ValidationFailsBeforeIndicator(t *testing.T) {
	client := &fakeCredentialClient{}
	controller, executor, handler, indicator := newTestCredentialController(t, client)

	controller.Submit(context.Background(), CredentialChangeRequest{OldSecret: "", NewSecret: "b"})
	executor.runPending()

	if shown, _ := indicator.counts(); shown != 0 {
		t.Fatalf("expected indicator to stay hidden, got %d shows", shown)
	}
	if len(client.recorded()) != 0 {
		t.Fatalf("expected no client call")
	}
	results := handler.snapshot()
	if len(results) != 1 {
		t.Fatalf("expected one callback, got %v", results)
	}
	var rich *goerrors.Error
	if !goerrors.As(results[0], &rich) {
		t.Fatalf("expected goerrors envelope, got %T", results[0])
	}
	if rich.TextCode != SettingsErrorBadInput {
		t.Fatalf("expected %s, got %s", SettingsErrorBadInput, rich.TextCode)
	}
}

func TestChangeCredential_RequireDistinctSecret(t *testing.T) {
	client := &fakeCredentialClient{}
	controller, executor, handler, _ := newTestCredentialController(t, client, WithRequireDistinctSecret(true))

	controller.Submit(context.Background(), CredentialChangeRequest{OldSecret: "same", NewSecret: "same"})
	executor.runPending()

	results := handler.snapshot()
	if len(results) != 1 || results[0] == nil {
		t.Fatalf("expected a validation failure, got %v", results)
	}
	if len(client.recorded()) != 0 {
		t.Fatalf("expected no client call")
	}
}

func TestChangeCredential_RecognizedFailureKeepsCode(t *testing.T) {
	client := &fakeCredentialClient{
		fn: func(context.Context, credentialCall) error {
			return goerrors.New("Invalid password", goerrors.CategoryAuthz).
				WithCode(403).
				WithTextCode(MatrixErrorForbidden)
		},
	}
	controller, executor, handler, indicator := newTestCredentialController(t, client)

	controller.Submit(context.Background(), CredentialChangeRequest{OldSecret: "a", NewSecret: "b"})
	executor.runPending()
	executor.awaitPost(t)
	executor.runPending()

	if _, hidden := indicator.counts(); hidden != 1 {
		t.Fatalf("expected indicator hidden on failure")
	}
	results := handler.snapshot()
	if len(results) != 1 {
		t.Fatalf("expected one callback, got %v", results)
	}
	var rich *goerrors.Error
	if !goerrors.As(results[0], &rich) {
		t.Fatalf("expected goerrors envelope, got %T", results[0])
	}
	if rich.TextCode != MatrixErrorForbidden {
		t.Fatalf("expected %s, got %s", MatrixErrorForbidden, rich.TextCode)
	}
	if rich.Message != "The current password is incorrect" {
		t.Fatalf("unexpected message %q", rich.Message)
	}
}

func TestChangeCredential_OpaqueFailureIsUnknown(t *testing.T) {
	client := &fakeCredentialClient{
		fn: func(context.Context, credentialCall) error {
			return errors.New("connection reset")
		},
	}
	controller, executor, handler, _ := newTestCredentialController(t, client)

	controller.Submit(context.Background(), CredentialChangeRequest{OldSecret: "a", NewSecret: "b"})
	executor.runPending()
	executor.awaitPost(t)
	executor.runPending()

	results := handler.snapshot()
	var rich *goerrors.Error
	if len(results) != 1 || !goerrors.As(results[0], &rich) {
		t.Fatalf("expected one goerrors callback, got %v", results)
	}
	if rich.TextCode != SettingsErrorUnknown {
		t.Fatalf("expected %s, got %s", SettingsErrorUnknown, rich.TextCode)
	}
}

func TestChangeCredential_CancelIsSilent(t *testing.T) {
	returned := make(chan struct{})
	client := &fakeCredentialClient{
		fn: func(ctx context.Context, _ credentialCall) error {
			defer close(returned)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	controller, executor, handler, indicator := newTestCredentialController(t, client)

	controller.Submit(context.Background(), CredentialChangeRequest{OldSecret: "a", NewSecret: "b"})
	executor.runPending()
	controller.Cancel()
	executor.runPending()

	select {
	case <-returned:
	case <-time.After(testWait):
		t.Fatalf("expected cancel to reach the client")
	}
	executor.awaitPost(t)
	executor.runPending()

	if results := handler.snapshot(); len(results) != 0 {
		t.Fatalf("expected no callback after cancel, got %v", results)
	}
	shown, hidden := indicator.counts()
	if shown != 1 || hidden != 1 {
		t.Fatalf("expected cancel to hide the indicator once, got show=%d hide=%d", shown, hidden)
	}
}

func TestChangeCredential_CloseDropsOutcome(t *testing.T) {
	returned := make(chan struct{})
	client := &fakeCredentialClient{
		fn: func(ctx context.Context, _ credentialCall) error {
			defer close(returned)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	executor := newManualExecutor()
	handler := &recordingHandler{}
	controller := NewChangeCredentialController(client, handler, WithControllerExecutor(executor))

	controller.Submit(context.Background(), CredentialChangeRequest{OldSecret: "a", NewSecret: "b"})
	executor.runPending()
	executor.closeWith(t, controller.Close)

	select {
	case <-returned:
	case <-time.After(testWait):
		t.Fatalf("expected close to cancel the change")
	}
	executor.runPending()

	if results := handler.snapshot(); len(results) != 0 {
		t.Fatalf("expected no callback after close, got %v", results)
	}
}

func TestChangeCredential_InFlightWithSerialExecutor(t *testing.T) {
	release := make(chan struct{})
	completed := make(chan error, 1)
	client := &fakeCredentialClient{
		fn: func(ctx context.Context, _ credentialCall) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	controller := NewChangeCredentialController(client,
		CredentialChangeHandlerFunc(func(err error) { completed <- err }),
	)
	defer controller.Close()

	controller.Submit(context.Background(), CredentialChangeRequest{OldSecret: "a", NewSecret: "b"})
	inFlight, err := controller.InFlight(context.Background())
	if err != nil {
		t.Fatalf("in flight: %v", err)
	}
	if !inFlight {
		t.Fatalf("expected change to be in flight")
	}

	close(release)
	select {
	case err := <-completed:
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	case <-time.After(testWait):
		t.Fatalf("timed out waiting for completion")
	}
	inFlight, err = controller.InFlight(context.Background())
	if err != nil {
		t.Fatalf("in flight: %v", err)
	}
	if inFlight {
		t.Fatalf("expected no change in flight after completion")
	}
}

func TestCredentialChangeRequest_StringOmitsSecrets(t *testing.T) {
	req := CredentialChangeRequest{OldSecret: "hunter2", NewSecret: "correct horse"}
	if got := req.String(); got != "CredentialChangeRequest{InvalidateOtherSessions:false}" {
		t.Fatalf("unexpected string %q", got)
	}
}
