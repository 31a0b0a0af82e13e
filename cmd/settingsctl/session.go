package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	settings "github.com/goliatone/go-account-settings"
	"github.com/goliatone/go-account-settings/adapters/gocommand"
	"github.com/goliatone/go-account-settings/core"
	gocmd "github.com/goliatone/go-command"
	"github.com/spf13/cobra"
)

var dumpMetrics bool

// runWithRuntime loads configuration, builds the runtime and runs fn with a
// context cancelled on SIGINT or SIGTERM.
func runWithRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := fn(ctx, rt)
	if dumpMetrics {
		if err := rt.writeMetrics(cmd.ErrOrStderr()); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// session wires the controllers of one command to the go-command dispatcher
// through the settings facade.
type session struct {
	discovery  *core.DiscoveryController
	credential *core.ChangeCredentialController
	states     chan core.ViewState
	prompts    chan string
	outcomes   chan error
	subs       *gocommand.Subscriptions
}

type sessionOptions struct {
	identifiers []core.ThirdPartyIdentifier
	discovery   bool
	credential  core.CredentialChangeClient
	indicator   core.LoadingIndicator
	facadeOpts  []settings.FacadeOption
}

func newSession(rt *runtime, opts sessionOptions) (*session, error) {
	s := &session{
		states:   make(chan core.ViewState, 16),
		prompts:  make(chan string, 1),
		outcomes: make(chan error, 1),
	}
	if opts.discovery {
		s.discovery = rt.service.NewDiscoveryController(opts.identifiers, rt.identityService(),
			core.WithViewStateObserver(core.ViewStateObserverFunc(func(state core.ViewState) {
				select {
				case s.states <- state:
				default:
				}
			})),
			core.WithTermsPromptHandler(core.TermsPromptHandlerFunc(func(host string) {
				select {
				case s.prompts <- host:
				default:
				}
			})),
		)
	}
	if opts.credential != nil {
		controllerOpts := []core.ControllerOption{}
		if opts.indicator != nil {
			controllerOpts = append(controllerOpts, core.WithLoadingIndicator(opts.indicator))
		}
		s.credential = rt.service.NewChangeCredentialController(opts.credential,
			core.CredentialChangeHandlerFunc(func(err error) {
				select {
				case s.outcomes <- err:
				default:
				}
			}),
			controllerOpts...,
		)
	}

	facade, err := settings.NewFacade(s.discovery, s.credential, opts.facadeOpts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	adapter := gocommand.NewRegistryAdapter(gocmd.NewRegistry())
	s.subs, err = facade.Register(adapter)
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := adapter.Initialize(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	if s == nil {
		return
	}
	if s.subs != nil {
		s.subs.Unsubscribe()
	}
	if s.discovery != nil {
		s.discovery.Close()
	}
	if s.credential != nil {
		s.credential.Close()
	}
}

// awaitSettled blocks until the discovery controller reaches Loaded or
// Failed.
func (s *session) awaitSettled(ctx context.Context) (core.ViewState, error) {
	for {
		select {
		case state := <-s.states:
			switch state.Kind() {
			case core.ViewStateLoaded, core.ViewStateFailed:
				return state, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// awaitTermsCheck waits for the outcome of AcceptTerms: either a settled
// view state or a prompt for the terms, which leaves the state unchanged.
func (s *session) awaitTermsCheck(ctx context.Context) (state core.ViewState, promptHost string, err error) {
	for {
		select {
		case state := <-s.states:
			switch state.Kind() {
			case core.ViewStateLoaded, core.ViewStateFailed:
				return state, "", nil
			}
		case host := <-s.prompts:
			return nil, host, nil
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}
}

func (s *session) awaitOutcome(ctx context.Context) error {
	select {
	case err := <-s.outcomes:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func dispatchDiscovery[T any](ctx context.Context, s *session, msg T) (core.ViewState, error) {
	if err := gocommand.Dispatch(ctx, msg); err != nil {
		return nil, err
	}
	return s.awaitSettled(ctx)
}

// stateError turns a failed view state into a command error carrying the
// display envelope.
func stateError(state core.ViewState) error {
	failed, ok := state.(core.StateFailed)
	if !ok {
		return nil
	}
	display := core.DisplayError(core.NewMatrixErrorClassifier(), failed.Err)
	if display == nil {
		return errors.New("discovery failed")
	}
	return &exitError{code: 1, err: display}
}

// writerIndicator reports progress of a credential change on w.
type writerIndicator struct {
	w       io.Writer
	message string
}

func (i writerIndicator) Show() {
	fmt.Fprintln(i.w, i.message)
}

func (i writerIndicator) Hide() {}
