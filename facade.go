package settings

import (
	"fmt"

	"github.com/goliatone/go-account-settings/adapters/gocommand"
	settingscommand "github.com/goliatone/go-account-settings/command"
	"github.com/goliatone/go-account-settings/core"
	settingsquery "github.com/goliatone/go-account-settings/query"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
)

type Commands struct {
	LoadDiscovery     *settingscommand.LoadDiscoveryCommand
	AcceptTerms       *settingscommand.AcceptTermsCommand
	UpdateIdentifiers *settingscommand.UpdateIdentifiersCommand
	SelectIdentifier  *settingscommand.SelectIdentifierCommand
	ChangeCredential  *settingscommand.ChangeCredentialCommand
	CancelCredential  *settingscommand.CancelCredentialCommand
	SyncIdentifiers   *settingscommand.SyncIdentifiersCommand
}

type Queries struct {
	DiscoveryState     *settingsquery.DiscoveryStateQuery
	TermsProgress      *settingsquery.TermsProgressQuery
	ListIdentifiers    *settingsquery.ListIdentifiersQuery
	CredentialInFlight *settingsquery.CredentialInFlightQuery
}

// Facade exposes the controllers as go-command handlers. Handlers whose
// backing controller or reader was not supplied are left nil and skipped by
// Register.
type Facade struct {
	discovery  *core.DiscoveryController
	credential *core.ChangeCredentialController
	commands   Commands
	queries    Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	termsProgress settingsquery.TermsProgressReader
	identifiers   IdentifierSource
	sync          settingscommand.IdentifierSyncService
}

// WithTermsProgressReader backs the terms progress query, usually with the
// identity client.
func WithTermsProgressReader(reader settingsquery.TermsProgressReader) FacadeOption {
	return func(options *facadeOptions) {
		options.termsProgress = reader
	}
}

func WithIdentifierReader(reader IdentifierSource) FacadeOption {
	return func(options *facadeOptions) {
		options.identifiers = reader
	}
}

func WithIdentifierSync(sync settingscommand.IdentifierSyncService) FacadeOption {
	return func(options *facadeOptions) {
		options.sync = sync
	}
}

func NewFacade(
	discovery *core.DiscoveryController,
	credential *core.ChangeCredentialController,
	opts ...FacadeOption,
) (*Facade, error) {
	if discovery == nil && credential == nil {
		return nil, fmt.Errorf("settings: a discovery or credential controller is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{discovery: discovery, credential: credential}
	if discovery != nil {
		facade.commands.LoadDiscovery = settingscommand.NewLoadDiscoveryCommand(discovery)
		facade.commands.AcceptTerms = settingscommand.NewAcceptTermsCommand(discovery)
		facade.commands.UpdateIdentifiers = settingscommand.NewUpdateIdentifiersCommand(discovery)
		facade.commands.SelectIdentifier = settingscommand.NewSelectIdentifierCommand(discovery)
		facade.queries.DiscoveryState = settingsquery.NewDiscoveryStateQuery(discovery)
	}
	if credential != nil {
		facade.commands.ChangeCredential = settingscommand.NewChangeCredentialCommand(credential)
		facade.commands.CancelCredential = settingscommand.NewCancelCredentialCommand(credential)
		facade.queries.CredentialInFlight = settingsquery.NewCredentialInFlightQuery(credential)
	}
	if cfg.sync != nil {
		facade.commands.SyncIdentifiers = settingscommand.NewSyncIdentifiersCommand(cfg.sync)
	}
	if cfg.termsProgress != nil {
		facade.queries.TermsProgress = settingsquery.NewTermsProgressQuery(cfg.termsProgress)
	}
	if cfg.identifiers != nil {
		facade.queries.ListIdentifiers = settingsquery.NewListIdentifiersQuery(cfg.identifiers)
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Discovery() *core.DiscoveryController {
	if f == nil {
		return nil
	}
	return f.discovery
}

func (f *Facade) Credential() *core.ChangeCredentialController {
	if f == nil {
		return nil
	}
	return f.credential
}

// Register adds every wired handler to the registry and subscribes it on the
// global dispatcher. On failure the handlers registered so far are
// unsubscribed. Call adapter.Initialize once all handlers are registered.
func (f *Facade) Register(adapter *gocommand.RegistryAdapter) (*gocommand.Subscriptions, error) {
	if f == nil {
		return nil, fmt.Errorf("settings: facade is nil")
	}
	subs := &gocommand.Subscriptions{}
	var err error
	add := func(sub commanddispatcher.Subscription, registerErr error) {
		if err != nil {
			if sub != nil {
				sub.Unsubscribe()
			}
			return
		}
		if registerErr != nil {
			err = registerErr
			return
		}
		subs.Add(sub)
	}

	c, q := f.commands, f.queries
	if c.LoadDiscovery != nil {
		add(gocommand.RegisterAndSubscribe[settingscommand.LoadDiscoveryMessage](adapter, c.LoadDiscovery))
	}
	if c.AcceptTerms != nil {
		add(gocommand.RegisterAndSubscribe[settingscommand.AcceptTermsMessage](adapter, c.AcceptTerms))
	}
	if c.UpdateIdentifiers != nil {
		add(gocommand.RegisterAndSubscribe[settingscommand.UpdateIdentifiersMessage](adapter, c.UpdateIdentifiers))
	}
	if c.SelectIdentifier != nil {
		add(gocommand.RegisterAndSubscribe[settingscommand.SelectIdentifierMessage](adapter, c.SelectIdentifier))
	}
	if c.ChangeCredential != nil {
		add(gocommand.RegisterAndSubscribe[settingscommand.ChangeCredentialMessage](adapter, c.ChangeCredential))
	}
	if c.CancelCredential != nil {
		add(gocommand.RegisterAndSubscribe[settingscommand.CancelCredentialMessage](adapter, c.CancelCredential))
	}
	if c.SyncIdentifiers != nil {
		add(gocommand.RegisterAndSubscribe[settingscommand.SyncIdentifiersMessage](adapter, c.SyncIdentifiers))
	}
	if q.DiscoveryState != nil {
		add(gocommand.RegisterAndSubscribeQuery[settingsquery.DiscoveryStateMessage, core.ViewState](adapter, q.DiscoveryState))
	}
	if q.TermsProgress != nil {
		add(gocommand.RegisterAndSubscribeQuery[settingsquery.TermsProgressMessage, core.TermsAgreementProgress](adapter, q.TermsProgress))
	}
	if q.ListIdentifiers != nil {
		add(gocommand.RegisterAndSubscribeQuery[settingsquery.ListIdentifiersMessage, []core.ThirdPartyIdentifier](adapter, q.ListIdentifiers))
	}
	if q.CredentialInFlight != nil {
		add(gocommand.RegisterAndSubscribeQuery[settingsquery.CredentialInFlightMessage, bool](adapter, q.CredentialInFlight))
	}

	if err != nil {
		subs.Unsubscribe()
		return nil, err
	}
	return subs, nil
}
