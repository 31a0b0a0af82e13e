package command

import (
	"context"

	"github.com/goliatone/go-account-settings/core"
	gocmd "github.com/goliatone/go-command"
)

// DiscoveryService is the mutating surface of the discovery screen. Outcomes
// reach the presentation layer through the registered observer, so commands
// only dispatch.
type DiscoveryService interface {
	Load(ctx context.Context)
	AcceptTerms(ctx context.Context)
	UpdateIdentifiers(identifiers []core.ThirdPartyIdentifier)
	SelectIdentifier(identifier core.ThirdPartyIdentifier)
}

type CredentialService interface {
	Submit(ctx context.Context, req core.CredentialChangeRequest)
	Cancel()
}

// IdentifierSyncService refreshes the cached identifiers for a user and
// returns the new set.
type IdentifierSyncService interface {
	SyncIdentifiers(ctx context.Context, userID string) ([]core.ThirdPartyIdentifier, error)
}

type LoadDiscoveryCommand struct {
	service DiscoveryService
}

func NewLoadDiscoveryCommand(service DiscoveryService) *LoadDiscoveryCommand {
	return &LoadDiscoveryCommand{service: service}
}

func (c *LoadDiscoveryCommand) Execute(ctx context.Context, _ LoadDiscoveryMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: discovery service is required")
	}
	c.service.Load(ctx)
	return nil
}

type AcceptTermsCommand struct {
	service DiscoveryService
}

func NewAcceptTermsCommand(service DiscoveryService) *AcceptTermsCommand {
	return &AcceptTermsCommand{service: service}
}

func (c *AcceptTermsCommand) Execute(ctx context.Context, _ AcceptTermsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: discovery service is required")
	}
	c.service.AcceptTerms(ctx)
	return nil
}

type UpdateIdentifiersCommand struct {
	service DiscoveryService
}

func NewUpdateIdentifiersCommand(service DiscoveryService) *UpdateIdentifiersCommand {
	return &UpdateIdentifiersCommand{service: service}
}

func (c *UpdateIdentifiersCommand) Execute(_ context.Context, msg UpdateIdentifiersMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: discovery service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	c.service.UpdateIdentifiers(msg.Identifiers)
	return nil
}

type SelectIdentifierCommand struct {
	service DiscoveryService
}

func NewSelectIdentifierCommand(service DiscoveryService) *SelectIdentifierCommand {
	return &SelectIdentifierCommand{service: service}
}

func (c *SelectIdentifierCommand) Execute(_ context.Context, msg SelectIdentifierMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: discovery service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	c.service.SelectIdentifier(msg.Identifier)
	return nil
}

// ChangeCredentialCommand submits without validating: the controller reports
// invalid requests through its completion handler.
type ChangeCredentialCommand struct {
	service CredentialService
}

func NewChangeCredentialCommand(service CredentialService) *ChangeCredentialCommand {
	return &ChangeCredentialCommand{service: service}
}

func (c *ChangeCredentialCommand) Execute(ctx context.Context, msg ChangeCredentialMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	c.service.Submit(ctx, msg.Request)
	return nil
}

type CancelCredentialCommand struct {
	service CredentialService
}

func NewCancelCredentialCommand(service CredentialService) *CancelCredentialCommand {
	return &CancelCredentialCommand{service: service}
}

func (c *CancelCredentialCommand) Execute(_ context.Context, _ CancelCredentialMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	c.service.Cancel()
	return nil
}

type SyncIdentifiersCommand struct {
	service IdentifierSyncService
}

func NewSyncIdentifiersCommand(service IdentifierSyncService) *SyncIdentifiersCommand {
	return &SyncIdentifiersCommand{service: service}
}

func (c *SyncIdentifiersCommand) Execute(ctx context.Context, msg SyncIdentifiersMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: identifier sync service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.SyncIdentifiers(ctx, msg.UserID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
