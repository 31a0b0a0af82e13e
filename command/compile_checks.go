package command

import (
	"github.com/goliatone/go-account-settings/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[LoadDiscoveryMessage]     = (*LoadDiscoveryCommand)(nil)
	_ gocmd.Commander[AcceptTermsMessage]       = (*AcceptTermsCommand)(nil)
	_ gocmd.Commander[UpdateIdentifiersMessage] = (*UpdateIdentifiersCommand)(nil)
	_ gocmd.Commander[SelectIdentifierMessage]  = (*SelectIdentifierCommand)(nil)
	_ gocmd.Commander[ChangeCredentialMessage]  = (*ChangeCredentialCommand)(nil)
	_ gocmd.Commander[CancelCredentialMessage]  = (*CancelCredentialCommand)(nil)
	_ gocmd.Commander[SyncIdentifiersMessage]   = (*SyncIdentifiersCommand)(nil)

	_ DiscoveryService  = (*core.DiscoveryController)(nil)
	_ CredentialService = (*core.ChangeCredentialController)(nil)
)
