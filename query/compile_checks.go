package query

import (
	"github.com/goliatone/go-account-settings/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[DiscoveryStateMessage, core.ViewState]               = (*DiscoveryStateQuery)(nil)
	_ gocmd.Querier[TermsProgressMessage, core.TermsAgreementProgress]   = (*TermsProgressQuery)(nil)
	_ gocmd.Querier[ListIdentifiersMessage, []core.ThirdPartyIdentifier] = (*ListIdentifiersQuery)(nil)
	_ gocmd.Querier[CredentialInFlightMessage, bool]                     = (*CredentialInFlightQuery)(nil)

	_ DiscoveryStateReader   = (*core.DiscoveryController)(nil)
	_ CredentialStatusReader = (*core.ChangeCredentialController)(nil)
	_ TermsProgressReader    = core.IdentityService(nil)
)
