package query

import "strings"

const (
	TypeDiscoveryState     = "settings.query.discovery.state"
	TypeTermsProgress      = "settings.query.terms.progress"
	TypeListIdentifiers    = "settings.query.identifiers.list"
	TypeCredentialInFlight = "settings.query.credential.in_flight"
)

type DiscoveryStateMessage struct{}

func (DiscoveryStateMessage) Type() string { return TypeDiscoveryState }

func (DiscoveryStateMessage) Validate() error { return nil }

type TermsProgressMessage struct{}

func (TermsProgressMessage) Type() string { return TypeTermsProgress }

func (TermsProgressMessage) Validate() error { return nil }

type ListIdentifiersMessage struct {
	UserID string
}

func (ListIdentifiersMessage) Type() string { return TypeListIdentifiers }

func (m ListIdentifiersMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	return nil
}

type CredentialInFlightMessage struct{}

func (CredentialInFlightMessage) Type() string { return TypeCredentialInFlight }

func (CredentialInFlightMessage) Validate() error { return nil }
