package command

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-account-settings/core"
)

const (
	TypeLoadDiscovery     = "settings.command.discovery.load"
	TypeAcceptTerms       = "settings.command.discovery.accept_terms"
	TypeUpdateIdentifiers = "settings.command.discovery.update_identifiers"
	TypeSelectIdentifier  = "settings.command.discovery.select_identifier"
	TypeChangeCredential  = "settings.command.credential.change"
	TypeCancelCredential  = "settings.command.credential.cancel"
	TypeSyncIdentifiers   = "settings.command.identifiers.sync"
)

type LoadDiscoveryMessage struct{}

func (LoadDiscoveryMessage) Type() string { return TypeLoadDiscovery }

func (LoadDiscoveryMessage) Validate() error { return nil }

type AcceptTermsMessage struct{}

func (AcceptTermsMessage) Type() string { return TypeAcceptTerms }

func (AcceptTermsMessage) Validate() error { return nil }

type UpdateIdentifiersMessage struct {
	Identifiers []core.ThirdPartyIdentifier
}

func (UpdateIdentifiersMessage) Type() string { return TypeUpdateIdentifiers }

func (m UpdateIdentifiersMessage) Validate() error {
	for i, identifier := range m.Identifiers {
		if err := validateIdentifier("identifiers["+strconv.Itoa(i)+"]", identifier); err != nil {
			return err
		}
	}
	return nil
}

type SelectIdentifierMessage struct {
	Identifier core.ThirdPartyIdentifier
}

func (SelectIdentifierMessage) Type() string { return TypeSelectIdentifier }

func (m SelectIdentifierMessage) Validate() error {
	return validateIdentifier("identifier", m.Identifier)
}

type ChangeCredentialMessage struct {
	Request core.CredentialChangeRequest
}

func (ChangeCredentialMessage) Type() string { return TypeChangeCredential }

func (m ChangeCredentialMessage) Validate() error {
	return m.Request.Validate()
}

type CancelCredentialMessage struct{}

func (CancelCredentialMessage) Type() string { return TypeCancelCredential }

func (CancelCredentialMessage) Validate() error { return nil }

type SyncIdentifiersMessage struct {
	UserID string
}

func (SyncIdentifiersMessage) Type() string { return TypeSyncIdentifiers }

func (m SyncIdentifiersMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

func validateIdentifier(field string, identifier core.ThirdPartyIdentifier) error {
	if identifier.Medium.Normalize() == "" {
		return commandValidationError(field+".medium", "medium is required")
	}
	if strings.TrimSpace(identifier.Address) == "" {
		return commandValidationError(field+".address", "address is required")
	}
	return nil
}
