package core

import (
	"fmt"
	"strings"
)

// Medium is the category of a third-party identifier. Values follow the Matrix
// client-server API ("email", "msisdn").
type Medium string

const (
	MediumEmail Medium = "email"
	MediumPhone Medium = "msisdn"
)

func (m Medium) Normalize() Medium {
	return Medium(strings.ToLower(strings.TrimSpace(string(m))))
}

// ThirdPartyIdentifier is a contact identifier linked to the account.
type ThirdPartyIdentifier struct {
	Medium  Medium `json:"medium"`
	Address string `json:"address"`
}

func (id ThirdPartyIdentifier) String() string {
	return string(id.Medium) + ":" + id.Address
}

// TermsAgreementProgress reports how many of the identity server's required
// policies the user has accepted.
type TermsAgreementProgress struct {
	Agreed int
	Total  int
}

// Complete reports whether the terms gate is satisfied. A server that requires
// no policies is always complete.
func (p TermsAgreementProgress) Complete() bool {
	return p.Total == 0 || p.Agreed == p.Total
}

type CredentialChangeRequest struct {
	OldSecret               string
	NewSecret               string
	InvalidateOtherSessions bool
}

func (r CredentialChangeRequest) Validate() error {
	if r.OldSecret == "" {
		return validationError("old_secret", "current password is required")
	}
	if r.NewSecret == "" {
		return validationError("new_secret", "new password is required")
	}
	return nil
}

// String never includes the secrets.
func (r CredentialChangeRequest) String() string {
	return fmt.Sprintf("CredentialChangeRequest{InvalidateOtherSessions:%t}", r.InvalidateOtherSessions)
}

type DisplayModeKind string

const (
	DisplayModeNoIdentityService   DisplayModeKind = "no_identity_service"
	DisplayModeTermsNotSigned      DisplayModeKind = "terms_not_signed"
	DisplayModeNoIdentifiersLinked DisplayModeKind = "no_identifiers_linked"
	DisplayModeIdentifiersLinked   DisplayModeKind = "identifiers_linked"
)

// DisplayMode is what the discovery screen renders once loaded. The variant set
// is closed: ModeNoIdentityService, ModeTermsNotSigned, ModeNoIdentifiersLinked
// and ModeIdentifiersLinked.
type DisplayMode interface {
	Kind() DisplayModeKind
	displayMode()
}

type ModeNoIdentityService struct{}

type ModeTermsNotSigned struct {
	Host string
}

type ModeNoIdentifiersLinked struct{}

type ModeIdentifiersLinked struct {
	Emails       []ThirdPartyIdentifier
	PhoneNumbers []ThirdPartyIdentifier
}

func (ModeNoIdentityService) Kind() DisplayModeKind   { return DisplayModeNoIdentityService }
func (ModeTermsNotSigned) Kind() DisplayModeKind      { return DisplayModeTermsNotSigned }
func (ModeNoIdentifiersLinked) Kind() DisplayModeKind { return DisplayModeNoIdentifiersLinked }
func (ModeIdentifiersLinked) Kind() DisplayModeKind   { return DisplayModeIdentifiersLinked }

func (ModeNoIdentityService) displayMode()   {}
func (ModeTermsNotSigned) displayMode()      {}
func (ModeNoIdentifiersLinked) displayMode() {}
func (ModeIdentifiersLinked) displayMode()   {}

// DeriveDisplayMode partitions identifiers by medium, keeping input order
// inside each partition. Media other than email and msisdn are ignored.
func DeriveDisplayMode(identifiers []ThirdPartyIdentifier) DisplayMode {
	var emails, phones []ThirdPartyIdentifier
	for _, identifier := range identifiers {
		switch identifier.Medium.Normalize() {
		case MediumEmail:
			emails = append(emails, identifier)
		case MediumPhone:
			phones = append(phones, identifier)
		}
	}
	if len(emails) == 0 && len(phones) == 0 {
		return ModeNoIdentifiersLinked{}
	}
	return ModeIdentifiersLinked{Emails: emails, PhoneNumbers: phones}
}

type ViewStateKind string

const (
	ViewStateIdle    ViewStateKind = "idle"
	ViewStateLoading ViewStateKind = "loading"
	ViewStateLoaded  ViewStateKind = "loaded"
	ViewStateFailed  ViewStateKind = "failed"
)

// ViewState is the discovery controller lifecycle. Exactly one variant is
// current: StateIdle, StateLoading, StateLoaded or StateFailed.
type ViewState interface {
	Kind() ViewStateKind
	viewState()
}

type StateIdle struct{}

type StateLoading struct{}

type StateLoaded struct {
	Mode DisplayMode
}

type StateFailed struct {
	Err error
}

func (StateIdle) Kind() ViewStateKind    { return ViewStateIdle }
func (StateLoading) Kind() ViewStateKind { return ViewStateLoading }
func (StateLoaded) Kind() ViewStateKind  { return ViewStateLoaded }
func (StateFailed) Kind() ViewStateKind  { return ViewStateFailed }

func (StateIdle) viewState()    {}
func (StateLoading) viewState() {}
func (StateLoaded) viewState()  {}
func (StateFailed) viewState()  {}

// DescribeViewState renders a state for logs, e.g. "loaded(terms_not_signed)".
func DescribeViewState(state ViewState) string {
	switch typed := state.(type) {
	case nil:
		return "<nil>"
	case StateLoaded:
		if typed.Mode == nil {
			return string(ViewStateLoaded)
		}
		return string(ViewStateLoaded) + "(" + string(typed.Mode.Kind()) + ")"
	default:
		return string(state.Kind())
	}
}

func cloneIdentifiers(identifiers []ThirdPartyIdentifier) []ThirdPartyIdentifier {
	if identifiers == nil {
		return nil
	}
	return append([]ThirdPartyIdentifier(nil), identifiers...)
}
