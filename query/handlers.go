package query

import (
	"context"

	"github.com/goliatone/go-account-settings/core"
)

type DiscoveryStateReader interface {
	State(ctx context.Context) (core.ViewState, error)
}

type TermsProgressReader interface {
	TermsAgreementProgress(ctx context.Context) (core.TermsAgreementProgress, error)
}

type CredentialStatusReader interface {
	InFlight(ctx context.Context) (bool, error)
}

type DiscoveryStateQuery struct {
	reader DiscoveryStateReader
}

func NewDiscoveryStateQuery(reader DiscoveryStateReader) *DiscoveryStateQuery {
	return &DiscoveryStateQuery{reader: reader}
}

func (q *DiscoveryStateQuery) Query(ctx context.Context, _ DiscoveryStateMessage) (core.ViewState, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: discovery state reader is required")
	}
	return q.reader.State(ctx)
}

type TermsProgressQuery struct {
	reader TermsProgressReader
}

func NewTermsProgressQuery(reader TermsProgressReader) *TermsProgressQuery {
	return &TermsProgressQuery{reader: reader}
}

func (q *TermsProgressQuery) Query(ctx context.Context, _ TermsProgressMessage) (core.TermsAgreementProgress, error) {
	if q == nil || q.reader == nil {
		return core.TermsAgreementProgress{}, queryDependencyError("query: terms progress reader is required")
	}
	return q.reader.TermsAgreementProgress(ctx)
}

type ListIdentifiersQuery struct {
	reader core.IdentifierSource
}

func NewListIdentifiersQuery(reader core.IdentifierSource) *ListIdentifiersQuery {
	return &ListIdentifiersQuery{reader: reader}
}

func (q *ListIdentifiersQuery) Query(ctx context.Context, msg ListIdentifiersMessage) ([]core.ThirdPartyIdentifier, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: identifier source is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.ListIdentifiers(ctx, msg.UserID)
}

type CredentialInFlightQuery struct {
	reader CredentialStatusReader
}

func NewCredentialInFlightQuery(reader CredentialStatusReader) *CredentialInFlightQuery {
	return &CredentialInFlightQuery{reader: reader}
}

func (q *CredentialInFlightQuery) Query(ctx context.Context, _ CredentialInFlightMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, queryDependencyError("query: credential status reader is required")
	}
	return q.reader.InFlight(ctx)
}
