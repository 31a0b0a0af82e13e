package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-account-settings/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const identifierCacheKeyPrefix = "go-account-settings::identifiers::v1"

// IdentifierRepository is the read/write surface shared by IdentifierStore
// and its cached wrapper.
type IdentifierRepository interface {
	core.IdentifierSource
	ReplaceIdentifiers(ctx context.Context, userID string, identifiers []core.ThirdPartyIdentifier) error
}

type CachedIdentifierStore struct {
	base  IdentifierRepository
	cache repositorycache.CacheService
}

func NewCachedIdentifierStore(
	base IdentifierRepository,
	cacheService repositorycache.CacheService,
) (*CachedIdentifierStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base identifier store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: identifier cache service is required")
	}
	return &CachedIdentifierStore{base: base, cache: cacheService}, nil
}

// IdentifierCacheKey returns go-account-settings::identifiers::v1::<user_id>
// with the user id URL-path escaped.
func IdentifierCacheKey(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("sqlstore: user id is required")
	}
	return identifierCacheKeyPrefix + "::" + url.PathEscape(userID), nil
}

func (s *CachedIdentifierStore) ListIdentifiers(ctx context.Context, userID string) ([]core.ThirdPartyIdentifier, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached identifier store is not configured")
	}
	cacheKey, err := IdentifierCacheKey(userID)
	if err != nil {
		return nil, err
	}
	identifiers, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]core.ThirdPartyIdentifier, error) {
		return s.base.ListIdentifiers(ctx, strings.TrimSpace(userID))
	})
	if err != nil {
		return nil, err
	}
	return append([]core.ThirdPartyIdentifier(nil), identifiers...), nil
}

func (s *CachedIdentifierStore) ReplaceIdentifiers(ctx context.Context, userID string, identifiers []core.ThirdPartyIdentifier) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached identifier store is not configured")
	}
	cacheKey, err := IdentifierCacheKey(userID)
	if err != nil {
		return err
	}
	if err := s.base.ReplaceIdentifiers(ctx, userID, identifiers); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
