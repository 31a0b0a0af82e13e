package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-account-settings/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubIdentifierRepository struct {
	mu           sync.Mutex
	identifiers  []core.ThirdPartyIdentifier
	listCalls    int
	replaceCalls int
	listErr      error
}

func (s *stubIdentifierRepository) ListIdentifiers(_ context.Context, _ string) ([]core.ThirdPartyIdentifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]core.ThirdPartyIdentifier(nil), s.identifiers...), nil
}

func (s *stubIdentifierRepository) ReplaceIdentifiers(_ context.Context, _ string, identifiers []core.ThirdPartyIdentifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	s.identifiers = append([]core.ThirdPartyIdentifier(nil), identifiers...)
	return nil
}

func TestCachedIdentifierStore_MissFetchThenHit(t *testing.T) {
	base := &stubIdentifierRepository{identifiers: []core.ThirdPartyIdentifier{
		{Medium: core.MediumEmail, Address: "alice@example.org"},
	}}
	store, err := NewCachedIdentifierStore(base, newTestIdentifierCacheService(t))
	if err != nil {
		t.Fatalf("new cached identifier store: %v", err)
	}

	for range 2 {
		got, err := store.ListIdentifiers(context.Background(), "@alice:example.org")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected one identifier, got %v", got)
		}
	}
	if base.listCalls != 1 {
		t.Fatalf("expected second list to be a cache hit, base list calls=%d", base.listCalls)
	}
}

func TestCachedIdentifierStore_ReplaceInvalidatesUser(t *testing.T) {
	base := &stubIdentifierRepository{identifiers: []core.ThirdPartyIdentifier{
		{Medium: core.MediumEmail, Address: "alice@example.org"},
	}}
	store, err := NewCachedIdentifierStore(base, newTestIdentifierCacheService(t))
	if err != nil {
		t.Fatalf("new cached identifier store: %v", err)
	}
	ctx := context.Background()

	if _, err := store.ListIdentifiers(ctx, "@alice:example.org"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := store.ReplaceIdentifiers(ctx, "@alice:example.org", []core.ThirdPartyIdentifier{
		{Medium: core.MediumPhone, Address: "15550100"},
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := store.ListIdentifiers(ctx, "@alice:example.org")
	if err != nil {
		t.Fatalf("list after replace: %v", err)
	}
	if base.listCalls != 2 {
		t.Fatalf("expected replace to force a second base read, got %d", base.listCalls)
	}
	if len(got) != 1 || got[0].Medium != core.MediumPhone {
		t.Fatalf("expected refreshed identifiers, got %v", got)
	}
}

func TestCachedIdentifierStore_PropagatesBaseErrors(t *testing.T) {
	sentinel := errors.New("database unavailable")
	store, err := NewCachedIdentifierStore(&stubIdentifierRepository{listErr: sentinel}, newTestIdentifierCacheService(t))
	if err != nil {
		t.Fatalf("new cached identifier store: %v", err)
	}
	if _, err := store.ListIdentifiers(context.Background(), "@alice:example.org"); !errors.Is(err, sentinel) {
		t.Fatalf("expected base error propagation, got %v", err)
	}
}

func TestIdentifierCacheKey_Contract(t *testing.T) {
	key, err := IdentifierCacheKey(" @alice/ops:example.org ")
	if err != nil {
		t.Fatalf("build cache key: %v", err)
	}
	const expected = "go-account-settings::identifiers::v1::@alice%2Fops:example.org"
	if key != expected {
		t.Fatalf("unexpected cache key: got %q want %q", key, expected)
	}
	if _, err := IdentifierCacheKey(""); err == nil {
		t.Fatalf("expected empty user id to be rejected")
	}
}

func TestNewCachedIdentifierStore_RequiresDependencies(t *testing.T) {
	if _, err := NewCachedIdentifierStore(nil, newTestIdentifierCacheService(t)); err == nil {
		t.Fatalf("expected base store to be required")
	}
	if _, err := NewCachedIdentifierStore(&stubIdentifierRepository{}, nil); err == nil {
		t.Fatalf("expected cache service to be required")
	}
}

func newTestIdentifierCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
