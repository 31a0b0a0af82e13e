package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	identifierStore *IdentifierStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores accepts a *bun.DB or anything exposing DB() *bun.DB, such as a
// go-persistence-bun client.
func (f *RepositoryFactory) BuildStores(persistenceClient any) (*RepositoryFactory, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.identifierStore != nil {
		return f, nil
	}
	identifierStore, err := NewIdentifierStore(f.db)
	if err != nil {
		return nil, err
	}
	f.identifierStore = identifierStore
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) IdentifierStore() *IdentifierStore {
	if f == nil {
		return nil
	}
	return f.identifierStore
}

// CachedIdentifierStore wraps the identifier store with a read-through cache.
// A nil cacheService builds one from the go-repository-cache defaults.
func (f *RepositoryFactory) CachedIdentifierStore(cacheService repositorycache.CacheService) (*CachedIdentifierStore, error) {
	if f == nil || f.identifierStore == nil {
		return nil, fmt.Errorf("sqlstore: identifier store is not built")
	}
	if cacheService == nil {
		service, err := repositorycache.NewCacheService(repositorycache.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("sqlstore: build identifier cache: %w", err)
		}
		cacheService = service
	}
	return NewCachedIdentifierStore(f.identifierStore, cacheService)
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
