package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-account-settings/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// IdentifierStore caches the identifiers linked to each account so the
// discovery screen can render before the homeserver answers.
type IdentifierStore struct {
	db   *bun.DB
	repo repository.Repository[*identifierRecord]
}

func NewIdentifierStore(db *bun.DB) (*IdentifierStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*identifierRecord](db, identifierHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid identifier repository wiring: %w", err)
		}
	}
	return &IdentifierStore{db: db, repo: repo}, nil
}

// ListIdentifiers returns the cached identifiers for userID in the order they
// were saved. An unknown user has no identifiers.
func (s *IdentifierStore) ListIdentifiers(ctx context.Context, userID string) ([]core.ThirdPartyIdentifier, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: identifier store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("sqlstore: user id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", userID),
		repository.OrderBy("position ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.ThirdPartyIdentifier, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

// ReplaceIdentifiers swaps the cached set for userID in one transaction.
// Duplicate medium/address pairs keep their first position.
func (s *IdentifierStore) ReplaceIdentifiers(ctx context.Context, userID string, identifiers []core.ThirdPartyIdentifier) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: identifier store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("sqlstore: user id is required")
	}
	normalized, err := normalizeIdentifiers(identifiers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*identifierRecord)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return err
		}
		for position, identifier := range normalized {
			if _, err := s.repo.CreateTx(ctx, tx, newIdentifierRecord(userID, position, identifier, now)); err != nil {
				return err
			}
		}
		return nil
	})
}

func normalizeIdentifiers(identifiers []core.ThirdPartyIdentifier) ([]core.ThirdPartyIdentifier, error) {
	seen := make(map[string]struct{}, len(identifiers))
	out := make([]core.ThirdPartyIdentifier, 0, len(identifiers))
	for _, identifier := range identifiers {
		identifier.Medium = identifier.Medium.Normalize()
		identifier.Address = strings.TrimSpace(identifier.Address)
		if identifier.Medium == "" || identifier.Address == "" {
			return nil, fmt.Errorf("sqlstore: identifier medium and address are required")
		}
		key := identifier.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, identifier)
	}
	return out, nil
}
