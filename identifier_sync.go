package settings

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-account-settings/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// IdentifierWriter persists the identifier list fetched for a user.
// sqlstore.IdentifierStore and sqlstore.CachedIdentifierStore implement it.
type IdentifierWriter interface {
	ReplaceIdentifiers(ctx context.Context, userID string, identifiers []ThirdPartyIdentifier) error
}

// IdentifierReceiver is handed the fresh list after a sync, typically a
// DiscoveryController.
type IdentifierReceiver interface {
	UpdateIdentifiers(identifiers []ThirdPartyIdentifier)
}

type IdentifierSyncOption func(*IdentifierSync)

func WithSyncStore(store IdentifierWriter) IdentifierSyncOption {
	return func(s *IdentifierSync) {
		s.store = store
	}
}

func WithSyncReceiver(receiver IdentifierReceiver) IdentifierSyncOption {
	return func(s *IdentifierSync) {
		s.receiver = receiver
	}
}

func WithSyncLogger(logger core.Logger) IdentifierSyncOption {
	return func(s *IdentifierSync) {
		s.logger = logger
	}
}

// IdentifierSync pulls the linked identifiers from the homeserver, stores
// them and pushes them to the receiver, in that order. A store failure stops
// the sync before the receiver sees the list.
type IdentifierSync struct {
	remote   IdentifierSource
	store    IdentifierWriter
	receiver IdentifierReceiver
	logger   core.Logger
}

func NewIdentifierSync(remote IdentifierSource, opts ...IdentifierSyncOption) (*IdentifierSync, error) {
	if remote == nil {
		return nil, goerrors.New("settings: remote identifier source is required", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.SettingsErrorInternal)
	}
	s := &IdentifierSync{remote: remote}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = glog.Ensure(s.logger)
	return s, nil
}

func (s *IdentifierSync) SyncIdentifiers(ctx context.Context, userID string) ([]ThirdPartyIdentifier, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, goerrors.NewValidation("settings: validation failed", goerrors.FieldError{
			Field:   "user_id",
			Message: "user id is required",
		}).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.SettingsErrorBadInput)
	}

	identifiers, err := s.remote.ListIdentifiers(ctx, userID)
	if err != nil {
		s.logger.WithContext(ctx).Warn("identifier sync fetch failed", "user_id", userID, "error", err)
		return nil, err
	}
	if s.store != nil {
		if err := s.store.ReplaceIdentifiers(ctx, userID, identifiers); err != nil {
			s.logger.WithContext(ctx).Error("identifier sync store failed", "user_id", userID, "error", err)
			return nil, err
		}
	}
	if s.receiver != nil {
		s.receiver.UpdateIdentifiers(identifiers)
	}
	s.logger.WithContext(ctx).Info("identifiers synced", "user_id", userID, "count", len(identifiers))
	return identifiers, nil
}
