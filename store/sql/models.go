package sqlstore

import (
	"time"

	"github.com/goliatone/go-account-settings/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// identifierRecord is one linked third-party identifier cached for a user.
// Position keeps the order the homeserver reported.
type identifierRecord struct {
	bun.BaseModel `bun:"table:settings_identifiers,alias:si"`

	ID        string    `bun:"id,pk"`
	UserID    string    `bun:"user_id,notnull"`
	Medium    string    `bun:"medium,notnull"`
	Address   string    `bun:"address,notnull"`
	Position  int       `bun:"position,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newIdentifierRecord(userID string, position int, identifier core.ThirdPartyIdentifier, now time.Time) *identifierRecord {
	return &identifierRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Medium:    string(identifier.Medium.Normalize()),
		Address:   identifier.Address,
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *identifierRecord) toDomain() core.ThirdPartyIdentifier {
	if r == nil {
		return core.ThirdPartyIdentifier{}
	}
	return core.ThirdPartyIdentifier{
		Medium:  core.Medium(r.Medium),
		Address: r.Address,
	}
}
