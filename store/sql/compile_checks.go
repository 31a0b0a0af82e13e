package sqlstore

import "github.com/goliatone/go-account-settings/core"

var (
	_ core.IdentifierSource = (*IdentifierStore)(nil)
	_ core.IdentifierSource = (*CachedIdentifierStore)(nil)
	_ IdentifierRepository  = (*IdentifierStore)(nil)
	_ IdentifierRepository  = (*CachedIdentifierStore)(nil)
)
