// Package core contains the account-settings domain: the discovery view-state
// machine gated by identity-server terms, the single-slot credential change
// controller, and the contracts their collaborators implement. Transport and
// storage adapters depend on this package; core must not depend on them.
package core
