// Package tokenstore is the persistence boundary for the client session:
// a bearer token, the cached user snapshot, and the active tenant. It does
// no validation; callers decide what the stored values mean.
package tokenstore

import "github.com/coleapp/session-service/users"

// Session is the persisted state as a unit. Token and User are always
// written and cleared together.
type Session struct {
	AccessToken string
	User        users.Summary
	TenantID    string
}

type Store interface {
	// Get loads the persisted session. ok is false when nothing (or
	// nothing readable) is stored; corrupt data is treated as absent.
	Get() (session Session, ok bool, err error)

	// Set persists token, user, and tenant atomically.
	Set(accessToken string, user users.Summary, tenantID string) error

	// SetTenantID overwrites only the active tenant, keeping any stored
	// token and user.
	SetTenantID(tenantID string) error

	// Clear removes the persisted session. Clearing an empty store is a
	// no-op.
	Clear() error
}
