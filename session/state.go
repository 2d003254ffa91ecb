package session

import "github.com/coleapp/session-service/users"

// State is the controller's position in its lifecycle. It starts Unknown
// while the persisted session is being restored, then settles into
// Authenticated or Anonymous.
type State int

const (
	StateUnknown State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Snapshot is the observable value UI layers render from. User is nil
// unless State is Authenticated.
type Snapshot struct {
	State    State
	Loading  bool
	User     *users.Summary
	TenantID string
	Err      string // Last auth error display message, "" when none
}
