// Package identity defines the optional external identity provider the
// session controller can sit on top of. The provider is a capability: the
// controller always holds one, and the disabled variant is a well-behaved
// no-op, so no call site ever checks for nil or "is this configured".
package identity

import "context"

// State is what a provider emits to subscribers. When the provider is the
// source of truth for "is anyone logged in", SignedIn drives the session
// controller's initial transition.
type State struct {
	SignedIn      bool
	IdentityToken string // Provider-issued token for the current identity, "" when signed out
	Subject       string // Provider-side identity ID, "" when signed out
	Email         string
}

// Provider is the external identity service capability.
type Provider interface {
	// Enabled reports whether a real provider is configured. The session
	// controller uses this once, at mount, to choose its restore path.
	Enabled() bool

	// SignIn authenticates with the provider and returns its identity
	// token. The disabled variant returns an empty token and no error.
	SignIn(ctx context.Context, email, password string) (identityToken string, err error)

	// SignOut terminates the provider-side session.
	SignOut(ctx context.Context) error

	// ResetPassword triggers the provider's password-reset flow. The
	// disabled variant succeeds without doing anything.
	ResetPassword(ctx context.Context, email string) error

	// Subscribe registers a callback for identity-state changes. An
	// enabled provider emits its current state to a new subscriber
	// immediately. The returned function cancels the subscription.
	Subscribe(fn func(State)) (cancel func())
}

type disabled struct{}

// Disabled returns the no-op provider variant.
func Disabled() Provider { return disabled{} }

func (disabled) Enabled() bool { return false }

func (disabled) SignIn(context.Context, string, string) (string, error) { return "", nil }

func (disabled) SignOut(context.Context) error { return nil }

func (disabled) ResetPassword(context.Context, string) error { return nil }

func (disabled) Subscribe(func(State)) func() { return func() {} }
