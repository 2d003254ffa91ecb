// Package sessionapi is the client for the backend session endpoint. It is
// the only place where transport and GraphQL failures are inspected;
// everything it returns is a tagged autherrors value with a display
// message already attached.
package sessionapi

import (
	"context"

	"github.com/coleapp/session-service/users"
)

// Result is the payload of a successful login or registration.
type Result struct {
	AccessToken string
	User        users.Summary
}

// RegisterInput mirrors the backend registration fields.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	TenantID  string `json:"tenantId,omitempty"`
}

// Service is the backend session API surface the controller depends on.
// tenantID may be empty; the client then sends its configured default.
type Service interface {
	Login(ctx context.Context, email, password, tenantID string) (*Result, error)
	Register(ctx context.Context, input RegisterInput) (*Result, error)
	WhoAmI(ctx context.Context, accessToken, tenantID string) (users.Summary, error)
}
