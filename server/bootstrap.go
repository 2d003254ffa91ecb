package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/coleapp/session-service/tenants"
	"github.com/coleapp/session-service/users"
	"github.com/pkg/errors"
)

const (
	DefaultAdminUsername = "admin"
	bootstrapPasswordLen = 18
	defaultTenantName    = "Default School"
)

// InitialiseSystem provisions the default tenant and its admin account.
// Returns the generated admin password on first creation (empty string if
// the account already exists).
func (s *Server) InitialiseSystem(ctx context.Context) (generatedPassword string, err error) {
	s.logger.Info().Msg("bootstrap: checking system configuration")

	tenant, err := s.initialiseDefaultTenant(ctx)
	if err != nil {
		return "", errors.Wrap(err, "[InitialiseSystem] default tenant")
	}

	adminEmail := fmt.Sprintf("%s@%s", DefaultAdminUsername, adminDomain(tenant))
	generatedPassword, err = s.bootstrapAdmin(ctx, tenant.ID, adminEmail)
	if err != nil {
		return "", errors.Wrap(err, "[InitialiseSystem] admin user")
	}

	if generatedPassword != "" {
		s.logger.Info().
			Str("tenant", tenant.ID).
			Str("email", adminEmail).
			Str("password", generatedPassword).
			Msg("bootstrap complete - save this password, it will not be displayed again")
	} else {
		s.logger.Info().Str("tenant", tenant.ID).Msg("bootstrap: system already configured")
	}

	return generatedPassword, nil
}

func (s *Server) initialiseDefaultTenant(_ context.Context) (*tenants.Tenant, error) {
	tenantID := s.config.GetDefaultTenantID()

	if existing, err := s.repos.Tenants.Get(tenantID); err == nil {
		return existing, nil
	}

	tenant := tenants.New(tenantID, defaultTenantName, tenantID+".coleapp.local")
	if err := s.repos.Tenants.Upsert(tenant); err != nil {
		return nil, errors.Wrap(err, "[initialiseDefaultTenant] Upsert")
	}
	s.logger.Info().Str("tenant", tenant.ID).Str("schema", tenant.SchemaName).Msg("bootstrap: created default tenant")
	return tenant, nil
}

func (s *Server) bootstrapAdmin(_ context.Context, tenantID, email string) (string, error) {
	if _, err := s.repos.Users.GetByEmail(email); err == nil {
		return "", nil
	}

	password, err := generatePassword()
	if err != nil {
		return "", errors.Wrap(err, "[bootstrapAdmin] generatePassword")
	}
	hash, err := users.HashPassword(password)
	if err != nil {
		return "", errors.Wrap(err, "[bootstrapAdmin] HashPassword")
	}

	admin := &users.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "System",
		LastName:     "Administrator",
		Role:         users.RoleAdmin,
		TenantID:     tenantID,
	}
	if err := s.repos.Users.Upsert(admin); err != nil {
		return "", errors.Wrap(err, "[bootstrapAdmin] Upsert")
	}
	return password, nil
}

func adminDomain(tenant *tenants.Tenant) string {
	if tenant.Domain != "" {
		return tenant.Domain
	}
	return "coleapp.local"
}

// generatePassword produces a random password that satisfies the platform
// strength rules.
func generatePassword() (string, error) {
	raw := make([]byte, bootstrapPasswordLen)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	// Guarantee the character classes ValidatePasswordStrength requires.
	encoded = "Aa1" + strings.TrimRight(encoded, "-_")
	return encoded, nil
}
