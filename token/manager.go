// Package token issues and verifies the backend's bearer tokens. Tokens are
// HS256 JWTs signed with the shared JWT_SECRET; there is no per-tenant key
// material, the tenant travels as a claim.
package token

import (
	"time"

	"github.com/coleapp/session-service/autherrors"
	"github.com/coleapp/session-service/users"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultExpiry applies when JWT_EXPIRES_IN is not configured.
const DefaultExpiry = 7 * 24 * time.Hour

// Claims are the verified contents of an access token.
type Claims struct {
	UserID   string
	Email    string
	Role     users.RoleType
	TenantID string
	IssuedAt time.Time
	Expiry   time.Time
	TokenID  string
}

type Manager struct {
	secret  []byte
	issuer  string
	expiry  time.Duration
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

// WithExpiry sets how long issued tokens remain valid.
func WithExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		if expiry > 0 {
			m.expiry = expiry
		}
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func New(secret string, options ...ManagerOption) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("[token.New] signing secret is required")
	}
	m := &Manager{
		secret:  []byte(secret),
		issuer:  "coleapp",
		expiry:  DefaultExpiry,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Issue creates a signed access token for the user scoped to tenantID.
func (m *Manager) Issue(user *users.User, tenantID string) (string, error) {
	now := m.nowFunc()
	claims := jwt.MapClaims{
		"iss":    m.issuer,
		"sub":    user.ID,
		"email":  user.Email,
		"role":   string(user.Role),
		"tenant": tenantID,
		"iat":    now.Unix(),
		"exp":    now.Add(m.expiry).Unix(),
		"jti":    uuid.New().String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.Issue] failed to sign token")
	}
	return signed, nil
}

// Verify parses and validates a raw token. Expired, malformed, or badly
// signed tokens all surface as Unauthenticated: callers treat them as a
// stale session, not as distinct failures.
func (m *Manager) Verify(raw string) (*Claims, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.nowFunc), jwt.WithIssuer(m.issuer))
	if err != nil {
		return nil, autherrors.Wrap(autherrors.KindUnauthenticated, "session expired, please sign in again", err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, autherrors.New(autherrors.KindUnauthenticated, "session expired, please sign in again")
	}

	claims := &Claims{
		UserID:   stringClaim(mapClaims, "sub"),
		Email:    stringClaim(mapClaims, "email"),
		Role:     users.RoleType(stringClaim(mapClaims, "role")),
		TenantID: stringClaim(mapClaims, "tenant"),
		TokenID:  stringClaim(mapClaims, "jti"),
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.Expiry = exp.Time
	}
	return claims, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
