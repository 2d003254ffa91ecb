// Package accounts implements the backend session operations: credential
// login, registration, and token re-validation. It sits between the HTTP
// layer and the repositories, and owns the tenant-resolution rules.
package accounts

import (
	"strings"
	"time"

	"github.com/coleapp/session-service/autherrors"
	"github.com/coleapp/session-service/tenants"
	"github.com/coleapp/session-service/token"
	"github.com/coleapp/session-service/users"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Repos holds all repository dependencies for the Service
type Repos struct {
	Users   users.UserRepo
	Tenants tenants.Repo
}

// Service provides the login/register/whoAmI operations backing the
// session API.
type Service struct {
	repos           Repos
	tokens          *token.Manager
	validate        *validator.Validate
	multiTenant     bool
	defaultTenantID string
	nowTime         func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithMultiTenant enables per-request tenant resolution against the tenant
// repository. When disabled every request maps to the default tenant.
func WithMultiTenant(enabled bool) ServiceOption {
	return func(s *Service) {
		s.multiTenant = enabled
	}
}

// WithDefaultTenantID sets the tenant used when a request carries none.
func WithDefaultTenantID(tenantID string) ServiceOption {
	return func(s *Service) {
		if tenantID != "" {
			s.defaultTenantID = tenantID
		}
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(repos Repos, tokens *token.Manager, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if repos.Tenants == nil {
		return nil, errors.New("[NewService] Tenants repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}

	s := &Service{
		repos:           repos,
		tokens:          tokens,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		defaultTenantID: "default",
		nowTime:         time.Now,
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// LoginResult is the payload returned by Login and Register.
type LoginResult struct {
	AccessToken string
	User        users.Summary
}

// Login checks the credentials within a tenant and issues an access token.
// All credential failures collapse into one InvalidCredentials message so
// the endpoint does not leak which accounts exist.
func (s *Service) Login(email, password, tenantID string) (*LoginResult, error) {
	tenantID, err := s.ResolveTenant(tenantID)
	if err != nil {
		return nil, err
	}

	user, err := s.repos.Users.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, autherrors.New(autherrors.KindInvalidCredentials, "invalid email or password")
	}

	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, autherrors.New(autherrors.KindInvalidCredentials, "invalid email or password")
	}

	if user.Blocked {
		return nil, autherrors.New(autherrors.KindInvalidCredentials, "this account has been blocked")
	}

	if s.multiTenant && !user.HasTenant(tenantID) {
		return nil, autherrors.New(autherrors.KindInvalidCredentials, "invalid email or password")
	}

	accessToken, err := s.tokens.Issue(user, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] tokens.Issue")
	}

	if err := s.repos.Users.SetLastLogin(user.Email); err != nil {
		return nil, errors.Wrap(err, "[Service.Login] SetLastLogin")
	}

	summary := user.Summary()
	summary.TenantID = tenantID
	return &LoginResult{AccessToken: accessToken, User: summary}, nil
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Role      string `json:"role" validate:"required"`
	TenantID  string `json:"tenantId"`
}

// Register creates a new account and issues its first access token.
func (s *Service) Register(input RegisterInput) (*LoginResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}

	if !users.ValidRole(users.RoleType(input.Role)) {
		return nil, autherrors.New(autherrors.KindValidationFailed, "role must be one of admin, teacher, student, parent, staff")
	}

	if err := users.ValidatePasswordStrength(input.Password); err != nil {
		return nil, autherrors.Wrap(autherrors.KindValidationFailed, err.Error(), err)
	}

	tenantID, err := s.ResolveTenant(input.TenantID)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := s.repos.Users.GetByEmail(email); err == nil {
		return nil, autherrors.New(autherrors.KindValidationFailed, "an account with this email already exists")
	}

	hash, err := users.HashPassword(input.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] HashPassword")
	}

	user := &users.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         users.RoleType(input.Role),
		TenantID:     tenantID,
		DateJoined:   s.nowTime(),
	}
	if err := s.repos.Users.Upsert(user); err != nil {
		return nil, errors.Wrap(err, "[Service.Register] Upsert")
	}

	accessToken, err := s.tokens.Issue(user, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register] tokens.Issue")
	}

	return &LoginResult{AccessToken: accessToken, User: user.Summary()}, nil
}

// WhoAmI re-validates a bearer token and returns the current user snapshot.
func (s *Service) WhoAmI(rawToken string) (users.Summary, error) {
	claims, err := s.tokens.Verify(rawToken)
	if err != nil {
		return users.Summary{}, err
	}

	user, err := s.repos.Users.GetByID(claims.UserID)
	if err != nil {
		return users.Summary{}, autherrors.New(autherrors.KindUnauthenticated, "session expired, please sign in again")
	}
	if user.Blocked {
		return users.Summary{}, autherrors.New(autherrors.KindUnauthenticated, "this account has been blocked")
	}

	summary := user.Summary()
	summary.TenantID = claims.TenantID
	return summary, nil
}

// ResolveTenant maps a requested tenant ID to the effective one. With
// multi-tenancy off everything lands on the default tenant; with it on the
// tenant must exist.
func (s *Service) ResolveTenant(requested string) (string, error) {
	if !s.multiTenant {
		return s.defaultTenantID, nil
	}
	tenantID := requested
	if tenantID == "" {
		tenantID = s.defaultTenantID
	}
	if _, err := s.repos.Tenants.Get(tenantID); err != nil {
		return "", autherrors.New(autherrors.KindValidationFailed, "unknown school identifier")
	}
	return tenantID, nil
}

// validationError converts validator output into a single user-facing
// message naming the first offending field.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		first := ve[0]
		switch first.Tag() {
		case "required":
			return autherrors.Wrap(autherrors.KindValidationFailed, strings.ToLower(first.Field())+" is required", err)
		case "email":
			return autherrors.Wrap(autherrors.KindValidationFailed, "email address is not valid", err)
		default:
			return autherrors.Wrap(autherrors.KindValidationFailed, strings.ToLower(first.Field())+" is invalid", err)
		}
	}
	return autherrors.Wrap(autherrors.KindValidationFailed, "registration details are invalid", err)
}
