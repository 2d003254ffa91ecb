package users

import (
	"fmt"
	"time"

	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType represents a user's role within a school tenant
type RoleType string

const (
	RoleAdmin   RoleType = "admin"   // School administrator, manages the tenant
	RoleTeacher RoleType = "teacher" // Teaching staff
	RoleStudent RoleType = "student" // Enrolled student
	RoleParent  RoleType = "parent"  // Parent or legal guardian
	RoleStaff   RoleType = "staff"   // Non-teaching staff
)

// KnownRoles lists every role the platform accepts on registration.
var KnownRoles = []RoleType{RoleAdmin, RoleTeacher, RoleStudent, RoleParent, RoleStaff}

// ValidRole reports whether role is one of the platform roles.
func ValidRole(role RoleType) bool {
	for _, r := range KnownRoles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID                 string    `json:"id,omitempty"`                   // Unique identifier for the user
	Email              string    `json:"email,omitempty"`                // User's email address
	PasswordHash       string    `json:"-"`                              // Hashed version of the user's password - never serialize
	FirstName          string    `json:"first_name,omitempty"`           // First name of the user
	LastName           string    `json:"last_name,omitempty"`            // Last name of the user
	Role               RoleType  `json:"role,omitempty"`                 // Role within the school
	TenantID           string    `json:"tenant_id,omitempty"`            // School tenant the user belongs to
	ExternalIdentityID string    `json:"external_identity_id,omitempty"` // Subject ID at the external identity provider, if linked
	DateJoined         time.Time `json:"date_joined,omitempty"`          // Date and time when the user registered
	LastLogin          time.Time `json:"last_login,omitempty"`           // Last time the user logged in
	Blocked            bool      `json:"blocked,omitempty"`              // Blocked, has the user been blocked from logging in
}

// Summary is the immutable snapshot of a user cached alongside an access
// token. It is what the session controller exposes to UI layers and what
// the backend returns from login/register/me.
type Summary struct {
	ID                 string   `json:"id"`
	Email              string   `json:"email"`
	FirstName          string   `json:"firstName,omitempty"`
	LastName           string   `json:"lastName,omitempty"`
	Role               RoleType `json:"role"`
	TenantID           string   `json:"tenantId,omitempty"`
	ExternalIdentityID string   `json:"externalIdentityId,omitempty"`
}

// Summary returns the cacheable snapshot of the user.
func (u *User) Summary() Summary {
	return Summary{
		ID:                 u.ID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Role:               u.Role,
		TenantID:           u.TenantID,
		ExternalIdentityID: u.ExternalIdentityID,
	}
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// HasTenant reports whether the user belongs to the given tenant. An empty
// tenantID matches any user.
func (u *User) HasTenant(tenantID string) bool {
	if tenantID == "" {
		return true
	}
	return u.TenantID == tenantID
}
