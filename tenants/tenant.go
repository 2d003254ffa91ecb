package tenants

import (
	"strings"
	"time"
)

// Tenant represents a school sharing the backend deployment. Every request
// carries a tenant ID; data isolation is per-tenant schema in the database.
type Tenant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Domain     string    `json:"domain"`
	SchemaName string    `json:"schema_name"` // Database schema holding this tenant's tables
	CreatedAt  time.Time `json:"created_at"`
}

// New creates a tenant with its schema name derived from the ID.
func New(id, name, domain string) *Tenant {
	return &Tenant{
		ID:         id,
		Name:       name,
		Domain:     domain,
		SchemaName: SchemaNameFor(id),
		CreatedAt:  time.Now(),
	}
}

// SchemaNameFor derives a schema identifier from a tenant ID. Characters
// outside [a-z0-9] fold to underscores so the result is always a valid
// unquoted SQL identifier.
func SchemaNameFor(tenantID string) string {
	var b strings.Builder
	b.WriteString("tenant_")
	for _, r := range strings.ToLower(tenantID) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
