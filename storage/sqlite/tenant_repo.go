package sqlite

import (
	"database/sql"
	"time"

	"github.com/coleapp/session-service/tenants"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var _ tenants.Repo = (*TenantRepo)(nil)

type TenantRepo struct {
	db *sql.DB
}

func NewTenantRepo(db *sql.DB) *TenantRepo {
	return &TenantRepo{db: db}
}

func (r *TenantRepo) Upsert(tenantData *tenants.Tenant) error {
	if tenantData.ID == "" {
		tenantData.ID = uuid.New().String()
	}
	if tenantData.SchemaName == "" {
		tenantData.SchemaName = tenants.SchemaNameFor(tenantData.ID)
	}
	if tenantData.CreatedAt.IsZero() {
		tenantData.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO tenants (id, name, domain, schema_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			domain = excluded.domain,
			schema_name = excluded.schema_name`,
		tenantData.ID, tenantData.Name, tenantData.Domain, tenantData.SchemaName, tenantData.CreatedAt)
	return errors.Wrap(err, "[TenantRepo.Upsert] exec")
}

func (r *TenantRepo) Delete(tenantID string) error {
	_, err := r.db.Exec(`DELETE FROM tenants WHERE id = ?`, tenantID)
	return errors.Wrap(err, "[TenantRepo.Delete] exec")
}

func (r *TenantRepo) Get(tenantID string) (*tenants.Tenant, error) {
	row := r.db.QueryRow(`SELECT id, name, domain, schema_name, created_at FROM tenants WHERE id = ?`, tenantID)

	var t tenants.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.SchemaName, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New("not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "[TenantRepo.Get] scan")
	}
	return &t, nil
}

func (r *TenantRepo) List(offset, limit int) ([]*tenants.Tenant, error) {
	rows, err := r.db.Query(`SELECT id, name, domain, schema_name, created_at FROM tenants ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "[TenantRepo.List] query")
	}
	defer rows.Close()

	var list []*tenants.Tenant
	for rows.Next() {
		var t tenants.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Domain, &t.SchemaName, &t.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "[TenantRepo.List] scan")
		}
		list = append(list, &t)
	}
	return list, errors.Wrap(rows.Err(), "[TenantRepo.List] rows")
}
