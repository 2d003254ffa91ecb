package sqlite

import (
	"database/sql"
	"time"

	"github.com/coleapp/session-service/users"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var _ users.UserRepo = (*UserRepo)(nil)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Upsert(user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}

	var lastLogin interface{}
	if !user.LastLogin.IsZero() {
		lastLogin = user.LastLogin
	}

	_, err := r.db.Exec(`
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, tenant_id, external_identity_id, date_joined, last_login, blocked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			password_hash = excluded.password_hash,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			role = excluded.role,
			tenant_id = excluded.tenant_id,
			external_identity_id = excluded.external_identity_id,
			last_login = excluded.last_login,
			blocked = excluded.blocked`,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		string(user.Role), user.TenantID, user.ExternalIdentityID,
		user.DateJoined, lastLogin, boolToInt(user.Blocked))
	return errors.Wrap(err, "[UserRepo.Upsert] exec")
}

func (r *UserRepo) Delete(email string) error {
	res, err := r.db.Exec(`DELETE FROM users WHERE email = ?`, email)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.Delete] exec")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("not found")
	}
	return nil
}

func (r *UserRepo) GetByEmail(email string) (*users.User, error) {
	return r.get(`email = ?`, email)
}

func (r *UserRepo) GetByID(id string) (*users.User, error) {
	return r.get(`id = ?`, id)
}

func (r *UserRepo) get(where string, arg interface{}) (*users.User, error) {
	row := r.db.QueryRow(`
		SELECT id, email, password_hash, first_name, last_name, role, tenant_id, external_identity_id, date_joined, last_login, blocked
		FROM users WHERE `+where, arg)
	return scanUser(row)
}

func (r *UserRepo) List(offset, limit int) ([]*users.User, error) {
	rows, err := r.db.Query(`
		SELECT id, email, password_hash, first_name, last_name, role, tenant_id, external_identity_id, date_joined, last_login, blocked
		FROM users ORDER BY email LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "[UserRepo.List] query")
	}
	defer rows.Close()

	var list []*users.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, errors.Wrap(rows.Err(), "[UserRepo.List] rows")
}

func (r *UserRepo) SetBlocked(email string, blocked bool) error {
	res, err := r.db.Exec(`UPDATE users SET blocked = ? WHERE email = ?`, boolToInt(blocked), email)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.SetBlocked] exec")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("not found")
	}
	return nil
}

func (r *UserRepo) SetLastLogin(email string) error {
	res, err := r.db.Exec(`UPDATE users SET last_login = ? WHERE email = ?`, time.Now(), email)
	if err != nil {
		return errors.Wrap(err, "[UserRepo.SetLastLogin] exec")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*users.User, error) {
	var (
		u         users.User
		role      string
		lastLogin sql.NullTime
		blocked   int
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&role, &u.TenantID, &u.ExternalIdentityID, &u.DateJoined, &lastLogin, &blocked)
	if err == sql.ErrNoRows {
		return nil, errors.New("not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "[scanUser] scan")
	}
	u.Role = users.RoleType(role)
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	u.Blocked = blocked != 0
	return &u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
