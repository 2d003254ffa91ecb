// Package sqlite provides database-backed user and tenant repositories.
// It uses the pure-Go sqlite driver so the server binary needs no cgo.
package sqlite

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	domain      TEXT NOT NULL DEFAULT '',
	schema_name TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id                   TEXT PRIMARY KEY,
	email                TEXT NOT NULL UNIQUE,
	password_hash        TEXT NOT NULL,
	first_name           TEXT NOT NULL DEFAULT '',
	last_name            TEXT NOT NULL DEFAULT '',
	role                 TEXT NOT NULL,
	tenant_id            TEXT NOT NULL DEFAULT '',
	external_identity_id TEXT NOT NULL DEFAULT '',
	date_joined          TIMESTAMP NOT NULL,
	last_login           TIMESTAMP NULL,
	blocked              INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_users_tenant ON users(tenant_id);
`

// Open connects to the database named by databaseURL and ensures the
// schema exists. A "sqlite://" or "file:" prefix is accepted; anything
// else is treated as a plain file path.
func Open(databaseURL string) (*sql.DB, error) {
	dsn := strings.TrimPrefix(databaseURL, "sqlite://")
	if dsn == "" {
		return nil, errors.New("[sqlite.Open] empty database URL")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlite.Open] sql.Open")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqlite.Open] ping")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqlite.Open] create schema")
	}
	return db, nil
}
