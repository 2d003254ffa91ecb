package tokenstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/coleapp/session-service/users"
	"github.com/pkg/errors"
)

// Persisted key layout. The token is written under both "token" and
// "accessToken": older app builds read one key, newer ones the other, and
// both must keep working against the same file.
type fileLayout struct {
	Token       string          `json:"token,omitempty"`
	AccessToken string          `json:"accessToken,omitempty"`
	User        json.RawMessage `json:"user,omitempty"`
	TenantID    string          `json:"tenantId,omitempty"`
}

var _ Store = (*FileStore)(nil)

// FileStore persists the session as a single JSON document on disk.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Get() (Session, bool, error) {
	raw, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, errors.Wrap(err, "[FileStore.Get] read")
	}

	var layout fileLayout
	if err := json.Unmarshal(raw, &layout); err != nil {
		// Corrupt cache counts as no session.
		return Session{}, false, nil
	}

	token := layout.Token
	if token == "" {
		token = layout.AccessToken
	}

	var user users.Summary
	if len(layout.User) > 0 {
		if err := json.Unmarshal(layout.User, &user); err != nil {
			return Session{}, false, nil
		}
	}

	if token == "" {
		return Session{}, false, nil
	}

	return Session{AccessToken: token, User: user, TenantID: layout.TenantID}, true, nil
}

func (fs *FileStore) Set(accessToken string, user users.Summary, tenantID string) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[FileStore.Set] marshal user")
	}
	return fs.write(fileLayout{
		Token:       accessToken,
		AccessToken: accessToken,
		User:        userJSON,
		TenantID:    tenantID,
	})
}

func (fs *FileStore) SetTenantID(tenantID string) error {
	raw, err := os.ReadFile(fs.path)
	layout := fileLayout{}
	if err == nil {
		// Ignore unmarshal failures, the tenant write starts fresh then.
		_ = json.Unmarshal(raw, &layout)
	}
	layout.TenantID = tenantID
	return fs.write(layout)
}

func (fs *FileStore) Clear() error {
	err := os.Remove(fs.path)
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "[FileStore.Clear] remove")
}

// write replaces the file atomically so a crash mid-write never leaves a
// token without its user record.
func (fs *FileStore) write(layout fileLayout) error {
	raw, err := json.Marshal(layout)
	if err != nil {
		return errors.Wrap(err, "[FileStore.write] marshal")
	}

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return errors.Wrap(err, "[FileStore.write] mkdir")
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return errors.Wrap(err, "[FileStore.write] write temp")
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return errors.Wrap(err, "[FileStore.write] rename")
	}
	return nil
}
