package storefakes

import (
	"sync"

	"github.com/coleapp/session-service/tokenstore"
	"github.com/coleapp/session-service/users"
)

var _ tokenstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store with optional failure injection.
type FakeStore struct {
	lock    sync.Mutex
	session tokenstore.Session
	ok      bool

	GetErr   error
	SetErr   error
	ClearErr error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// Seed pre-populates the store, as if a previous app run had written it.
func (fs *FakeStore) Seed(accessToken string, user users.Summary, tenantID string) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.session = tokenstore.Session{AccessToken: accessToken, User: user, TenantID: tenantID}
	fs.ok = true
}

func (fs *FakeStore) Get() (tokenstore.Session, bool, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.GetErr != nil {
		return tokenstore.Session{}, false, fs.GetErr
	}
	return fs.session, fs.ok, nil
}

func (fs *FakeStore) Set(accessToken string, user users.Summary, tenantID string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.SetErr != nil {
		return fs.SetErr
	}
	fs.session = tokenstore.Session{AccessToken: accessToken, User: user, TenantID: tenantID}
	fs.ok = true
	return nil
}

func (fs *FakeStore) SetTenantID(tenantID string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.SetErr != nil {
		return fs.SetErr
	}
	fs.session.TenantID = tenantID
	return nil
}

func (fs *FakeStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.ClearErr != nil {
		return fs.ClearErr
	}
	fs.session = tokenstore.Session{}
	fs.ok = false
	return nil
}

// Stored returns the current contents for assertions.
func (fs *FakeStore) Stored() (tokenstore.Session, bool) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.session, fs.ok
}
