package apifakes

import (
	"context"
	"sync"

	"github.com/coleapp/session-service/sessionapi"
	"github.com/coleapp/session-service/users"
)

var _ sessionapi.Service = (*FakeService)(nil)

// FakeService is a scriptable backend session API for tests.
type FakeService struct {
	lock sync.Mutex

	LoginFn    func(email, password, tenantID string) (*sessionapi.Result, error)
	RegisterFn func(input sessionapi.RegisterInput) (*sessionapi.Result, error)
	WhoAmIFn   func(accessToken, tenantID string) (users.Summary, error)

	LoginCalls    int
	RegisterCalls int
	WhoAmICalls   int

	// Blocking, when set, is closed to release in-flight Login calls.
	Blocking chan struct{}
}

func NewFakeService() *FakeService {
	return &FakeService{}
}

func (fs *FakeService) Login(_ context.Context, email, password, tenantID string) (*sessionapi.Result, error) {
	fs.lock.Lock()
	fs.LoginCalls++
	fn := fs.LoginFn
	blocking := fs.Blocking
	fs.lock.Unlock()

	if blocking != nil {
		<-blocking
	}
	if fn == nil {
		return &sessionapi.Result{}, nil
	}
	return fn(email, password, tenantID)
}

func (fs *FakeService) Register(_ context.Context, input sessionapi.RegisterInput) (*sessionapi.Result, error) {
	fs.lock.Lock()
	fs.RegisterCalls++
	fn := fs.RegisterFn
	fs.lock.Unlock()

	if fn == nil {
		return &sessionapi.Result{}, nil
	}
	return fn(input)
}

func (fs *FakeService) WhoAmI(_ context.Context, accessToken, tenantID string) (users.Summary, error) {
	fs.lock.Lock()
	fs.WhoAmICalls++
	fn := fs.WhoAmIFn
	fs.lock.Unlock()

	if fn == nil {
		return users.Summary{}, nil
	}
	return fn(accessToken, tenantID)
}

// LoginCallCount returns how many times Login has been invoked.
func (fs *FakeService) LoginCallCount() int {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.LoginCalls
}

// WhoAmICallCount returns how many times WhoAmI has been invoked.
func (fs *FakeService) WhoAmICallCount() int {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.WhoAmICalls
}
