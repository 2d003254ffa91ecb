package identityfakes

import (
	"context"
	"sync"

	"github.com/coleapp/session-service/identity"
)

var _ identity.Provider = (*FakeProvider)(nil)

// FakeProvider is a scriptable identity provider for tests. It behaves as
// an enabled provider: state changes are pushed to subscribers, and new
// subscribers receive the current state immediately.
type FakeProvider struct {
	lock  sync.Mutex
	state identity.State
	subs  map[int]func(identity.State)
	next  int

	SignInErr        error
	SignOutErr       error
	ResetPasswordErr error

	SignInCalls        int
	SignOutCalls       int
	ResetPasswordCalls []string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{subs: make(map[int]func(identity.State))}
}

func (fp *FakeProvider) Enabled() bool { return true }

func (fp *FakeProvider) SignIn(_ context.Context, email, _ string) (string, error) {
	fp.lock.Lock()
	fp.SignInCalls++
	if fp.SignInErr != nil {
		err := fp.SignInErr
		fp.lock.Unlock()
		return "", err
	}
	fp.state = identity.State{SignedIn: true, IdentityToken: "identity-" + email, Subject: "sub-" + email, Email: email}
	fp.lock.Unlock()
	fp.Emit(fp.State())
	return "identity-" + email, nil
}

func (fp *FakeProvider) SignOut(context.Context) error {
	fp.lock.Lock()
	fp.SignOutCalls++
	if fp.SignOutErr != nil {
		err := fp.SignOutErr
		fp.lock.Unlock()
		return err
	}
	fp.state = identity.State{}
	fp.lock.Unlock()
	fp.Emit(fp.State())
	return nil
}

func (fp *FakeProvider) ResetPassword(_ context.Context, email string) error {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.ResetPasswordCalls = append(fp.ResetPasswordCalls, email)
	return fp.ResetPasswordErr
}

func (fp *FakeProvider) Subscribe(fn func(identity.State)) func() {
	fp.lock.Lock()
	id := fp.next
	fp.next++
	fp.subs[id] = fn
	state := fp.state
	fp.lock.Unlock()

	fn(state)

	return func() {
		fp.lock.Lock()
		defer fp.lock.Unlock()
		delete(fp.subs, id)
	}
}

// SetState overrides the current identity state without emitting.
func (fp *FakeProvider) SetState(state identity.State) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	fp.state = state
}

// Emit pushes a state to all subscribers.
func (fp *FakeProvider) Emit(state identity.State) {
	fp.lock.Lock()
	fp.state = state
	subs := make([]func(identity.State), 0, len(fp.subs))
	for _, fn := range fp.subs {
		subs = append(subs, fn)
	}
	fp.lock.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// State returns the current identity state.
func (fp *FakeProvider) State() identity.State {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return fp.state
}
