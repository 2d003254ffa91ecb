package session_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coleapp/session-service/autherrors"
	"github.com/coleapp/session-service/identity"
	"github.com/coleapp/session-service/identity/identityfakes"
	"github.com/coleapp/session-service/session"
	"github.com/coleapp/session-service/sessionapi"
	"github.com/coleapp/session-service/sessionapi/apifakes"
	"github.com/coleapp/session-service/tokenstore/storefakes"
	"github.com/coleapp/session-service/users"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "admin@test.com"
	testPassword = "admin123"
	testTenantID = "greenfield-high"
)

var testUser = users.Summary{
	ID:       "1",
	Email:    testEmail,
	Role:     users.RoleAdmin,
	TenantID: testTenantID,
}

type testFixture struct {
	store *storefakes.FakeStore
	api   *apifakes.FakeService
	ctrl  *session.Controller

	signedOutCalls atomic.Int32
}

func setupTestFixture(t *testing.T, options ...session.Option) *testFixture {
	t.Helper()

	f := &testFixture{
		store: storefakes.NewFakeStore(),
		api:   apifakes.NewFakeService(),
	}
	options = append(options, session.WithSignedOutHook(func() {
		f.signedOutCalls.Add(1)
	}))

	ctrl, err := session.New(f.store, f.api, options...)
	require.NoError(t, err)
	f.ctrl = ctrl
	t.Cleanup(ctrl.Close)
	return f
}

func acceptLogin(result *sessionapi.Result) func(string, string, string) (*sessionapi.Result, error) {
	return func(email, password, tenantID string) (*sessionapi.Result, error) {
		if email == testEmail && password == testPassword {
			return result, nil
		}
		return nil, autherrors.New(autherrors.KindInvalidCredentials, "invalid email or password")
	}
}

func TestLoginTransitionsToAuthenticatedAndPersists(t *testing.T) {
	f := setupTestFixture(t)
	f.api.LoginFn = acceptLogin(&sessionapi.Result{AccessToken: "jwt-1", User: testUser})

	f.ctrl.Start()
	require.Equal(t, session.StateAnonymous, f.ctrl.Snapshot().State)

	err := f.ctrl.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	snap := f.ctrl.Snapshot()
	require.Equal(t, session.StateAuthenticated, snap.State)
	require.NotNil(t, snap.User)
	require.Equal(t, testEmail, snap.User.Email)
	require.False(t, snap.Loading)
	require.Empty(t, snap.Err)

	stored, ok := f.store.Stored()
	require.True(t, ok)
	require.Equal(t, "jwt-1", stored.AccessToken)
	require.Equal(t, testEmail, stored.User.Email)
	require.Equal(t, testTenantID, stored.TenantID)
}

func TestLoginInvalidCredentialsStaysAnonymous(t *testing.T) {
	f := setupTestFixture(t)
	f.api.LoginFn = acceptLogin(&sessionapi.Result{AccessToken: "jwt-1", User: testUser})

	f.ctrl.Start()
	err := f.ctrl.Login(context.Background(), testEmail, "wrong-password")
	require.Error(t, err)
	require.True(t, autherrors.IsKind(err, autherrors.KindInvalidCredentials))

	snap := f.ctrl.Snapshot()
	require.Equal(t, session.StateAnonymous, snap.State)
	require.Nil(t, snap.User)
	require.Equal(t, "invalid email or password", snap.Err)

	_, ok := f.store.Stored()
	require.False(t, ok, "failed login must not write the token store")
}

func TestLogoutWhenAnonymousIsNoOp(t *testing.T) {
	f := setupTestFixture(t)
	f.ctrl.Start()
	require.Equal(t, session.StateAnonymous, f.ctrl.Snapshot().State)

	require.NotPanics(t, func() {
		f.ctrl.Logout(context.Background())
		f.ctrl.Logout(context.Background())
	})
	require.Equal(t, session.StateAnonymous, f.ctrl.Snapshot().State)
	require.Equal(t, int32(0), f.signedOutCalls.Load(), "no navigation when already anonymous")
}

func TestLogoutClearsSessionAndNavigates(t *testing.T) {
	f := setupTestFixture(t)
	f.api.LoginFn = acceptLogin(&sessionapi.Result{AccessToken: "jwt-1", User: testUser})

	f.ctrl.Start()
	require.NoError(t, f.ctrl.Login(context.Background(), testEmail, testPassword))

	f.ctrl.Logout(context.Background())

	snap := f.ctrl.Snapshot()
	require.Equal(t, session.StateAnonymous, snap.State)
	require.Nil(t, snap.User)
	_, ok := f.store.Stored()
	require.False(t, ok)
	require.Equal(t, int32(1), f.signedOutCalls.Load())
}

func TestSetCurrentTenantRoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	f.api.LoginFn = acceptLogin(&sessionapi.Result{AccessToken: "jwt-1", User: testUser})

	f.ctrl.Start()
	require.NoError(t, f.ctrl.Login(context.Background(), testEmail, testPassword))

	f.ctrl.SetCurrentTenant("lakeside-academy")

	snap := f.ctrl.Snapshot()
	require.Equal(t, "lakeside-academy", snap.TenantID)
	require.Equal(t, "lakeside-academy", snap.User.TenantID)

	stored, ok := f.store.Stored()
	require.True(t, ok)
	require.Equal(t, "lakeside-academy", stored.TenantID)
}

func TestSetCurrentTenantWhenAnonymousSkipsStore(t *testing.T) {
	f := setupTestFixture(t)
	f.ctrl.Start()

	f.ctrl.SetCurrentTenant("lakeside-academy")

	require.Equal(t, "lakeside-academy", f.ctrl.Snapshot().TenantID)
	_, ok := f.store.Stored()
	require.False(t, ok)
}

func TestRestartKeepsCachedUserOnTransientFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Seed("abc", testUser, testTenantID)
	f.api.WhoAmIFn = func(string, string) (users.Summary, error) {
		return users.Summary{}, autherrors.New(autherrors.KindNetworkUnavailable, "could not reach the server")
	}

	f.ctrl.Start()

	// Optimistic restore happens synchronously.
	require.Equal(t, session.StateAuthenticated, f.ctrl.Snapshot().State)

	require.Eventually(t, func() bool {
		return f.api.WhoAmICallCount() >= 1
	}, time.Second, 5*time.Millisecond)

	// Stale-but-available: the cached user survives the failed check.
	snap := f.ctrl.Snapshot()
	require.Equal(t, session.StateAuthenticated, snap.State)
	require.NotNil(t, snap.User)
	require.Equal(t, testEmail, snap.User.Email)
	_, ok := f.store.Stored()
	require.True(t, ok)
}

func TestRestartClearsSessionWhenTokenRejected(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Seed("abc", testUser, testTenantID)
	f.api.WhoAmIFn = func(string, string) (users.Summary, error) {
		return users.Summary{}, autherrors.New(autherrors.KindUnauthenticated, "session expired, please sign in again")
	}

	f.ctrl.Start()

	require.Eventually(t, func() bool {
		return f.ctrl.Snapshot().State == session.StateAnonymous
	}, time.Second, 5*time.Millisecond)

	_, ok := f.store.Stored()
	require.False(t, ok, "rejected token must clear the store")
	require.Equal(t, int32(1), f.signedOutCalls.Load())
}

func TestRestartRefreshesCachedUserOnSuccess(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Seed("abc", testUser, testTenantID)
	refreshed := testUser
	refreshed.FirstName = "Updated"
	f.api.WhoAmIFn = func(token, tenantID string) (users.Summary, error) {
		return refreshed, nil
	}

	f.ctrl.Start()

	require.Eventually(t, func() bool {
		snap := f.ctrl.Snapshot()
		return snap.User != nil && snap.User.FirstName == "Updated"
	}, time.Second, 5*time.Millisecond)

	stored, ok := f.store.Stored()
	require.True(t, ok)
	require.Equal(t, "Updated", stored.User.FirstName)
	require.Equal(t, "abc", stored.AccessToken, "the token itself is kept")
}

func TestConcurrentLoginIsRejected(t *testing.T) {
	f := setupTestFixture(t)
	f.api.Blocking = make(chan struct{})
	f.api.LoginFn = acceptLogin(&sessionapi.Result{AccessToken: "jwt-1", User: testUser})

	f.ctrl.Start()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- f.ctrl.Login(context.Background(), testEmail, testPassword)
	}()

	require.Eventually(t, func() bool {
		return f.api.LoginCallCount() >= 1
	}, time.Second, 5*time.Millisecond)

	// Second attempt while the first is in flight is rejected outright.
	err := f.ctrl.Login(context.Background(), "other@test.com", "Password1")
	require.ErrorIs(t, err, session.ErrAuthInFlight)

	close(f.api.Blocking)
	require.NoError(t, <-firstDone)
	require.Equal(t, session.StateAuthenticated, f.ctrl.Snapshot().State)
}

func TestLoginTimeoutSurfacesNetworkUnavailable(t *testing.T) {
	f := setupTestFixture(t, session.WithCallTimeout(20*time.Millisecond))
	f.api.LoginFn = func(string, string, string) (*sessionapi.Result, error) {
		time.Sleep(100 * time.Millisecond)
		return nil, context.DeadlineExceeded
	}

	f.ctrl.Start()
	err := f.ctrl.Login(context.Background(), testEmail, testPassword)
	require.Error(t, err)
	require.True(t, autherrors.IsKind(err, autherrors.KindNetworkUnavailable))
}

func TestRegisterSignsInNewUser(t *testing.T) {
	f := setupTestFixture(t)
	f.api.RegisterFn = func(input sessionapi.RegisterInput) (*sessionapi.Result, error) {
		return &sessionapi.Result{
			AccessToken: "jwt-new",
			User: users.Summary{
				ID:       "2",
				Email:    input.Email,
				Role:     users.RoleType(input.Role),
				TenantID: input.TenantID,
			},
		}, nil
	}

	f.ctrl.Start()
	f.ctrl.SetCurrentTenant(testTenantID)

	err := f.ctrl.Register(context.Background(), sessionapi.RegisterInput{
		Email:     "parent@test.com",
		Password:  "Password1",
		FirstName: "Pat",
		LastName:  "Doe",
		Role:      string(users.RoleParent),
	})
	require.NoError(t, err)

	snap := f.ctrl.Snapshot()
	require.Equal(t, session.StateAuthenticated, snap.State)
	require.Equal(t, "parent@test.com", snap.User.Email)
	require.Equal(t, testTenantID, snap.User.TenantID, "register inherits the active tenant")
}

func TestResetPasswordWithDisabledProviderSucceeds(t *testing.T) {
	f := setupTestFixture(t)
	f.ctrl.Start()

	require.NoError(t, f.ctrl.ResetPassword(context.Background(), testEmail))
	require.Equal(t, session.StateAnonymous, f.ctrl.Snapshot().State, "reset must not touch session state")
}

func TestHandleAuthFailureClearsSessionOnUnauthenticated(t *testing.T) {
	f := setupTestFixture(t)
	f.api.LoginFn = acceptLogin(&sessionapi.Result{AccessToken: "jwt-1", User: testUser})

	f.ctrl.Start()
	require.NoError(t, f.ctrl.Login(context.Background(), testEmail, testPassword))

	f.ctrl.HandleAuthFailure(autherrors.New(autherrors.KindNetworkUnavailable, "down"))
	require.Equal(t, session.StateAuthenticated, f.ctrl.Snapshot().State, "only Unauthenticated clears the session")

	f.ctrl.HandleAuthFailure(autherrors.New(autherrors.KindUnauthenticated, "expired"))
	require.Equal(t, session.StateAnonymous, f.ctrl.Snapshot().State)
	_, ok := f.store.Stored()
	require.False(t, ok)
}

func TestIdentityProviderDrivesInitialState(t *testing.T) {
	idp := identityfakes.NewFakeProvider()
	f := setupTestFixture(t, session.WithIdentityProvider(idp))

	// First emission is signed-out: straight to Anonymous.
	f.ctrl.Start()
	require.Equal(t, session.StateAnonymous, f.ctrl.Snapshot().State)
}

func TestIdentityProviderSignedInRestoresStoredSession(t *testing.T) {
	idp := identityfakes.NewFakeProvider()
	idp.SetState(identity.State{SignedIn: true, IdentityToken: "id-token", Email: testEmail})

	f := setupTestFixture(t, session.WithIdentityProvider(idp))
	f.store.Seed("abc", testUser, testTenantID)
	f.api.WhoAmIFn = func(string, string) (users.Summary, error) {
		return testUser, nil
	}

	f.ctrl.Start()

	require.Eventually(t, func() bool {
		snap := f.ctrl.Snapshot()
		return snap.State == session.StateAuthenticated && snap.User != nil
	}, time.Second, 5*time.Millisecond)
}

func TestIdentityProviderSignOutEmissionClearsSession(t *testing.T) {
	idp := identityfakes.NewFakeProvider()
	idp.SetState(identity.State{SignedIn: true})

	f := setupTestFixture(t, session.WithIdentityProvider(idp))
	f.store.Seed("abc", testUser, testTenantID)
	f.api.WhoAmIFn = func(string, string) (users.Summary, error) {
		return testUser, nil
	}

	f.ctrl.Start()
	require.Eventually(t, func() bool {
		return f.ctrl.Snapshot().State == session.StateAuthenticated
	}, time.Second, 5*time.Millisecond)

	// The provider is the source of truth: its sign-out wins.
	idp.Emit(identity.State{})

	require.Equal(t, session.StateAnonymous, f.ctrl.Snapshot().State)
	_, ok := f.store.Stored()
	require.False(t, ok)
}

func TestLoginCallsIdentityProviderFirst(t *testing.T) {
	idp := identityfakes.NewFakeProvider()
	f := setupTestFixture(t, session.WithIdentityProvider(idp))
	f.api.LoginFn = acceptLogin(&sessionapi.Result{AccessToken: "jwt-1", User: testUser})

	f.ctrl.Start()
	require.NoError(t, f.ctrl.Login(context.Background(), testEmail, testPassword))
	require.Equal(t, 1, idp.SignInCalls)
	require.Equal(t, 1, f.api.LoginCallCount())
}

func TestLoginFailsWhenIdentityProviderRejects(t *testing.T) {
	idp := identityfakes.NewFakeProvider()
	idp.SignInErr = autherrors.New(autherrors.KindInvalidCredentials, "invalid email or password")

	f := setupTestFixture(t, session.WithIdentityProvider(idp))
	f.ctrl.Start()

	err := f.ctrl.Login(context.Background(), testEmail, testPassword)
	require.Error(t, err)
	require.True(t, autherrors.IsKind(err, autherrors.KindInvalidCredentials))
	require.Equal(t, 0, f.api.LoginCallCount(), "backend is not called when identity sign-in fails")
	require.Equal(t, session.StateAnonymous, f.ctrl.Snapshot().State)
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	f := setupTestFixture(t)
	f.api.LoginFn = acceptLogin(&sessionapi.Result{AccessToken: "jwt-1", User: testUser})

	var states []session.State
	cancel := f.ctrl.Subscribe(func(snap session.Snapshot) {
		states = append(states, snap.State)
	})
	defer cancel()

	f.ctrl.Start()
	require.NoError(t, f.ctrl.Login(context.Background(), testEmail, testPassword))

	require.Equal(t, session.StateUnknown, states[0], "initial snapshot is delivered immediately")
	require.Equal(t, session.StateAuthenticated, states[len(states)-1])
}
