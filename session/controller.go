// Package session implements the client-side session controller: one
// object per app instance that reconciles the token store, the optional
// identity provider, and the backend session API into a single observable
// "current user" value.
package session

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/coleapp/session-service/autherrors"
	"github.com/coleapp/session-service/identity"
	"github.com/coleapp/session-service/internal/utils"
	"github.com/coleapp/session-service/sessionapi"
	"github.com/coleapp/session-service/tokenstore"
	"github.com/coleapp/session-service/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrAuthInFlight is returned when Login or Register is called while a
// previous attempt has not resolved. New attempts are rejected rather than
// queued so partial token-store writes can never interleave.
var ErrAuthInFlight = stderrors.New("an authentication attempt is already in progress")

// DefaultCallTimeout bounds every outbound call the controller makes.
const DefaultCallTimeout = 15 * time.Second

// Controller is the session state machine. All exported methods are safe
// for concurrent use; state transitions are serialized by the internal
// mutex.
type Controller struct {
	store       tokenstore.Store
	api         sessionapi.Service
	idp         identity.Provider
	logger      zerolog.Logger
	callTimeout time.Duration
	onSignedOut func() // UI navigation hook, invoked after any sign-out

	mu       sync.Mutex
	state    State
	loading  bool
	user     *users.Summary
	tenantID string
	errMsg   string
	inFlight bool
	started  bool

	subs    map[int]func(Snapshot)
	nextSub int

	ctx            context.Context
	cancel         context.CancelFunc
	unsubscribeIDP func()
	firstIDPState  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithIdentityProvider installs the external identity provider. Without
// this option the controller runs with the disabled variant.
func WithIdentityProvider(idp identity.Provider) Option {
	return func(c *Controller) {
		if idp != nil {
			c.idp = idp
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithCallTimeout bounds outbound auth calls. Expiry surfaces as a
// NetworkUnavailable error.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Controller) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithSignedOutHook installs the navigation hook invoked after logout or a
// silent sign-out, so the UI can move to its login entry point.
func WithSignedOutHook(fn func()) Option {
	return func(c *Controller) {
		c.onSignedOut = fn
	}
}

// WithDefaultTenantID sets the tenant used until SetCurrentTenant or a
// restored session overrides it.
func WithDefaultTenantID(tenantID string) Option {
	return func(c *Controller) {
		c.tenantID = tenantID
	}
}

// New creates a Controller. The returned controller is in StateUnknown
// until Start is called.
func New(store tokenstore.Store, api sessionapi.Service, options ...Option) (*Controller, error) {
	if store == nil {
		return nil, errors.New("[session.New] token store is required")
	}
	if api == nil {
		return nil, errors.New("[session.New] session API is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:       store,
		api:         api,
		idp:         identity.Disabled(),
		logger:      zerolog.Nop(),
		callTimeout: DefaultCallTimeout,
		onSignedOut: func() {},
		state:       StateUnknown,
		loading:     true,
		subs:        make(map[int]func(Snapshot)),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Start restores the session. With an enabled identity provider its first
// emission drives the Unknown transition; otherwise the token store is
// read directly and the cached session is revalidated in the background.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	enabled := c.idp.Enabled()
	if enabled {
		c.firstIDPState = true
	}
	c.mu.Unlock()

	if enabled {
		c.unsubscribeIDP = c.idp.Subscribe(c.onIdentityState)
		return
	}
	c.restoreFromStore()
}

// Close tears the controller down. In-flight background work stops
// publishing once Close has been called.
func (c *Controller) Close() {
	c.cancel()
	if c.unsubscribeIDP != nil {
		c.unsubscribeIDP()
	}
}

// Subscribe registers an observer. It is called immediately with the
// current snapshot and again on every transition.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	snap := c.snapshotLocked()
	c.mu.Unlock()

	fn(snap)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Login authenticates with the identity provider (when enabled) and the
// backend, persists the session, and moves to Authenticated. The error is
// returned to the caller and also kept on the snapshot's Err field.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	if err := c.beginAuth(); err != nil {
		return err
	}
	defer c.endAuth()

	callCtx, cancelCall := c.callContext(ctx)
	defer cancelCall()

	if _, err := c.idp.SignIn(callCtx, email, password); err != nil {
		return c.failAuth(errors.Wrap(err, "[Controller.Login] identity sign-in"))
	}

	result, err := c.api.Login(callCtx, email, password, c.currentTenant())
	if err != nil {
		return c.failAuth(normalizeErr(err))
	}

	return c.completeAuth(result)
}

// Register creates a backend account (and identity-provider account when
// enabled) and signs the new user in.
func (c *Controller) Register(ctx context.Context, input sessionapi.RegisterInput) error {
	if err := c.beginAuth(); err != nil {
		return err
	}
	defer c.endAuth()

	callCtx, cancelCall := c.callContext(ctx)
	defer cancelCall()

	if _, err := c.idp.SignIn(callCtx, input.Email, input.Password); err != nil {
		// An identity account may not exist yet; that is fine, the
		// backend registration is authoritative.
		c.logger.Debug().Err(err).Msg("identity sign-in before register failed")
	}

	if input.TenantID == "" {
		input.TenantID = c.currentTenant()
	}
	result, err := c.api.Register(callCtx, input)
	if err != nil {
		return c.failAuth(normalizeErr(err))
	}

	return c.completeAuth(result)
}

// Logout signs out everywhere, clears the persisted session, and moves to
// Anonymous. Calling it when already Anonymous is a no-op.
func (c *Controller) Logout(ctx context.Context) {
	callCtx, cancelCall := c.callContext(ctx)
	defer cancelCall()

	if err := c.idp.SignOut(callCtx); err != nil {
		c.logger.Warn().Err(err).Msg("identity sign-out failed")
	}
	c.signOutLocally()
}

// ResetPassword delegates to the identity provider. With the disabled
// variant it succeeds without doing anything. Session state is untouched.
func (c *Controller) ResetPassword(ctx context.Context, email string) error {
	callCtx, cancelCall := c.callContext(ctx)
	defer cancelCall()
	return c.idp.ResetPassword(callCtx, email)
}

// SetCurrentTenant switches the active tenant in place. No network call is
// made; when Anonymous only the in-memory default changes.
func (c *Controller) SetCurrentTenant(tenantID string) {
	c.mu.Lock()
	c.tenantID = tenantID
	if c.user != nil {
		c.user.TenantID = tenantID
	}
	authenticated := c.state == StateAuthenticated
	c.mu.Unlock()

	if authenticated {
		if err := c.store.SetTenantID(tenantID); err != nil {
			c.logger.Warn().Err(err).Msg("failed to persist tenant switch")
		}
	}
	c.publish()
}

// HandleAuthFailure is the global hook for authenticated calls made
// outside this controller: an Unauthenticated error clears the session
// and navigates to login. All other errors are left to the call site.
func (c *Controller) HandleAuthFailure(err error) {
	if autherrors.IsUnauthenticated(err) {
		c.logger.Debug().Msg("unauthenticated response, clearing session")
		c.signOutLocally()
	}
}

// --- internal transitions ---

func (c *Controller) beginAuth() error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrAuthInFlight
	}
	c.inFlight = true
	c.loading = true
	c.errMsg = ""
	c.mu.Unlock()
	c.publish()
	return nil
}

func (c *Controller) endAuth() {
	c.mu.Lock()
	c.inFlight = false
	c.loading = false
	c.mu.Unlock()
}

func (c *Controller) completeAuth(result *sessionapi.Result) error {
	user := result.User
	tenantID := user.TenantID
	if tenantID == "" {
		tenantID = c.currentTenant()
		user.TenantID = tenantID
	}

	if err := c.store.Set(result.AccessToken, user, tenantID); err != nil {
		return c.failAuth(errors.Wrap(err, "[Controller.completeAuth] persist session"))
	}

	c.mu.Lock()
	c.state = StateAuthenticated
	c.user = utils.Ptr(user)
	c.tenantID = tenantID
	c.errMsg = ""
	c.loading = false
	c.mu.Unlock()

	c.logger.Debug().Str("user", user.Email).Str("tenant", tenantID).Msg("authenticated")
	c.publish()
	return nil
}

// failAuth records the error for the UI and returns it to the caller. The
// session stays (or becomes) Anonymous; nothing is written to the store.
func (c *Controller) failAuth(err error) error {
	c.mu.Lock()
	c.errMsg = autherrors.DisplayMessage(err)
	if c.state == StateUnknown {
		c.state = StateAnonymous
	}
	if c.state != StateAuthenticated {
		c.user = nil
	}
	c.loading = false
	c.mu.Unlock()

	c.logger.Debug().Err(err).Msg("authentication failed")
	c.publish()
	return err
}

// restoreFromStore implements the disabled-provider mount path: cached
// session first for responsiveness, background revalidation after.
func (c *Controller) restoreFromStore() {
	stored, ok, err := c.store.Get()
	if err != nil {
		c.logger.Warn().Err(err).Msg("token store read failed")
		ok = false
	}
	if !ok {
		c.toAnonymous()
		return
	}

	user := stored.User
	hadCachedUser := user.ID != ""

	c.mu.Lock()
	c.state = StateAuthenticated
	if hadCachedUser {
		c.user = utils.Ptr(user)
	}
	if stored.TenantID != "" {
		c.tenantID = stored.TenantID
	}
	c.loading = false
	c.mu.Unlock()
	c.publish()

	go c.revalidate(stored, hadCachedUser)
}

func (c *Controller) revalidate(stored tokenstore.Session, hadCachedUser bool) {
	callCtx, cancelCall := c.callContext(c.ctx)
	defer cancelCall()

	summary, err := c.api.WhoAmI(callCtx, stored.AccessToken, stored.TenantID)
	if c.ctx.Err() != nil {
		return // Controller was closed while the call was in flight.
	}

	switch {
	case err == nil:
		if err := c.store.Set(stored.AccessToken, summary, summary.TenantID); err != nil {
			c.logger.Warn().Err(err).Msg("failed to refresh cached user")
		}
		c.mu.Lock()
		c.user = utils.Ptr(summary)
		if summary.TenantID != "" {
			c.tenantID = summary.TenantID
		}
		c.mu.Unlock()
		c.publish()

	case autherrors.IsUnauthenticated(err):
		c.logger.Debug().Msg("stored token rejected, signing out")
		c.signOutLocally()

	default:
		// Transient failure: the cached user wins so flaky connectivity
		// does not flap the session.
		if !hadCachedUser {
			c.signOutLocally()
			return
		}
		c.logger.Debug().Err(err).Msg("revalidation failed, keeping cached session")
	}
}

// onIdentityState handles emissions from an enabled identity provider,
// which is the source of truth for "is anyone logged in".
func (c *Controller) onIdentityState(state identity.State) {
	if c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	first := c.firstIDPState
	c.firstIDPState = false
	current := c.state
	c.mu.Unlock()

	if state.SignedIn {
		// The backend access token is a derived artifact; restore it
		// from the store and revalidate as usual.
		c.restoreFromStore()
		return
	}

	if first {
		c.toAnonymous()
		return
	}
	if current == StateAuthenticated {
		c.signOutLocally()
	}
}

func (c *Controller) signOutLocally() {
	if err := c.store.Clear(); err != nil {
		c.logger.Warn().Err(err).Msg("token store clear failed")
	}

	c.mu.Lock()
	wasAnonymous := c.state == StateAnonymous
	c.state = StateAnonymous
	c.user = nil
	c.errMsg = ""
	c.loading = false
	c.mu.Unlock()

	c.publish()
	if !wasAnonymous {
		c.onSignedOut()
	}
}

func (c *Controller) toAnonymous() {
	c.mu.Lock()
	c.state = StateAnonymous
	c.user = nil
	c.loading = false
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) currentTenant() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tenantID
}

func (c *Controller) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = c.ctx
	}
	return context.WithTimeout(parent, c.callTimeout)
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:    c.state,
		Loading:  c.loading,
		TenantID: c.tenantID,
		Err:      c.errMsg,
	}
	if c.user != nil {
		snap.User = utils.Ptr(*c.user)
	}
	return snap
}

func (c *Controller) publish() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// normalizeErr maps raw context expiry onto the error taxonomy so fakes
// and custom Service implementations behave like the HTTP client.
func normalizeErr(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return autherrors.Wrap(autherrors.KindNetworkUnavailable, "the server took too long to respond", err)
	}
	return err
}
