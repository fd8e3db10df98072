package session

import (
	"context"
	"net/url"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultCheckInterval is how often the liveness monitor re-checks the
	// access token.
	DefaultCheckInterval = 5 * time.Minute
	// DefaultLoginPath is where failed bootstraps and callbacks redirect.
	DefaultLoginPath = "/login"
	// DefaultHomePath is the post-login landing path.
	DefaultHomePath = "/home"
)

// Manager is the process-wide authority over the session. Construct one per
// process with New and thread it through the router and UI layer; every
// mutation of {user, tokens, isAuthenticated, isLoading, redirectTo} goes
// through its entry points.
//
// Operations that contact the network capture an epoch before the call and
// re-check it before adopting the result, so a login that resolves after an
// explicit logout cannot resurrect the session.
type Manager struct {
	api       API
	store     Store
	transient TransientStore
	navigator Navigator
	scheduler Scheduler
	expiry    ExpiryPolicy
	logger    Logger
	now       func() time.Time

	checkInterval time.Duration
	loginPath     string
	homePath      string

	mu           sync.Mutex
	state        State
	epoch        uint64
	bootstrapped bool
	stopMonitor  func()

	stateSubs registry[State]
	errorSubs registry[ErrorEvent]
}

// Option customizes Manager construction.
type Option func(*Manager)

// WithStore sets the persistent token store.
func WithStore(store Store) Option {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

// WithTransientStore sets the per-tab provider marker holder.
func WithTransientStore(store TransientStore) Option {
	return func(m *Manager) {
		if store != nil {
			m.transient = store
		}
	}
}

// WithLogger overrides the default stdout logger.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithScheduler overrides the timer source for the liveness monitor.
func WithScheduler(scheduler Scheduler) Option {
	return func(m *Manager) {
		if scheduler != nil {
			m.scheduler = scheduler
		}
	}
}

// WithNavigator sets the host navigation collaborator.
func WithNavigator(navigator Navigator) Option {
	return func(m *Manager) {
		if navigator != nil {
			m.navigator = navigator
		}
	}
}

// WithExpiryPolicy sets the token staleness policy.
func WithExpiryPolicy(policy ExpiryPolicy) Option {
	return func(m *Manager) {
		if policy != nil {
			m.expiry = policy
		}
	}
}

// WithCheckInterval sets the liveness monitor interval.
func WithCheckInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 {
			m.checkInterval = interval
		}
	}
}

// WithLoginPath overrides the failure redirect path.
func WithLoginPath(path string) Option {
	return func(m *Manager) {
		if path != "" {
			m.loginPath = path
		}
	}
}

// WithHomePath overrides the post-login landing path.
func WithHomePath(path string) Option {
	return func(m *Manager) {
		if path != "" {
			m.homePath = path
		}
	}
}

// New creates the Manager. The initial state is loading until Bootstrap
// completes.
func New(api API, opts ...Option) *Manager {
	m := &Manager{
		api:           api,
		store:         NewMemoryStore(),
		transient:     NewMemoryTransient(),
		navigator:     noopNavigator{},
		scheduler:     tickerScheduler{},
		expiry:        DecodeExpiry{},
		logger:        defLogger{},
		now:           time.Now,
		checkInterval: DefaultCheckInterval,
		loginPath:     DefaultLoginPath,
		homePath:      DefaultHomePath,
		state:         State{IsLoading: true},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Bootstrap restores a persisted session, validating the cached token with
// the API and falling back to a refresh, then runs the OAuth callback
// resolver against rawURL (a callback may arrive with no prior session).
// It runs once per process; failures are published on the error channel,
// never returned, and the state always ends with IsLoading=false.
func (m *Manager) Bootstrap(ctx context.Context, rawURL string) {
	m.mu.Lock()
	if m.bootstrapped {
		m.mu.Unlock()
		m.logger.Warn("bootstrap called more than once, ignoring")
		return
	}
	m.bootstrapped = true
	epoch := m.epoch
	m.mu.Unlock()

	access := m.loadSlot(ctx, m.store.AccessToken, "access token")
	refresh := m.loadSlot(ctx, m.store.RefreshToken, "refresh token")
	cached, err := m.store.User(ctx)
	if err != nil {
		m.logger.Warn("failed to load cached user: %v", err)
	}

	switch {
	case access != "" && cached != nil:
		user, err := m.api.User(ctx, access)
		if err == nil {
			m.adopt(ctx, &TokenPair{
				AccessToken:  access,
				RefreshToken: refresh,
				ExpiresIn:    DefaultExpiresIn,
				TokenType:    "bearer",
				User:         user,
			}, epoch, false)
		} else if refresh != "" {
			if rerr := m.refreshWith(ctx, refresh, epoch); rerr != nil {
				m.emitError(rerr)
			}
		} else {
			if cerr := m.clearSession(ctx); cerr != nil {
				m.logger.Warn("failed to clear session: %v", cerr)
			}
		}
	default:
		m.setState(func(s *State) { s.IsLoading = false })
	}

	if u := parseCallbackInput(rawURL); u != nil {
		// Errors are already published on the error channel.
		_ = m.resolveCallback(ctx, u)
	}
}

// Login performs the password grant. On failure the loading flag is
// restored and the server-reported error propagates to the caller.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid login payload")
	}

	epoch := m.beginLoading()

	tokens, err := m.api.Login(ctx, creds)
	if err != nil {
		m.setState(func(s *State) { s.IsLoading = false })
		return err
	}

	return m.adoptOrSupersede(ctx, tokens, epoch)
}

// Signup registers a new account and adopts the issued session.
func (m *Manager) Signup(ctx context.Context, data SignupData) error {
	if err := data.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid signup payload")
	}

	epoch := m.beginLoading()

	tokens, err := m.api.Signup(ctx, data)
	if err != nil {
		m.setState(func(s *State) { s.IsLoading = false })
		return err
	}

	return m.adoptOrSupersede(ctx, tokens, epoch)
}

// Logout revokes the session server-side (best effort), stops the liveness
// monitor, clears the persistent store, and resets to the anonymous
// baseline. A network failure on the revoke call is logged, not returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	access := ""
	if m.state.Tokens != nil {
		access = m.state.Tokens.AccessToken
	}
	m.mu.Unlock()

	if access != "" {
		if err := m.api.Logout(ctx, access); err != nil {
			m.logger.Warn("logout request failed: %v", err)
		}
	}

	return m.clearSession(ctx)
}

// LoginWithOAuth records the chosen provider in transient storage and
// instructs the host to navigate to the authorization URL, which it also
// returns for hosts that drive navigation themselves.
func (m *Manager) LoginWithOAuth(provider string) (string, error) {
	if provider == "" {
		return "", goerrors.New("oauth provider is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	m.transient.SetProvider(provider)
	authorizeURL := m.api.AuthorizeURL(provider)
	m.navigator.Assign(authorizeURL)
	return authorizeURL, nil
}

// Refresh exchanges the held refresh token for a new pair. It does not flip
// the loading flag; an established session keeps rendering while tokens
// rotate. On failure the session is cleared and ErrSessionExpired returned.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	refresh := ""
	if m.state.Tokens != nil {
		refresh = m.state.Tokens.RefreshToken
	}
	epoch := m.epoch
	m.mu.Unlock()

	if refresh == "" {
		return ErrSessionExpired.Clone().WithMetadata(map[string]any{
			"reason": "no refresh token available",
		})
	}

	return m.refreshWith(ctx, refresh, epoch)
}

// UpdateUser shallow-merges the patch into the in-memory user and
// republishes state. Cache-only: it does not call the API and does not
// persist; the merge does not survive a reload.
func (m *Manager) UpdateUser(patch UserPatch) error {
	m.mu.Lock()
	if m.state.User == nil || m.state.Tokens == nil {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	m.state.User.Apply(patch)
	snapshot := m.state.Clone()
	m.mu.Unlock()

	m.stateSubs.publish(snapshot)
	return nil
}

// Users lists all accounts through the admin surface. Requires an active
// session and an API client implementing AdminAPI.
func (m *Manager) Users(ctx context.Context) ([]*AdminUser, error) {
	admin, access, err := m.adminAPI()
	if err != nil {
		return nil, err
	}
	return admin.Users(ctx, access)
}

// UpdateUserRole applies a patch to another account through the admin
// surface.
func (m *Manager) UpdateUserRole(ctx context.Context, id string, patch UserPatch) (*User, error) {
	admin, access, err := m.adminAPI()
	if err != nil {
		return nil, err
	}
	return admin.UpdateUser(ctx, id, patch, access)
}

// State returns a deep defensive copy of the session snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (m *Manager) CurrentUser() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.User.Clone()
}

// IsAuthenticated reports whether a user is present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsAuthenticated
}

// IsLoading reports whether a bootstrap/refresh/callback operation is in
// flight.
func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsLoading
}

// ClearRedirect consumes the one-shot redirect signal. The router calls
// this after navigating.
func (m *Manager) ClearRedirect() {
	m.setState(func(s *State) { s.RedirectTo = "" })
}

// OnStateChange subscribes to session snapshots. Handlers run synchronously
// in subscription order; the returned function de-registers and is safe to
// call mid-emission.
func (m *Manager) OnStateChange(handler func(State)) Unsubscribe {
	return m.stateSubs.subscribe(handler)
}

// OnError subscribes to failures that have no caller to return to
// (bootstrap, callback resolution, liveness checks).
func (m *Manager) OnError(handler func(ErrorEvent)) Unsubscribe {
	return m.errorSubs.subscribe(handler)
}

// beginLoading flips the loading flag and returns the epoch the following
// network call belongs to.
func (m *Manager) beginLoading() uint64 {
	m.mu.Lock()
	epoch := m.epoch
	m.state.IsLoading = true
	snapshot := m.state.Clone()
	m.mu.Unlock()

	m.stateSubs.publish(snapshot)
	return epoch
}

func (m *Manager) adoptOrSupersede(ctx context.Context, tokens *TokenPair, epoch uint64) error {
	if err := m.adopt(ctx, tokens, epoch, true); err != nil {
		m.setState(func(s *State) { s.IsLoading = false })
		return err
	}
	return nil
}

// adopt installs a token pair as the current session: persist (optional),
// mutate state, start the liveness monitor, publish. The epoch guard
// discards results that arrive after a logout tore the session down.
func (m *Manager) adopt(ctx context.Context, tokens *TokenPair, epoch uint64, persist bool) error {
	if tokens == nil || tokens.User == nil {
		return ErrAuthenticationFailed.Clone().WithMetadata(map[string]any{
			"reason": "server returned no user with token pair",
		})
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.Info("discarding stale auth result for %s", tokens.User.Email)
		return ErrSessionSuperseded
	}

	if tokens.ExpiresAt == nil && tokens.ExpiresIn > 0 {
		at := m.now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
		tokens.ExpiresAt = &at
	}

	if persist {
		if err := m.store.SaveTokens(ctx, tokens); err != nil {
			m.logger.Warn("failed to persist tokens: %v", err)
		}
	}

	m.state.User = tokens.User
	m.state.Tokens = tokens
	m.state.IsAuthenticated = true
	m.state.IsLoading = false
	m.startMonitorLocked()
	snapshot := m.state.Clone()
	m.mu.Unlock()

	m.stateSubs.publish(snapshot)
	return nil
}

// refreshWith performs the refresh grant and adopts the result. Failure is
// unrecoverable: the session is cleared and ErrSessionExpired returned.
func (m *Manager) refreshWith(ctx context.Context, refreshToken string, epoch uint64) error {
	tokens, err := m.api.RefreshToken(ctx, refreshToken)
	if err != nil {
		if cerr := m.clearSession(ctx); cerr != nil {
			m.logger.Warn("failed to clear session: %v", cerr)
		}
		return ErrSessionExpired.Clone().WithMetadata(map[string]any{
			"cause": err.Error(),
		})
	}

	if tokens != nil && tokens.User == nil {
		user, uerr := m.api.User(ctx, tokens.AccessToken)
		if uerr != nil {
			if cerr := m.clearSession(ctx); cerr != nil {
				m.logger.Warn("failed to clear session: %v", cerr)
			}
			return ErrSessionExpired.Clone().WithMetadata(map[string]any{
				"cause": uerr.Error(),
			})
		}
		tokens.User = user
	}

	return m.adopt(ctx, tokens, epoch, true)
}

// clearSession resets to the anonymous baseline: monitor stopped, store
// cleared, epoch bumped so in-flight results are discarded.
func (m *Manager) clearSession(ctx context.Context) error {
	m.mu.Lock()
	m.epoch++
	m.stopMonitorLocked()
	m.state = State{}
	snapshot := m.state.Clone()
	m.mu.Unlock()

	err := m.store.Clear(ctx)
	m.stateSubs.publish(snapshot)
	return err
}

// setState applies a mutation, re-derives the authenticated flag, and
// publishes the new snapshot.
func (m *Manager) setState(mutate func(*State)) {
	m.mu.Lock()
	mutate(&m.state)
	m.state.IsAuthenticated = m.state.User != nil
	snapshot := m.state.Clone()
	m.mu.Unlock()

	m.stateSubs.publish(snapshot)
}

func (m *Manager) emitError(err error) {
	if err == nil {
		return
	}
	message := err.Error()
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		message = richErr.Message
	}
	m.errorSubs.publish(ErrorEvent{Message: message, Err: err})
}

func (m *Manager) adminAPI() (AdminAPI, string, error) {
	m.mu.Lock()
	access := ""
	if m.state.Tokens != nil {
		access = m.state.Tokens.AccessToken
	}
	m.mu.Unlock()

	if access == "" {
		return nil, "", ErrNotAuthenticated
	}

	admin, ok := m.api.(AdminAPI)
	if !ok {
		return nil, "", ErrAdminUnsupported
	}
	return admin, access, nil
}

func (m *Manager) loadSlot(ctx context.Context, load func(context.Context) (string, error), name string) string {
	value, err := load(ctx)
	if err != nil {
		m.logger.Warn("failed to load cached %s: %v", name, err)
		return ""
	}
	return value
}

func parseCallbackInput(rawURL string) *url.URL {
	if rawURL == "" {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return u
}
