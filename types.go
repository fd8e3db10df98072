package session

import (
	"context"
	"fmt"
	"time"
)

// Logger is the minimal logging surface the session core needs. Hosts can
// adapt any structured logger behind it.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// API is the request/response contract of the auth server collaborator. All
// network methods fail with a rich error carrying a machine-readable code;
// the core treats any such failure as non-retryable within the same call.
type API interface {
	Signup(ctx context.Context, data SignupData) (*TokenPair, error)
	Login(ctx context.Context, creds Credentials) (*TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
	User(ctx context.Context, accessToken string) (*User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	// AuthorizeURL builds the provider authorization URL. Pure, no network.
	AuthorizeURL(provider string) string
	ExchangeCode(ctx context.Context, code, provider string) (*TokenPair, error)
}

// AdminAPI is the optional admin surface of the auth server. The Manager
// type-asserts its API against it for the admin passthrough operations.
type AdminAPI interface {
	Users(ctx context.Context, accessToken string) ([]*AdminUser, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch, accessToken string) (*User, error)
}

// Store persists the current session's credentials and user snapshot across
// process restarts as three independent entries. Loads return the zero value
// when the entry is unset or unparsable; a corrupt record is absent, never
// fatal. Errors are reserved for infrastructure failures.
type Store interface {
	SaveTokens(ctx context.Context, tokens *TokenPair) error
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	User(ctx context.Context) (*User, error)
	Clear(ctx context.Context) error
}

// TransientStore keeps the per-tab OAuth provider marker. It is never
// durable; losing it only degrades callback disambiguation.
type TransientStore interface {
	SetProvider(provider string)
	Provider() string
	ClearProvider()
}

// Navigator lets the core instruct its host to change the visible location.
// Replace is the history-replace analog (no reload), Assign a full
// navigation. The default implementation does nothing.
type Navigator interface {
	Replace(url string)
	Assign(url string)
}

// Scheduler produces recurring ticks for the liveness monitor. Every returns
// a stop function; stopping must be idempotent. Tests supply a manual
// implementation to drive ticks explicitly.
type Scheduler interface {
	Every(interval time.Duration, tick func()) (stop func())
}

// Unsubscribe removes a previously registered event handler. Safe to call
// more than once and during an emission.
type Unsubscribe func()

// ErrorEvent is the payload delivered to error subscribers.
type ErrorEvent struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// DefaultLogger returns the stdout logger used when no Logger is supplied.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SESSION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

type noopNavigator struct{}

func (noopNavigator) Replace(string) {}
func (noopNavigator) Assign(string)  {}

type tickerScheduler struct{}

func (tickerScheduler) Every(interval time.Duration, tick func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				tick()
			case <-done:
				return
			}
		}
	}()

	var stopped bool
	return func() {
		if stopped {
			return
		}
		stopped = true
		ticker.Stop()
		close(done)
	}
}
