package session

import (
	"context"
	"net/url"
	"strconv"
)

// DefaultExpiresIn is assumed when a callback encoding omits expires_in.
const DefaultExpiresIn = 3600

// CallbackSource is the tagged result of parsing a post-redirect URL.
// Exactly one variant applies per page load.
type CallbackSource interface {
	callbackSource()
}

// NoCallback means no OAuth callback is in progress.
type NoCallback struct{}

// CallbackError is the provider-reported failure (?error=...).
type CallbackError struct {
	Reason      string
	Description string
}

// QueryTokens carries tokens delivered as query parameters.
type QueryTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// AuthorizationCode carries a code to exchange with the auth server.
type AuthorizationCode struct {
	Code string
}

// FragmentTokens carries tokens delivered in the URL fragment, the implicit
// flow some providers still use.
type FragmentTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

func (NoCallback) callbackSource()        {}
func (CallbackError) callbackSource()     {}
func (QueryTokens) callbackSource()       {}
func (AuthorizationCode) callbackSource() {}
func (FragmentTokens) callbackSource()    {}

// ParseCallbackURL inspects the three transport encodings a redirect can use
// and returns the first that yields usable data:
//
//  1. ?error=...            -> CallbackError
//  2. ?access_token=...     -> QueryTokens
//  3. ?code=...             -> AuthorizationCode
//  4. #access_token=...     -> FragmentTokens (fragment parsed as a query)
//  5. none of the above     -> NoCallback
//
// Parsing is pure; resolution effects live on the Manager.
func ParseCallbackURL(u *url.URL) CallbackSource {
	if u == nil {
		return NoCallback{}
	}

	query := u.Query()

	if reason := query.Get("error"); reason != "" {
		return CallbackError{
			Reason:      reason,
			Description: query.Get("error_description"),
		}
	}

	if token := query.Get("access_token"); token != "" {
		return QueryTokens{
			AccessToken:  token,
			RefreshToken: query.Get("refresh_token"),
			ExpiresIn:    expiresIn(query.Get("expires_in")),
		}
	}

	if code := query.Get("code"); code != "" {
		return AuthorizationCode{Code: code}
	}

	if u.Fragment != "" {
		fragment, err := url.ParseQuery(u.Fragment)
		if err == nil {
			if token := fragment.Get("access_token"); token != "" {
				return FragmentTokens{
					AccessToken:  token,
					RefreshToken: fragment.Get("refresh_token"),
					ExpiresIn:    expiresIn(fragment.Get("expires_in")),
				}
			}
		}
	}

	return NoCallback{}
}

// ResolveCallback runs the OAuth callback resolver against a redirect URL
// that arrived after Bootstrap, the shape a loopback listener sees in native
// flows. Failures are published on the error channel and also returned so
// the listener can report the outcome.
func (m *Manager) ResolveCallback(ctx context.Context, rawURL string) error {
	u := parseCallbackInput(rawURL)
	if u == nil {
		return nil
	}
	return m.resolveCallback(ctx, u)
}

// resolveCallback applies the effects of a parsed callback: exchanging or
// adopting credentials, fetching the user, persisting, scrubbing the visible
// URL, and pointing the router at the landing path. Failures are published
// on the error channel and always end with the login redirect and
// IsLoading=false.
func (m *Manager) resolveCallback(ctx context.Context, u *url.URL) error {
	source := ParseCallbackURL(u)

	switch src := source.(type) {
	case NoCallback:
		return nil

	case CallbackError:
		m.logger.Warn("oauth callback error: %s", src.Reason)
		err := ErrAuthenticationFailed.Clone().WithMetadata(map[string]any{
			"reason":      src.Reason,
			"description": src.Description,
		})
		m.failCallback(err)
		return err
	}

	epoch := m.beginLoading()

	tokens, err := m.callbackTokens(ctx, source)
	if err != nil {
		m.failCallback(err)
		return err
	}

	if tokens.User == nil {
		user, uerr := m.api.User(ctx, tokens.AccessToken)
		if uerr != nil {
			m.failCallback(uerr)
			return uerr
		}
		tokens.User = user
	}

	if err := m.adopt(ctx, tokens, epoch, true); err != nil {
		if hasTextCode(err, TextCodeSuperseded) {
			m.transient.ClearProvider()
			return err
		}
		m.failCallback(err)
		return err
	}

	m.transient.ClearProvider()
	m.navigator.Replace(m.homePath)
	m.setState(func(s *State) { s.RedirectTo = m.homePath })
	return nil
}

// callbackTokens normalizes the three token-bearing variants into a pair.
func (m *Manager) callbackTokens(ctx context.Context, source CallbackSource) (*TokenPair, error) {
	switch src := source.(type) {
	case QueryTokens:
		return &TokenPair{
			AccessToken:  src.AccessToken,
			RefreshToken: src.RefreshToken,
			ExpiresIn:    src.ExpiresIn,
			TokenType:    "bearer",
		}, nil

	case AuthorizationCode:
		tokens, err := m.api.ExchangeCode(ctx, src.Code, m.transient.Provider())
		if err != nil {
			return nil, err
		}
		return tokens, nil

	case FragmentTokens:
		return &TokenPair{
			AccessToken:  src.AccessToken,
			RefreshToken: src.RefreshToken,
			ExpiresIn:    src.ExpiresIn,
			TokenType:    "bearer",
		}, nil
	}

	return nil, ErrInvalidCallback
}

// failCallback is the single failure path: transient marker cleared, visible
// URL scrubbed, router pointed at login, error published. The state never
// stays loading.
func (m *Manager) failCallback(err error) {
	m.transient.ClearProvider()
	m.navigator.Replace(m.loginPath)
	m.setState(func(s *State) {
		s.IsLoading = false
		s.RedirectTo = m.loginPath
	})
	m.emitError(err)
}

func expiresIn(raw string) int {
	if raw == "" {
		return DefaultExpiresIn
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return DefaultExpiresIn
	}
	return n
}
