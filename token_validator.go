package session

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// ExpiryPolicy decides whether the held access token is stale. The liveness
// monitor consults it on every tick.
type ExpiryPolicy interface {
	IsExpired(tokens *TokenPair, now time.Time) bool
}

// ExpiryPolicyFunc adapts a function into an ExpiryPolicy.
type ExpiryPolicyFunc func(tokens *TokenPair, now time.Time) bool

// IsExpired satisfies the ExpiryPolicy interface.
func (f ExpiryPolicyFunc) IsExpired(tokens *TokenPair, now time.Time) bool {
	if f == nil {
		return false
	}
	return f(tokens, now)
}

// DefaultExpiryLeeway is subtracted from the exp claim so a refresh lands
// before the server starts rejecting the token.
const DefaultExpiryLeeway = 30 * time.Second

// DecodeExpiry reads the exp claim of the access token without verifying the
// signature; the server remains the authority on validity, this only decides
// when to refresh. Falls back to the locally tracked ExpiresAt hint when the
// token is not a JWT, and reports "not expired" when neither is available.
type DecodeExpiry struct {
	Leeway time.Duration
}

var _ ExpiryPolicy = DecodeExpiry{}

// IsExpired satisfies the ExpiryPolicy interface.
func (p DecodeExpiry) IsExpired(tokens *TokenPair, now time.Time) bool {
	if tokens == nil || tokens.AccessToken == "" {
		return false
	}

	leeway := p.Leeway
	if leeway == 0 {
		leeway = DefaultExpiryLeeway
	}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokens.AccessToken, &claims); err == nil {
		if claims.ExpiresAt != nil {
			return !now.Add(leeway).Before(claims.ExpiresAt.Time)
		}
	}

	if tokens.ExpiresAt != nil {
		return !now.Add(leeway).Before(*tokens.ExpiresAt)
	}

	return false
}

// JWKSExpiry verifies the access token against a JWK Set in addition to the
// expiry check, for servers that publish /.well-known/jwks.json. A token that
// fails verification is treated as stale so the monitor refreshes it.
type JWKSExpiry struct {
	jwks *keyfunc.JWKS
}

var _ ExpiryPolicy = (*JWKSExpiry)(nil)

// NewJWKSExpiry fetches the key set from jwksURL.
func NewJWKSExpiry(jwksURL string) (*JWKSExpiry, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to fetch JWK set")
	}
	return &JWKSExpiry{jwks: jwks}, nil
}

// IsExpired satisfies the ExpiryPolicy interface.
func (p *JWKSExpiry) IsExpired(tokens *TokenPair, now time.Time) bool {
	if tokens == nil || tokens.AccessToken == "" {
		return false
	}

	token, err := jwt.Parse(tokens.AccessToken, p.jwks.Keyfunc, jwt.WithTimeFunc(func() time.Time {
		return now
	}))
	if err != nil || !token.Valid {
		return true
	}

	return DecodeExpiry{}.IsExpired(tokens, now)
}

// Close releases the background key refresh goroutine.
func (p *JWKSExpiry) Close() {
	if p.jwks != nil {
		p.jwks.EndBackground()
	}
}

// StaticExpiry always answers the same; useful in tests and as the
// conservative never-expires policy.
type StaticExpiry bool

var _ ExpiryPolicy = StaticExpiry(false)

// IsExpired satisfies the ExpiryPolicy interface.
func (s StaticExpiry) IsExpired(*TokenPair, time.Time) bool {
	return bool(s)
}
