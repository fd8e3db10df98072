// Package session owns the lifecycle of an authenticated session against a
// GoTrue-compatible auth server: token storage, the bootstrap sequence, OAuth
// redirect callback resolution, periodic token-liveness checking, and the
// publish/subscribe channel that drives route guarding in the host app.
//
// Session lifecycle:
//   - Manager is the single process-wide authority over {user, tokens,
//     isAuthenticated, isLoading, redirectTo}. Construct it once at startup
//     and inject it into the router and UI layer; all mutation goes through
//     its entry points (Bootstrap, Login, Signup, Logout, Refresh, ...).
//   - Bootstrap reads the persistent store, validates the cached token with
//     the API, falls back to a refresh, and finally runs the callback
//     resolver, since an OAuth redirect may arrive with no prior session.
//
// Callback resolution:
//   - ParseCallbackURL turns a redirect URL into a tagged CallbackSource
//     (error, query tokens, authorization code, fragment tokens, or none).
//     Parsing is pure; the Manager applies the effects. An error parameter
//     short-circuits, query tokens beat a code, and the fragment is the last
//     resort.
//
// Liveness:
//   - A recurring monitor re-checks the access token while the session is
//     authenticated. The expiry policy is pluggable: the default decodes the
//     token's exp claim, a JWKS-backed policy verifies signatures too, and a
//     static policy keeps tests deterministic.
package session
