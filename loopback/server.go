// Package loopback runs a localhost HTTP listener that catches the OAuth
// provider redirect for native hosts that have no browser-resident router.
// Providers that deliver credentials in the URL fragment never send them to
// a server, so the listener first serves a small page that re-submits the
// fragment as query parameters, then hands the full callback URL to the
// session manager and reports the resolution outcome.
package loopback

import (
	"context"
	"net"
	"net/url"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-session"
)

// DefaultCallbackPath is where the provider redirect lands.
const DefaultCallbackPath = "/callback"

// Resolver consumes a caught callback URL. *session.Manager satisfies it.
type Resolver interface {
	ResolveCallback(ctx context.Context, rawURL string) error
}

var _ Resolver = (*session.Manager)(nil)

// Server is the loopback redirect catcher.
type Server struct {
	resolver Resolver
	logger   session.Logger
	path     string
	addr     string

	app      *fiber.App
	listener net.Listener
	results  chan error
}

// Option customizes the listener.
type Option func(*Server)

// WithLogger overrides the default stdout logger.
func WithLogger(logger session.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCallbackPath overrides the redirect path. It must match the
// redirect_to registered with the auth server.
func WithCallbackPath(path string) Option {
	return func(s *Server) {
		if path != "" {
			s.path = path
		}
	}
}

// WithAddr overrides the listen address. The default binds a random port on
// the loopback interface.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// New creates a Server that forwards caught callbacks to resolver.
func New(resolver Resolver, opts ...Option) (*Server, error) {
	if resolver == nil {
		return nil, goerrors.New("callback resolver is required", goerrors.CategoryBadInput)
	}

	s := &Server{
		resolver: resolver,
		logger:   session.DefaultLogger(),
		path:     DefaultCallbackPath,
		addr:     "127.0.0.1:0",
		results:  make(chan error, 1),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	s.app.Get(s.path, s.handleCallback)

	return s, nil
}

// Start binds the listener and begins serving in the background. Call
// RedirectURL after Start to learn the bound address.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to bind loopback listener")
	}
	s.listener = listener

	go func() {
		if err := s.app.Listener(listener); err != nil {
			s.logger.Warn("loopback listener stopped: %v", err)
		}
	}()

	s.logger.Info("loopback listener on %s", s.RedirectURL())
	return nil
}

// RedirectURL is the URL to register as redirect_to with the auth server.
// Empty before Start.
func (s *Server) RedirectURL() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String() + s.path
}

// Wait blocks until a callback has been caught and resolved, or ctx is done.
// The error is whatever resolution produced.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case err := <-s.results:
		return err
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "no callback received")
	}
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleCallback(c *fiber.Ctx) error {
	raw := string(c.Request().URI().QueryString())

	query, err := url.ParseQuery(raw)
	if err != nil {
		query = url.Values{}
	}

	// Nothing in the query string: either the provider used the fragment
	// encoding, which only client-side script can read, or the user opened
	// the path by hand. Serve the forwarder page either way.
	if query.Get("access_token") == "" && query.Get("code") == "" && query.Get("error") == "" {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(forwarderPage)
	}

	callbackURL := &url.URL{Path: s.path, RawQuery: raw}
	resolveErr := s.resolver.ResolveCallback(c.Context(), callbackURL.String())

	select {
	case s.results <- resolveErr:
	default:
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	if resolveErr != nil {
		s.logger.Warn("callback resolution failed: %v", resolveErr)
		return c.Status(fiber.StatusUnauthorized).SendString(failurePage)
	}
	return c.SendString(successPage)
}

// forwarderPage re-submits fragment-delivered credentials as query
// parameters so they reach the listener.
const forwarderPage = `<!doctype html>
<html>
<head><title>Signing in...</title></head>
<body>
<p>Completing sign in...</p>
<script>
  var fragment = window.location.hash.replace(/^#/, "");
  if (fragment) {
    window.location.replace(window.location.pathname + "?" + fragment);
  } else {
    document.body.textContent = "No credentials found in the redirect.";
  }
</script>
</body>
</html>`

const successPage = `<!doctype html>
<html>
<head><title>Signed in</title></head>
<body><p>Signed in. You can close this window.</p></body>
</html>`

const failurePage = `<!doctype html>
<html>
<head><title>Sign in failed</title></head>
<body><p>Sign in failed. You can close this window and try again.</p></body>
</html>`
