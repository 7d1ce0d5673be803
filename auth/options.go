package auth

import (
	"log/slog"
	"time"

	"github.com/earthdaily/earthone-go/httpx"
)

// defaultLeeway is the safety margin subtracted from a token's expiry to
// trigger proactive refresh.
const defaultLeeway = 500 * time.Second

type config struct {
	domain           string
	scope            []string
	leeway           time.Duration
	clientID         string
	clientSecret     string
	refreshToken     string
	jwtToken         string
	tokenInfoPath    string
	tokenInfoPathSet bool
	retry            *httpx.RetryPolicy
	sessionFactory   func() *httpx.Client
	now              func() time.Time
	logger           *slog.Logger
	suppressWarnings bool
}

func defaultConfig() config {
	return config{
		leeway: defaultLeeway,
		now:    time.Now,
	}
}

// Option customizes Auth construction.
type Option func(*config)

// WithDomain overrides the credential domain. The default comes from the
// selected environment settings and should normally not be changed.
func WithDomain(domain string) Option {
	return func(c *config) {
		if domain != "" {
			c.domain = domain
		}
	}
}

// WithScope requests specific access-token fields during refresh.
func WithScope(scope ...string) Option {
	return func(c *config) {
		if len(scope) > 0 {
			c.scope = append([]string{}, scope...)
		}
	}
}

// WithLeeway overrides the refresh leeway applied to token expiry.
func WithLeeway(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.leeway = d
		}
	}
}

// WithClientID supplies the OAuth client id, taking precedence over the
// corresponding environment variable and any cached credentials.
func WithClientID(id string) Option {
	return func(c *config) {
		c.clientID = id
	}
}

// WithClientSecret supplies the long-lived secret used to obtain access
// tokens. Identical to WithRefreshToken; use one or the other.
func WithClientSecret(secret string) Option {
	return func(c *config) {
		c.clientSecret = secret
	}
}

// WithRefreshToken supplies the long-lived refresh token. When both a
// client secret and a refresh token are given, the refresh token wins.
func WithRefreshToken(token string) Option {
	return func(c *config) {
		c.refreshToken = token
	}
}

// WithJWTToken supplies a short-lived access token to use until it
// expires.
func WithJWTToken(token string) Option {
	return func(c *config) {
		c.jwtToken = token
	}
}

// WithTokenInfoPath names the credential cache file. An empty path
// disables the cache entirely, like WithoutTokenInfo.
func WithTokenInfoPath(path string) Option {
	return func(c *config) {
		c.tokenInfoPath = path
		c.tokenInfoPathSet = true
	}
}

// WithoutTokenInfo disables credential caching; credentials must then be
// provided through environment variables or options.
func WithoutTokenInfo() Option {
	return func(c *config) {
		c.tokenInfoPath = ""
		c.tokenInfoPathSet = true
	}
}

// WithRetryPolicy overrides the retry behavior of the HTTP session.
func WithRetryPolicy(policy httpx.RetryPolicy) Option {
	return func(c *config) {
		c.retry = &policy
	}
}

// WithSessionFactory overrides how HTTP sessions are built. Used by tests
// and by callers that need custom transports.
func WithSessionFactory(factory func() *httpx.Client) Option {
	return func(c *config) {
		if factory != nil {
			c.sessionFactory = factory
		}
	}
}

// WithClock injects a deterministic clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger routes credential warnings to the given logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// SuppressWarnings silences the non-fatal warnings emitted during
// credential resolution.
func SuppressWarnings() Option {
	return func(c *config) {
		c.suppressWarnings = true
	}
}
