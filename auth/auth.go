// Package auth manages the credentials and short-lived access tokens used
// to authenticate against all EarthOne service APIs.
//
// By default and without options, credentials are read from a token-info
// file created by the CLI login flow. Short-lived tokens, or a client id
// with a refresh token, can instead be supplied through options or the
// EARTHONE_* environment variables; tokens obtained from a refresh token
// are cached on disk between processes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	pkgconfig "github.com/earthdaily/earthone-go/config"
	"github.com/earthdaily/earthone-go/httpx"
	"github.com/earthdaily/earthone-go/internal/logging"
)

var (
	// ErrInvalidToken indicates a token that cannot be decoded or carries
	// unusable claims.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrNoCredentials indicates incomplete local credential material.
	ErrNoCredentials = errors.New("auth: no valid authentication info found")

	// ErrTokenExchange indicates that the remote token endpoint failed or
	// returned no usable token.
	ErrTokenExchange = errors.New("auth: token exchange failed")
)

// legacyDelegationClientIDs only covers the original DL production tenant,
// and must remain in place until that tenant is completely replaced.
var legacyDelegationClientIDs = []string{"ZOBAi4UROl5gKZIpxxlwOEfx8KpqXf2c"}

var defaultLegacyScope = []string{"openid", "name", "groups", "org", "email"}

const (
	grantTypeRefreshToken = "refresh_token"
	grantTypeJWTBearer    = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// refreshTimeout bounds the token endpoint call.
	refreshTimeout = 100 * time.Second
)

func authorizationError(detail string) string {
	return fmt.Sprintf("no valid authentication info found%s; "+
		"see https://docs.earthone.earthdaily.com/authentication.html", detail)
}

var packageLogger = sync.OnceValue(func() *slog.Logger {
	return logging.NewLogger(os.Getenv("EARTHONE_ENV"))
})

// Auth holds one resolved credential set and keeps its access token fresh.
// It is safe for concurrent use. Two goroutines may decide to refresh at
// the same time; both exchanges succeed and the last write wins, in memory
// and on disk.
type Auth struct {
	domain        string
	leeway        time.Duration
	clientID      string
	clientSecret  string
	refreshToken  string
	scope         []string
	tokenInfoPath string

	retry    httpx.RetryPolicy
	sessions *sessionRegistry
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	token    string
	identity identityCache
}

// New resolves credentials from options, environment variables, and the
// token-info cache file, in that order of precedence. Missing or corrupt
// persisted state is reported as a warning, never an error: a credential
// set that cannot authenticate only fails once a token is actually
// requested.
func New(opts ...Option) (*Auth, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	a := &Auth{
		leeway: cfg.leeway,
		now:    cfg.now,
		logger: cfg.logger,
	}
	if a.logger == nil {
		a.logger = packageLogger()
	}
	if cfg.retry != nil {
		a.retry = *cfg.retry
	} else {
		a.retry = httpx.DefaultRetryPolicy()
	}

	a.resolveCredentials(cfg)

	a.domain = cfg.domain
	if a.domain == "" {
		settings, err := pkgconfig.GetSettings()
		if err != nil {
			return nil, err
		}
		a.domain = settings.IamURL
	}

	factory := cfg.sessionFactory
	if factory == nil {
		factory = a.buildSession
	}
	a.sessions = newSessionRegistry(factory)

	return a, nil
}

var (
	defaultMu   sync.Mutex
	defaultAuth *Auth
)

// Default returns the process-wide Auth used whenever a client does not
// carry its own, creating it on first access.
func Default() (*Auth, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultAuth == nil {
		a, err := New()
		if err != nil {
			return nil, err
		}
		defaultAuth = a
	}

	return defaultAuth, nil
}

// SetDefault replaces the process-wide Auth.
func SetDefault(a *Auth) {
	defaultMu.Lock()
	defaultAuth = a
	defaultMu.Unlock()
}

// Domain returns the credential domain the token endpoint lives under.
func (a *Auth) Domain() string { return a.domain }

// ClientID returns the resolved OAuth client id, if any.
func (a *Auth) ClientID() string { return a.clientID }

// RefreshToken returns the resolved long-lived refresh token, if any.
func (a *Auth) RefreshToken() string { return a.refreshToken }

func (a *Auth) warn(msg string, args ...any) {
	a.logger.Warn(msg, args...)
}

// Token returns the short-lived access token, refreshing it when it is
// absent or within leeway of its expiry. When a refresh fails but the
// token has not passed its true expiry, the stale token keeps being
// served: short token-endpoint outages stay invisible to callers.
func (a *Auth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	token := a.token
	a.mu.Unlock()

	if token == "" {
		if err := a.refresh(ctx); err != nil {
			return "", err
		}
	} else {
		claims, err := decodeClaims(token)
		if err != nil {
			return "", err
		}
		if claims.expiredAt(a.now(), a.leeway) {
			if err := a.refresh(ctx); err != nil && claims.expiredAt(a.now(), 0) {
				return "", err
			}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token, nil
}

// refresh exchanges the refresh token for a new access token, stores it,
// invalidates the derived identity fields, and persists the updated
// credential set.
func (a *Auth) refresh(ctx context.Context) error {
	if a.clientID == "" {
		return fmt.Errorf("%w (no client_id)", ErrNoCredentials)
	}
	if a.clientSecret == "" && a.refreshToken == "" {
		return fmt.Errorf("%w (no client_secret or refresh_token)", ErrNoCredentials)
	}

	var params map[string]string
	if isLegacyDelegationClientID(a.clientID) {
		scope := a.scope
		if scope == nil {
			scope = defaultLegacyScope
		}
		params = map[string]string{
			"scope":         strings.Join(scope, " "),
			"client_id":     a.clientID,
			"grant_type":    grantTypeJWTBearer,
			"target":        a.clientID,
			"api_type":      "app",
			"refresh_token": a.refreshToken,
		}
	} else {
		params = map[string]string{
			"client_id":     a.clientID,
			"grant_type":    grantTypeRefreshToken,
			"refresh_token": a.refreshToken,
		}
		if a.scope != nil {
			params["scope"] = strings.Join(a.scope, " ")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	var result struct {
		AccessToken string `json:"access_token"`
		IDToken     string `json:"id_token"`
	}
	if _, err := a.Session().Post(ctx, "/token", params, &result); err != nil {
		return fmt.Errorf("%w: could not retrieve token: %v", ErrTokenExchange, err)
	}

	// IAM only returns an id_token these days; access_token is preferred
	// when present.
	token := result.AccessToken
	if token == "" {
		token = result.IDToken
	}
	if token == "" {
		return fmt.Errorf("%w: response contained no token", ErrTokenExchange)
	}

	a.mu.Lock()
	a.token = token
	a.identity = identityCache{}
	a.mu.Unlock()

	if a.tokenInfoPath != "" {
		info := a.readTokenInfo(a.tokenInfoPath, true)
		if info.ClientID != a.clientID || info.ClientSecret != a.clientSecret {
			// Not matching; better rewrite.
			info = tokenInfo{
				ClientID:     a.clientID,
				ClientSecret: a.clientSecret,
				RefreshToken: a.refreshToken,
			}
		}
		info.JWTToken = token
		info.AltJWTToken = ""
		a.writeTokenInfo(a.tokenInfoPath, info)
	}

	return nil
}

func isLegacyDelegationClientID(clientID string) bool {
	for _, id := range legacyDelegationClientIDs {
		if clientID == id {
			return true
		}
	}
	return false
}
