package auth

import (
	"os"

	"github.com/caarlos0/env/v11"
)

// envCredentials is the snapshot of credential environment variables taken
// once at resolution time. CLIENT_ID and CLIENT_SECRET are legacy aliases
// kept for backward compatibility.
type envCredentials struct {
	ClientID           string `env:"EARTHONE_CLIENT_ID"`
	ClientSecret       string `env:"EARTHONE_CLIENT_SECRET"`
	RefreshToken       string `env:"EARTHONE_REFRESH_TOKEN"`
	Token              string `env:"EARTHONE_TOKEN"`
	TokenInfoPath      string `env:"EARTHONE_TOKEN_INFO_PATH"`
	LegacyClientID     string `env:"CLIENT_ID"`
	LegacyClientSecret string `env:"CLIENT_SECRET"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveCredentials merges explicit options, environment variables, and
// cached file contents into one consistent credential set on a.
//
// Credentials supplied through options or the environment are "explicit"
// and take precedence over anything cached; only then may an explicitly
// requested cache file contribute its stored token, or a derived
// per-secret cache file stand in when no path was requested. With no
// explicit credentials at all, the entire set comes from the cache file.
func (a *Auth) resolveCredentials(cfg config) {
	var envs envCredentials
	if err := env.Parse(&envs); err != nil {
		a.warn("unable to parse credential environment variables", "error", err)
	}

	a.clientID = firstNonEmpty(cfg.clientID, envs.ClientID, envs.LegacyClientID)
	a.clientSecret = firstNonEmpty(cfg.clientSecret, envs.ClientSecret, envs.LegacyClientSecret)
	a.refreshToken = firstNonEmpty(cfg.refreshToken, envs.RefreshToken)
	a.token = firstNonEmpty(cfg.jwtToken, envs.Token)
	a.scope = cfg.scope

	// An explicitly requested path is distinct from the resolved default:
	// only the former may be adopted wholesale in explicit mode.
	explicitPath := cfg.tokenInfoPathSet
	if explicitPath {
		a.tokenInfoPath = cfg.tokenInfoPath
	} else {
		a.tokenInfoPath = firstNonEmpty(envs.TokenInfoPath, defaultTokenInfoPath())
	}

	if a.refreshToken == "" {
		a.refreshToken = a.clientSecret
	}

	var info tokenInfo

	switch {
	case a.clientID != "" || a.refreshToken != "" || a.token != "":
		// Credentials were provided through options or the environment.
		if explicitPath && a.tokenInfoPath != "" {
			if _, err := os.Stat(a.tokenInfoPath); err == nil {
				info = a.readTokenInfo(a.tokenInfoPath, cfg.suppressWarnings)
				if a.token == "" && a.clientID == info.ClientID && a.refreshToken == info.RefreshToken {
					a.token = info.JWTToken
				}
			}
		} else if a.refreshToken != "" && a.tokenInfoPath != "" {
			// Cache the short-lived token in a file unique to the refresh
			// token, without ever writing the secret itself.
			a.tokenInfoPath = derivedTokenInfoPath(a.refreshToken)
			if a.token != "" {
				a.writeTokenInfo(a.tokenInfoPath, tokenInfo{JWTToken: a.token})
			} else {
				a.token = a.readTokenInfo(a.tokenInfoPath, true).JWTToken
			}
		}
	case a.tokenInfoPath != "":
		// The entire credential set comes from the cache file.
		info = a.readTokenInfo(a.tokenInfoPath, cfg.suppressWarnings)
		a.clientID = info.ClientID
		a.clientSecret = info.ClientSecret
		a.refreshToken = info.RefreshToken
		a.token = firstNonEmpty(info.AltJWTToken, info.JWTToken)
	}

	if a.clientSecret != "" && a.refreshToken != "" && a.clientSecret != a.refreshToken {
		a.warn("authentication token mismatch: both the client secret and the refresh token " +
			"are provided but differ in value; the refresh token will be used for authentication")
	}

	// The two are synonyms; the refresh token has precedence.
	if a.refreshToken != "" {
		a.clientSecret = a.refreshToken
	} else if a.clientSecret != "" {
		a.refreshToken = a.clientSecret
	}

	if a.scope == nil {
		a.scope = info.Scope
	}

	// Discard a token that does not decode, is already expired, or was
	// issued for a different client; lifecycle management will refresh.
	if a.token != "" {
		claims, err := decodeClaims(a.token)
		if err != nil ||
			claims.expiredAt(a.now(), 0) ||
			(a.clientID != "" && claims.Audience() != a.clientID) {
			a.token = ""
		}
	}

	if !cfg.suppressWarnings && a.token == "" && (a.clientID == "" || a.refreshToken == "") {
		a.warn(authorizationError(""))
	}
}
