package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// customClaimPrefix marks tenant-specific claims in issued tokens. The
// prefix is stripped before claims are exposed to callers.
const customClaimPrefix = "earthdaily__dl__"

// Claims is the decoded payload segment of an access token. Token contents
// are issuer-defined, so claims stay an open mapping with typed accessors
// for the keys this package interprets.
type Claims map[string]any

// decodeClaims extracts the claims from a JWT-format token without
// verifying its signature. Verification happens server side; clients only
// need the payload to schedule refreshes and derive identity.
func decodeClaims(token string) (Claims, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidToken, len(segments))
	}

	raw, err := base64urlDecode(segments[1])
	if err != nil {
		return nil, fmt.Errorf("%w: decoding claims segment: %v", ErrInvalidToken, err)
	}

	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: parsing claims: %v", ErrInvalidToken, err)
	}

	return claims, nil
}

// base64urlDecode decodes a base64url segment, tolerating missing padding.
func base64urlDecode(s string) ([]byte, error) {
	if rem := len(s) % 4; rem > 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return base64.URLEncoding.DecodeString(s)
}

// stripCustomClaims renames prefixed custom claims to their bare names.
func (c Claims) stripCustomClaims() {
	for key, value := range c {
		if strings.HasPrefix(key, customClaimPrefix) {
			delete(c, key)
			c[strings.TrimPrefix(key, customClaimPrefix)] = value
		}
	}
}

// Expiration returns the exp claim in seconds since the epoch.
func (c Claims) Expiration() (float64, bool) {
	exp, ok := c["exp"].(float64)
	return exp, ok
}

func (c Claims) stringClaim(key string) string {
	s, _ := c[key].(string)
	return s
}

func (c Claims) Audience() string { return c.stringClaim("aud") }
func (c Claims) Subject() string  { return c.stringClaim("sub") }
func (c Claims) UserID() string   { return c.stringClaim("userid") }
func (c Claims) Org() string      { return c.stringClaim("org") }
func (c Claims) Email() string    { return c.stringClaim("email") }

// Groups returns the groups claim; non-string entries are skipped.
func (c Claims) Groups() []string {
	raw, ok := c["groups"].([]any)
	if !ok {
		return nil
	}
	groups := make([]string, 0, len(raw))
	for _, g := range raw {
		if s, ok := g.(string); ok {
			groups = append(groups, s)
		}
	}
	return groups
}

// expiredAt reports whether the token is within leeway of its expiry at
// the given instant. A token without an exp claim counts as expired.
func (c Claims) expiredAt(now time.Time, leeway time.Duration) bool {
	exp, ok := c.Expiration()
	if !ok {
		return true
	}
	return float64(now.Unix())+leeway.Seconds() > exp
}
