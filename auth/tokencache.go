package auth

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	tokenInfoDirName  = ".earthone"
	tokenInfoFileName = "token_info.json"

	// jwtTokenFilePrefix names the derived per-refresh-token cache files.
	// Those files hold only the access token, never the secret.
	jwtTokenFilePrefix = "jwt_token_"

	// envNoJWTCache disables all cache-file reads when set to "true",
	// simulating a stateless environment.
	envNoJWTCache = "EARTHONE_NO_JWT_CACHE"
)

// tokenInfo is the on-disk persisted shape of a credential set. The field
// names are a fixed wire contract shared with the CLI login flow.
type tokenInfo struct {
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	JWTToken     string   `json:"jwt_token,omitempty"`
	AltJWTToken  string   `json:"JWT_TOKEN,omitempty"`
	Scope        []string `json:"scope,omitempty"`
}

func defaultTokenInfoDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, tokenInfoDirName)
}

func defaultTokenInfoPath() string {
	dir := defaultTokenInfoDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, tokenInfoFileName)
}

// derivedTokenInfoPath names the cache file for a refresh token supplied
// directly, keyed by digest so different credentials never collide.
func derivedTokenInfoPath(refreshToken string) string {
	dir := defaultTokenInfoDir()
	if dir == "" {
		return ""
	}
	sum := sha1.Sum([]byte(refreshToken))
	return filepath.Join(dir, jwtTokenFilePrefix+hex.EncodeToString(sum[:])+".json")
}

// isDerivedTokenInfoPath reports whether path names a per-secret cache
// file, which must never hold credential material.
func isDerivedTokenInfoPath(path string) bool {
	return strings.Contains(filepath.Base(path), jwtTokenFilePrefix)
}

// readTokenInfo loads a token-info file. Every failure mode (missing file,
// bad JSON, permissions) degrades to an empty value with a suppressible
// warning; persisted state being unavailable must never fail the caller.
func (a *Auth) readTokenInfo(path string, suppressWarning bool) tokenInfo {
	var info tokenInfo

	if strings.EqualFold(os.Getenv(envNoJWTCache), "true") {
		return info
	}

	data, err := os.ReadFile(path)
	if err == nil {
		err = json.Unmarshal(data, &info)
	}
	if err != nil {
		info = tokenInfo{}
		if !suppressWarning {
			a.warn("unable to read token info", "path", path, "error", err)
		}
	}

	return info
}

// writeTokenInfo persists a token-info file crash-safely: the payload goes
// to a uniquely named temp file in the destination directory and is
// renamed into place, so concurrent readers never observe a partial file.
// Failures warn and are swallowed; a cache write must not block token
// acquisition.
func (a *Auth) writeTokenInfo(path string, info tokenInfo) {
	if isDerivedTokenInfoPath(path) {
		info = tokenInfo{JWTToken: info.JWTToken}
	}

	if err := writeFileAtomic(path, info); err != nil && !isDerivedTokenInfoPath(path) {
		a.warn("failed to save token", "path", path, "error", err)
	}
}

func writeFileAtomic(path string, info tokenInfo) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.Marshal(info)
	if err != nil {
		return err
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s", filepath.Base(path), randomSuffix()))
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		// Windows refuses to rename over an existing file.
		if rmErr := os.Remove(path); rmErr == nil {
			err = os.Rename(tmp, path)
		}
		if err != nil {
			os.Remove(tmp)
			return err
		}
	}

	return nil
}

func randomSuffix() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "tmp"
	}
	return hex.EncodeToString(buf[:])
}
