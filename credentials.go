// Package garth is an authenticated HTTP client for the Garmin Connect
// API. It drives Garmin's SSO web login to mint an OAuth1/OAuth2 token
// pair, persists the pair in a format shared with the Python garth
// library, and transparently refreshes the short-lived OAuth2 token.
package garth

import (
	"strings"
	"time"
)

// timeNow is swapped in tests to simulate token expiry.
var timeNow = time.Now

// OAuth1Token is the long-lived (~1 year) credential obtained by
// exchanging an SSO ticket. It is used only to mint OAuth2 tokens.
// The JSON keys are a compatibility contract with the Python garth
// token files and must not change.
type OAuth1Token struct {
	Token                  string `json:"oauth_token"`
	Secret                 string `json:"oauth_token_secret"`
	MFAToken               string `json:"mfa_token,omitempty"`
	MFAExpirationTimestamp string `json:"mfa_expiration_timestamp,omitempty"`
	Domain                 string `json:"domain"`
}

// OAuth2Token is the short-lived (~20 hours) bearer token attached to
// every API call. Same key contract as OAuth1Token.
type OAuth2Token struct {
	Scope                 string `json:"scope,omitempty"`
	JTI                   string `json:"jti,omitempty"`
	TokenType             string `json:"token_type"`
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token,omitempty"`
	ExpiresIn             int64  `json:"expires_in"`
	ExpiresAt             int64  `json:"expires_at"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in,omitempty"`
	RefreshTokenExpiresAt int64  `json:"refresh_token_expires_at,omitempty"`
}

// normalize fills derived fields after construction or decoding.
// ExpiresAt is always populated: when the server only supplied the
// relative expires_in, the absolute timestamps are anchored to now.
func (t *OAuth2Token) normalize() {
	if t.TokenType == "" {
		t.TokenType = "Bearer"
	}
	now := timeNow().Unix()
	if t.ExpiresAt == 0 {
		t.ExpiresAt = now + t.ExpiresIn
	}
	if t.RefreshTokenExpiresAt == 0 && t.RefreshTokenExpiresIn > 0 {
		t.RefreshTokenExpiresAt = now + t.RefreshTokenExpiresIn
	}
}

// Expired reports whether the access token has passed its absolute
// expiry. No grace period; re-evaluated on every call.
func (t *OAuth2Token) Expired() bool {
	return timeNow().Unix() >= t.ExpiresAt
}

// RefreshExpired reports whether the refresh token (if any) has expired.
func (t *OAuth2Token) RefreshExpired() bool {
	return t.RefreshTokenExpiresAt != 0 && timeNow().Unix() >= t.RefreshTokenExpiresAt
}

// Authorization renders the Authorization header value. The token type
// is title-cased because Garmin's servers reject lowercase "bearer".
func (t *OAuth2Token) Authorization() string {
	return titleCase(t.TokenType) + " " + t.AccessToken
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
