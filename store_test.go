package garth

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenPair() (*OAuth1Token, *OAuth2Token) {
	o1 := &OAuth1Token{
		Token:  "oauth1-token",
		Secret: "oauth1-secret",
		Domain: "garmin.com",
	}
	o2 := &OAuth2Token{
		Scope:       "CONNECT_READ CONNECT_WRITE",
		JTI:         "jti-value",
		TokenType:   "Bearer",
		AccessToken: "access-token",
		ExpiresIn:   3600,
		ExpiresAt:   time.Now().Unix() + 3600,
	}
	return o1, o2
}

func TestSaveLoadTokensRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tokens")
	o1, o2 := testTokenPair()
	o1.MFAToken = "mfa-token"

	require.NoError(t, SaveTokens(dir, o1, o2))

	got1, got2, err := LoadTokens(dir)
	require.NoError(t, err)
	assert.Equal(t, o1, got1)
	assert.Equal(t, o2, got2)
}

func TestSaveTokensUsesCompatibleJSONKeys(t *testing.T) {
	dir := t.TempDir()
	o1, o2 := testTokenPair()
	require.NoError(t, SaveTokens(dir, o1, o2))

	data, err := os.ReadFile(filepath.Join(dir, "oauth1_token.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"oauth_token"`)
	assert.Contains(t, string(data), `"oauth_token_secret"`)
	assert.Contains(t, string(data), `"domain"`)
	assert.NotContains(t, string(data), `"mfa_token"`, "empty MFA fields are omitted")

	data, err = os.ReadFile(filepath.Join(dir, "oauth2_token.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"access_token"`)
	assert.Contains(t, string(data), `"token_type"`)
	assert.Contains(t, string(data), `"expires_at"`)
}

func TestSaveOAuth2LeavesOAuth1FileUntouched(t *testing.T) {
	dir := t.TempDir()
	o1, o2 := testTokenPair()
	require.NoError(t, SaveTokens(dir, o1, o2))

	before, err := os.ReadFile(filepath.Join(dir, "oauth1_token.json"))
	require.NoError(t, err)

	o2.AccessToken = "refreshed-access-token"
	require.NoError(t, SaveOAuth2(dir, o2))

	after, err := os.ReadFile(filepath.Join(dir, "oauth1_token.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, got2, err := LoadTokens(dir)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access-token", got2.AccessToken)
}

func TestLoadTokensMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nope")
	_, _, err := LoadTokens(dir)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), dir, "the error names the missing directory")
}

func TestLoadTokensMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, o2 := testTokenPair()
	require.NoError(t, SaveOAuth2(dir, o2))

	_, _, err := LoadTokens(dir)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "oauth1_token.json", "the error names the missing file")
}

func TestLoadTokensCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oauth1_token.json"), []byte("{not json"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "oauth2_token.json"), []byte("{}"), 0600))

	_, _, err := LoadTokens(dir)
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, CodeParse, e.Code)
}

func TestDumpParseTokensRoundTrip(t *testing.T) {
	o1, o2 := testTokenPair()
	o1.MFAToken = "mfa"
	o1.MFAExpirationTimestamp = "2025-06-01T12:00:00"

	encoded, err := DumpTokens(o1, o2)
	require.NoError(t, err)

	got1, got2, err := ParseTokens(encoded)
	require.NoError(t, err)
	assert.Equal(t, o1, got1)
	assert.Equal(t, o2, got2)
}

func TestParseTokensAcceptsForeignEncoding(t *testing.T) {
	// A pair serialized by another implementation: a plain JSON array of
	// the two token objects, base64 encoded.
	raw := `[{"oauth_token":"t1","oauth_token_secret":"s1","domain":"garmin.cn"},` +
		`{"token_type":"bearer","access_token":"a1","expires_in":3600,"expires_at":1750000000}]`
	encoded := base64.StdEncoding.EncodeToString([]byte(raw))

	o1, o2, err := ParseTokens(encoded)
	require.NoError(t, err)
	assert.Equal(t, "t1", o1.Token)
	assert.Equal(t, "garmin.cn", o1.Domain)
	assert.Equal(t, "a1", o2.AccessToken)
	assert.Equal(t, int64(1750000000), o2.ExpiresAt)
}

func TestParseTokensRejectsGarbage(t *testing.T) {
	_, _, err := ParseTokens("not base64!!!")
	require.Error(t, err)

	_, _, err = ParseTokens(base64.StdEncoding.EncodeToString([]byte(`{"not":"array"}`)))
	require.Error(t, err)

	_, _, err = ParseTokens(base64.StdEncoding.EncodeToString([]byte(`[{}]`)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 tokens")
}

func TestSaveTokensLocksAndReleases(t *testing.T) {
	dir := t.TempDir()
	o1, o2 := testTokenPair()
	require.NoError(t, SaveTokens(dir, o1, o2))

	lockPath := filepath.Join(dir, ".garth.lock")
	_, err := os.Stat(lockPath)
	require.NoError(t, err, "the advisory lock file is created alongside the tokens")

	// The lock was released: it can be taken again immediately.
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	require.NoError(t, fl.Unlock())
}

func TestTokenDirLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	fl := flock.New(filepath.Join(dir, ".garth.lock"))
	locked, err := fl.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer fl.Unlock()

	// A writer cannot slip past a lock held elsewhere.
	held, err := flock.New(filepath.Join(dir, ".garth.lock")).TryLock()
	require.NoError(t, err)
	assert.False(t, held)
}

func TestSaveTokensCreatesDirWithTightPermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "tokens")
	o1, o2 := testTokenPair()
	require.NoError(t, SaveTokens(dir, o1, o2))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	finfo, err := os.Stat(filepath.Join(dir, "oauth2_token.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), finfo.Mode().Perm())
}
