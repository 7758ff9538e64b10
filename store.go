package garth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Token file names inside a token directory. Fixed: the Python garth
// library reads and writes the same files.
const (
	oauth1FileName = "oauth1_token.json"
	oauth2FileName = "oauth2_token.json"
	lockFileName   = ".garth.lock"
)

// SaveTokens writes both tokens to dir as pretty-printed JSON, creating
// the directory if needed. Overwrites existing files.
func SaveTokens(dir string, o1 *OAuth1Token, o2 *OAuth2Token) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	unlock, err := lockDir(dir)
	if err != nil {
		return err
	}
	defer unlock()

	if err := writeTokenFile(filepath.Join(dir, oauth1FileName), o1); err != nil {
		return err
	}
	return writeTokenFile(filepath.Join(dir, oauth2FileName), o2)
}

// SaveOAuth2 rewrites only the OAuth2 token file. Used after a refresh,
// when the OAuth1 token is unchanged and should not be rewritten.
func SaveOAuth2(dir string, o2 *OAuth2Token) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	unlock, err := lockDir(dir)
	if err != nil {
		return err
	}
	defer unlock()

	return writeTokenFile(filepath.Join(dir, oauth2FileName), o2)
}

// LoadTokens reads both token files from dir. A missing directory or a
// missing file yields a credentials-not-found error naming what is
// absent.
func LoadTokens(dir string) (*OAuth1Token, *OAuth2Token, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, nil, ErrCredentialsNotFound(dir)
	}
	unlock, err := lockDir(dir)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var o1 OAuth1Token
	if err := readTokenFile(filepath.Join(dir, oauth1FileName), &o1); err != nil {
		return nil, nil, err
	}
	var o2 OAuth2Token
	if err := readTokenFile(filepath.Join(dir, oauth2FileName), &o2); err != nil {
		return nil, nil, err
	}
	o2.normalize()
	return &o1, &o2, nil
}

// DumpTokens serializes the pair as base64(JSON [oauth1, oauth2]).
// The output is interchangeable with garth.Client.dumps in Python.
func DumpTokens(o1 *OAuth1Token, o2 *OAuth2Token) (string, error) {
	data, err := json.Marshal([]any{o1, o2})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ParseTokens reverses DumpTokens.
func ParseTokens(encoded string) (*OAuth1Token, *OAuth2Token, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, ErrParse("invalid token string: not base64", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, ErrParse("invalid token string: not a JSON array", err)
	}
	if len(raw) != 2 {
		return nil, nil, ErrParse(fmt.Sprintf("invalid token string: expected 2 tokens, got %d", len(raw)), nil)
	}
	var o1 OAuth1Token
	if err := json.Unmarshal(raw[0], &o1); err != nil {
		return nil, nil, ErrParse("invalid oauth1 token", err)
	}
	var o2 OAuth2Token
	if err := json.Unmarshal(raw[1], &o2); err != nil {
		return nil, nil, ErrParse("invalid oauth2 token", err)
	}
	o2.normalize()
	return &o1, &o2, nil
}

func writeTokenFile(path string, token any) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

func readTokenFile(path string, token any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrCredentialsNotFound(path)
		}
		return err
	}
	if err := json.Unmarshal(data, token); err != nil {
		return ErrParse("invalid token file "+path, err)
	}
	return nil
}

// lockDir takes an advisory file lock for the directory so concurrent
// processes (e.g. two CLIs refreshing at once) cannot interleave writes.
func lockDir(dir string) (func(), error) {
	fl := flock.New(filepath.Join(dir, lockFileName))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("lock token dir %s: %w", dir, err)
	}
	return func() { _ = fl.Unlock() }, nil
}
