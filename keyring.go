package garth

import (
	"github.com/zalando/go-keyring"
)

const keyringService = "garth"

// Keyring stores the encoded token pair in the system keychain instead
// of plaintext files. Entries are keyed by domain so garmin.com and
// garmin.cn sessions can coexist.
type Keyring struct {
	// Service overrides the keychain service name. Defaults to "garth".
	Service string
}

func (k Keyring) service() string {
	if k.Service != "" {
		return k.Service
	}
	return keyringService
}

// Save stores the pair under the given domain.
func (k Keyring) Save(domain string, o1 *OAuth1Token, o2 *OAuth2Token) error {
	encoded, err := DumpTokens(o1, o2)
	if err != nil {
		return err
	}
	return keyring.Set(k.service(), domain, encoded)
}

// Load retrieves the pair for the given domain.
func (k Keyring) Load(domain string) (*OAuth1Token, *OAuth2Token, error) {
	encoded, err := keyring.Get(k.service(), domain)
	if err != nil {
		return nil, nil, ErrCredentialsNotFound("keyring entry for " + domain)
	}
	return ParseTokens(encoded)
}

// Delete removes the pair for the given domain.
func (k Keyring) Delete(domain string) error {
	return keyring.Delete(k.service(), domain)
}

// Available reports whether the system keychain can be used.
func (k Keyring) Available() bool {
	const probe = "garth::probe"
	if err := keyring.Set(k.service(), probe, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(k.service(), probe) // Best-effort cleanup
	return true
}
