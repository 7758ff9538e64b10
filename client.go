package garth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// DefaultDomain is the general-availability API domain. Accounts in
// mainland China use "garmin.cn".
const DefaultDomain = "garmin.com"

// DefaultTokenDirName is the dotfile directory under the user's home
// where tokens are persisted unless configured otherwise.
const DefaultTokenDirName = ".garth"

// Options configures a Client.
type Options struct {
	// Email and Password run the full SSO login when no stored
	// credentials are available.
	Email    string
	Password string

	// Domain selects the regional API domain. Defaults to garmin.com.
	Domain string

	// TokenString is a pre-encoded credential pair (see DumpTokens).
	// Takes precedence over TokenDir.
	TokenString string

	// TokenDir is where tokens are persisted. Defaults to ~/.garth.
	// Set NoPersist to disable persistence entirely.
	TokenDir  string
	NoPersist bool

	// MFAPrompt supplies a code when the account requires MFA.
	MFAPrompt MFAPrompt

	// HTTPClient overrides the transport used for the SSO flow.
	HTTPClient *http.Client

	// SSOBaseURL, APIBaseURL and ConsumerURL override the endpoints
	// derived from Domain. Used by tests and proxies.
	SSOBaseURL  string
	APIBaseURL  string
	ConsumerURL string

	// Verbose enables request tracing.
	Verbose bool
}

// Client owns a Session and resolves how to obtain it: a token string,
// a token directory, or a fresh SSO login, in that order.
type Client struct {
	opts    Options
	sso     *SSO
	session *Session

	profile     json.RawMessage
	displayName string
}

// NewClient resolves credentials and returns a usable client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Domain == "" {
		opts.Domain = DefaultDomain
	}

	tokenDir := ""
	if !opts.NoPersist {
		tokenDir = opts.TokenDir
		if tokenDir == "" {
			home, err := os.UserHomeDir()
			if err == nil {
				tokenDir = filepath.Join(home, DefaultTokenDirName)
			}
		}
	}

	sso := &SSO{
		Domain:      opts.Domain,
		MFAPrompt:   opts.MFAPrompt,
		HTTPClient:  opts.HTTPClient,
		SSOBaseURL:  opts.SSOBaseURL,
		APIBaseURL:  opts.APIBaseURL,
		ConsumerURL: opts.ConsumerURL,
	}
	c := &Client{opts: opts, sso: sso}

	var o1 *OAuth1Token
	var o2 *OAuth2Token

	switch {
	case opts.TokenString != "":
		var err error
		o1, o2, err = ParseTokens(opts.TokenString)
		if err != nil {
			return nil, err
		}
	case tokenDir != "":
		if _, err := os.Stat(tokenDir); err == nil {
			// A broken or partial token dir falls through to login.
			o1, o2, _ = LoadTokens(tokenDir)
		}
	}

	if o1 == nil || o2 == nil {
		if opts.Email == "" || opts.Password == "" {
			return nil, ErrAuth("no stored credentials and no email/password configured")
		}
		var err error
		o1, o2, err = sso.Login(ctx, opts.Email, opts.Password)
		if err != nil {
			return nil, err
		}
		if tokenDir != "" {
			if err := SaveTokens(tokenDir, o1, o2); err != nil {
				return nil, err
			}
		}
	}

	c.session = NewSession(sso, o1, o2, tokenDir)
	c.session.Verbose = opts.Verbose

	if err := c.loadProfile(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// loadProfile fetches the account's social profile for the cached
// display name. HTTP failures here are non-fatal: the session stays
// usable, only endpoints needing the display name will fail later.
func (c *Client) loadProfile(ctx context.Context) error {
	data, err := c.session.Get(ctx, "/userprofile-service/socialProfile", nil)
	if err != nil {
		if IsHTTPError(err) {
			return nil
		}
		return err
	}
	c.profile = data
	c.displayName = extractDisplayName(data)
	return nil
}

// extractDisplayName tries the three response shapes the profile
// endpoint is known to return, in order. The shape varies by account
// type and region; do not assume any one is canonical.
func extractDisplayName(data []byte) string {
	var p struct {
		DisplayName   string `json:"displayName"`
		SocialProfile struct {
			DisplayName string `json:"displayName"`
		} `json:"socialProfile"`
		UserName string `json:"userName"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.SocialProfile.DisplayName != "" {
		return p.SocialProfile.DisplayName
	}
	return p.UserName
}

// Session returns the live session, or nil after Logout.
func (c *Client) Session() *Session { return c.session }

// DisplayName returns the cached display name, which may be empty if
// the profile fetch failed.
func (c *Client) DisplayName() string { return c.displayName }

// Profile returns the raw social profile document.
func (c *Client) Profile() json.RawMessage { return c.profile }

// Authenticated reports whether a session exists and holds an OAuth2
// token. Structural only: it does not probe the server.
func (c *Client) Authenticated() bool {
	if c.session == nil {
		return false
	}
	_, o2 := c.session.Tokens()
	return o2 != nil
}

// Logout clears in-memory credential and profile state. Garmin has no
// revocation endpoint; stored token files are left in place.
func (c *Client) Logout() {
	c.session = nil
	c.profile = nil
	c.displayName = ""
}

// DumpTokens exports the live pair in the portable encoded form.
func (c *Client) DumpTokens() (string, error) {
	if c.session == nil {
		return "", ErrAuth("not logged in")
	}
	o1, o2 := c.session.Tokens()
	return DumpTokens(o1, o2)
}

// ConnectAPI is the generic escape hatch for endpoints without a typed
// wrapper.
func (c *Client) ConnectAPI(ctx context.Context, method, path string, params url.Values, body any) ([]byte, error) {
	if c.session == nil {
		return nil, ErrAuth("not logged in")
	}
	switch method {
	case http.MethodGet:
		return c.session.Get(ctx, path, params)
	case http.MethodPost:
		return c.session.Post(ctx, path, params, body)
	case http.MethodPut:
		return c.session.Put(ctx, path, params, body)
	case http.MethodDelete:
		return c.session.Delete(ctx, path)
	default:
		return nil, ErrUsage("unsupported method " + method)
	}
}

func (c *Client) requireSession() (*Session, error) {
	if c.session == nil {
		return nil, ErrAuth("not logged in")
	}
	return c.session, nil
}

func (c *Client) requireDisplayName() (string, error) {
	if c.displayName == "" {
		return "", ErrAuth("no display name: profile fetch failed or not logged in")
	}
	return c.displayName, nil
}
