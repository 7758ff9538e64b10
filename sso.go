package garth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dghubble/oauth1"
)

// Garmin keys server-side behavior to these user agents; the SSO pages
// and the OAuth exchange endpoints each expect their own.
const (
	ssoUserAgent = "com.garmin.android.apps.connectmobile"
	apiUserAgent = "GCM-iOS-5.7.2.1"
)

// defaultConsumerURL is the well-known document holding the shared
// OAuth consumer key/secret used by all garth implementations.
const defaultConsumerURL = "https://thegarth.s3.amazonaws.com/oauth_consumer.json"

var ticketRe = regexp.MustCompile(`embed\?ticket=([^"]+)"`)

// MFAPrompt supplies a multi-factor code when the login flow lands on
// the MFA page. The library never prompts on its own; interactive
// implementations are injected at the composition point (see the CLI).
type MFAPrompt func(ctx context.Context) (string, error)

type oauthConsumer struct {
	Key    string `json:"consumer_key"`
	Secret string `json:"consumer_secret"`
}

// SSO drives Garmin's browser-emulating single-sign-on flow: cookie
// bootstrap, CSRF extraction, credential submission, the optional MFA
// sub-flow, ticket extraction, and the two OAuth exchanges that turn
// the ticket into a token pair.
type SSO struct {
	// Domain is the regional API domain, e.g. "garmin.com" or "garmin.cn".
	Domain string

	// MFAPrompt is called when the account requires a second factor.
	// Nil means MFA-protected accounts cannot log in.
	MFAPrompt MFAPrompt

	// ConsumerURL overrides the well-known consumer document location.
	ConsumerURL string

	// SSOBaseURL and APIBaseURL override the URLs derived from Domain.
	// Used by tests and proxies.
	SSOBaseURL string
	APIBaseURL string

	// HTTPClient carries the cookie jar across the whole flow. A jar is
	// installed if the client has none.
	HTTPClient *http.Client

	mu       sync.Mutex
	consumer *oauthConsumer
}

// NewSSO creates an SSO client for the given domain.
func NewSSO(domain string) *SSO {
	return &SSO{Domain: domain}
}

func (s *SSO) ssoBase() string {
	if s.SSOBaseURL != "" {
		return s.SSOBaseURL
	}
	return fmt.Sprintf("https://sso.%s/sso", s.Domain)
}

func (s *SSO) apiBase() string {
	if s.APIBaseURL != "" {
		return s.APIBaseURL
	}
	return fmt.Sprintf("https://connectapi.%s", s.Domain)
}

func (s *SSO) client() *http.Client {
	if s.HTTPClient == nil {
		s.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if s.HTTPClient.Jar == nil {
		jar, _ := cookiejar.New(nil)
		s.HTTPClient.Jar = jar
	}
	return s.HTTPClient
}

// Login executes the full SSO flow and returns a fresh token pair.
// It fails with a login or authentication error at the first step
// whose precondition is not met; no partial pair is ever returned.
func (s *SSO) Login(ctx context.Context, email, password string) (*OAuth1Token, *OAuth2Token, error) {
	ssoBase := s.ssoBase()
	embedURL := ssoBase + "/embed"
	signinURL := ssoBase + "/signin"

	embedParams := url.Values{
		"id":          {"gauth-widget"},
		"embedWidget": {"true"},
		"gauthHost":   {ssoBase},
	}
	signinParams := url.Values{
		"id":          {"gauth-widget"},
		"embedWidget": {"true"},
		"gauthHost":   {embedURL},
		"service":     {embedURL},
		"source":      {embedURL},
	}
	signinParams.Set("redirectAfterAccountLoginUrl", embedURL)
	signinParams.Set("redirectAfterAccountCreationUrl", embedURL)

	// Bootstrap: the embed page only exists to set session cookies.
	if _, err := s.ssoGet(ctx, embedURL, embedParams, ""); err != nil {
		return nil, nil, err
	}

	page, err := s.ssoGet(ctx, signinURL, signinParams, embedURL)
	if err != nil {
		return nil, nil, err
	}
	csrf := extractCSRF(page)
	if csrf == "" {
		return nil, nil, ErrLogin("signin page", "no CSRF token found")
	}

	signinReferer := signinURL + "?" + signinParams.Encode()
	form := url.Values{
		"username": {email},
		"password": {password},
		"embed":    {"true"},
		"_csrf":    {csrf},
	}
	page, err = s.ssoPost(ctx, signinURL, signinParams, form, signinReferer)
	if err != nil {
		return nil, nil, err
	}

	title := extractTitle(page)
	if strings.Contains(strings.ToLower(title), "mfa") {
		page, err = s.handleMFA(ctx, signinParams, page, signinReferer)
		if err != nil {
			return nil, nil, err
		}
		title = extractTitle(page)
	}
	if title != "Success" {
		return nil, nil, ErrLogin("credential submission", fmt.Sprintf("unexpected page title %q", title))
	}

	m := ticketRe.FindSubmatch(page)
	if m == nil {
		return nil, nil, ErrLogin("ticket extraction", "no ticket on success page")
	}
	ticket := string(m[1])

	o1, err := s.exchangeOAuth1(ctx, ticket, embedURL)
	if err != nil {
		return nil, nil, err
	}
	o2, err := s.Exchange(ctx, o1)
	if err != nil {
		return nil, nil, err
	}
	return o1, o2, nil
}

// handleMFA runs the MFA sub-flow: fresh CSRF from the current page,
// a code from the injected prompt, and one verify POST.
func (s *SSO) handleMFA(ctx context.Context, signinParams url.Values, page []byte, referer string) ([]byte, error) {
	csrf := extractCSRF(page)
	if csrf == "" {
		return nil, ErrLogin("mfa page", "no CSRF token found")
	}
	if s.MFAPrompt == nil {
		return nil, ErrAuth("MFA required but no MFA prompt configured")
	}
	code, err := s.MFAPrompt(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, ErrAuth("empty MFA code")
	}

	form := url.Values{
		"mfa-code": {strings.TrimSpace(code)},
		"embed":    {"true"},
		"_csrf":    {csrf},
		"fromPage": {"setupEnterMfaCode"},
	}
	return s.ssoPost(ctx, s.ssoBase()+"/verifyMFA/loginEnterMfaCode", signinParams, form, referer)
}

// Exchange mints a new OAuth2 token from an already-held OAuth1 token.
// This is the refresh path: it skips the web login entirely and leaves
// the OAuth1 token untouched.
func (s *SSO) Exchange(ctx context.Context, o1 *OAuth1Token) (*OAuth2Token, error) {
	consumer, err := s.getConsumer(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	// Garmin folds MFA-token replay into the exchange body.
	if o1.MFAToken != "" {
		body = strings.NewReader(url.Values{"mfa_token": {o1.MFAToken}}.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase()+"/oauth-service/oauth/exchange/user/2.0", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", apiUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.signedClient(ctx, consumer, oauth1.NewToken(o1.Token, o1.Secret)).Do(req)
	if err != nil {
		return nil, ErrNetwork(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, data)
	}

	var o2 OAuth2Token
	if err := json.Unmarshal(data, &o2); err != nil {
		return nil, ErrParse("invalid OAuth2 exchange response", err)
	}
	o2.normalize()
	return &o2, nil
}

// exchangeOAuth1 trades the SSO ticket for the long-lived OAuth1 token
// via a one-legged signed GET. The response is form-urlencoded, not JSON.
func (s *SSO) exchangeOAuth1(ctx context.Context, ticket, loginURL string) (*OAuth1Token, error) {
	consumer, err := s.getConsumer(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/oauth-service/oauth/preauthorized?ticket=%s&login-url=%s&accepts-mfa-tokens=true",
		s.apiBase(), url.QueryEscape(ticket), url.QueryEscape(loginURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", apiUserAgent)

	resp, err := s.signedClient(ctx, consumer, oauth1.NewToken("", "")).Do(req)
	if err != nil {
		return nil, ErrNetwork(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, data)
	}

	vals, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, ErrParse("invalid OAuth1 exchange response", err)
	}
	if vals.Get("oauth_token") == "" || vals.Get("oauth_token_secret") == "" {
		return nil, ErrLogin("oauth1 exchange", "response missing oauth_token")
	}
	return &OAuth1Token{
		Token:                  vals.Get("oauth_token"),
		Secret:                 vals.Get("oauth_token_secret"),
		MFAToken:               vals.Get("mfa_token"),
		MFAExpirationTimestamp: vals.Get("mfa_expiration_timestamp"),
		Domain:                 s.Domain,
	}, nil
}

// getConsumer fetches and caches the shared consumer key/secret.
func (s *SSO) getConsumer(ctx context.Context) (*oauthConsumer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumer != nil {
		return s.consumer, nil
	}

	consumerURL := s.ConsumerURL
	if consumerURL == "" {
		consumerURL = defaultConsumerURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, consumerURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, &Error{Code: CodeAuth, Message: "failed to fetch OAuth consumer credentials", Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Code:       CodeAuth,
			Message:    fmt.Sprintf("failed to fetch OAuth consumer credentials (HTTP %d)", resp.StatusCode),
			HTTPStatus: resp.StatusCode,
		}
	}
	var c oauthConsumer
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return nil, &Error{Code: CodeAuth, Message: "invalid OAuth consumer document", Cause: err}
	}
	s.consumer = &c
	return s.consumer, nil
}

// signedClient returns an HMAC-SHA1 signing client layered over the SSO
// transport, so tests can intercept the exchange requests too.
func (s *SSO) signedClient(ctx context.Context, c *oauthConsumer, token *oauth1.Token) *http.Client {
	ctx = context.WithValue(ctx, oauth1.HTTPClient, s.client())
	return oauth1.NewClient(ctx, oauth1.NewConfig(c.Key, c.Secret), token)
}

func (s *SSO) ssoGet(ctx context.Context, rawURL string, params url.Values, referer string) ([]byte, error) {
	return s.ssoRequest(ctx, http.MethodGet, rawURL, params, nil, referer)
}

func (s *SSO) ssoPost(ctx context.Context, rawURL string, params url.Values, form url.Values, referer string) ([]byte, error) {
	return s.ssoRequest(ctx, http.MethodPost, rawURL, params, form, referer)
}

func (s *SSO) ssoRequest(ctx context.Context, method, rawURL string, params, form url.Values, referer string) ([]byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL+"?"+params.Encode(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ssoUserAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, ErrNetwork(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode, data)
	}
	return data, nil
}

// extractCSRF pulls the anti-forgery token from the hidden _csrf input.
func extractCSRF(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	return doc.Find(`input[name="_csrf"]`).First().AttrOr("value", "")
}

// extractTitle returns the text of the page's <title> element.
func extractTitle(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
