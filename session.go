package garth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const maxRetries = 3

// baseDelay is a variable so tests can shrink the backoff.
var baseDelay = 1 * time.Second

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Session issues authenticated requests against connectapi, keeping the
// OAuth2 token fresh and classifying HTTP failures. One Session serves
// one logical account; the expiry check and refresh are serialized so
// overlapping calls cannot double-refresh.
type Session struct {
	sso      *SSO
	tokenDir string

	mu     sync.Mutex
	oauth1 *OAuth1Token
	oauth2 *OAuth2Token

	httpClient *http.Client

	// Verbose enables request tracing on stdout.
	Verbose bool
}

// NewSession wraps a token pair. tokenDir may be empty; when set, the
// refreshed OAuth2 token is persisted there after every refresh.
func NewSession(sso *SSO, o1 *OAuth1Token, o2 *OAuth2Token, tokenDir string) *Session {
	return &Session{
		sso:      sso,
		tokenDir: tokenDir,
		oauth1:   o1,
		oauth2:   o2,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Domain returns the regional API domain this session talks to.
func (s *Session) Domain() string { return s.sso.Domain }

// Tokens returns the live token pair.
func (s *Session) Tokens() (*OAuth1Token, *OAuth2Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oauth1, s.oauth2
}

// Get performs a GET request against connectapi.
func (s *Session) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return s.do(ctx, http.MethodGet, path, params, nil, false)
}

// Post performs a POST request with a JSON body. A string or []byte
// body is sent as-is to support pre-serialized payloads.
func (s *Session) Post(ctx context.Context, path string, params url.Values, body any) ([]byte, error) {
	return s.do(ctx, http.MethodPost, path, params, body, false)
}

// Put performs a PUT request with a JSON body.
func (s *Session) Put(ctx context.Context, path string, params url.Values, body any) ([]byte, error) {
	return s.do(ctx, http.MethodPut, path, params, body, false)
}

// Delete performs a DELETE request.
func (s *Session) Delete(ctx context.Context, path string) ([]byte, error) {
	return s.do(ctx, http.MethodDelete, path, nil, nil, false)
}

// Download fetches raw bytes, bypassing JSON handling entirely.
func (s *Session) Download(ctx context.Context, path string) ([]byte, error) {
	return s.do(ctx, http.MethodGet, path, nil, nil, true)
}

// Upload sends a file as multipart form data.
func (s *Session) Upload(ctx context.Context, path, filename string, r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return s.doOnce(ctx, http.MethodPost, path, nil, buf.Bytes(), w.FormDataContentType(), false, 1)
}

func (s *Session) do(ctx context.Context, method, path string, params url.Values, body any, raw bool) ([]byte, error) {
	bodyBytes, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		data, err := s.doOnce(ctx, method, path, params, bodyBytes, contentType, raw, attempt)
		if err == nil {
			return data, nil
		}

		var apiErr *Error
		if !errors.As(err, &apiErr) || !apiErr.Retryable {
			return nil, err
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}

		delay := baseDelay * time.Duration(1<<(attempt-1))
		if s.Verbose {
			fmt.Printf("[garth] retry %d/%d in %v: %s\n", attempt, maxRetries, delay, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func (s *Session) doOnce(ctx context.Context, method, path string, params url.Values, body []byte, contentType string, raw bool, attempt int) ([]byte, error) {
	authz, err := s.freshAuthorization(ctx)
	if err != nil {
		return nil, err
	}

	u := s.sso.apiBase() + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", authz)
	req.Header.Set("User-Agent", apiUserAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if s.Verbose {
		fmt.Printf("[garth] %s %s (attempt %d)\n", method, u, attempt)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, ErrNetwork(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if s.Verbose {
		fmt.Printf("[garth] HTTP %d\n", resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode, data)
	}
	if resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil, nil
	}
	if raw {
		return data, nil
	}

	// Some endpoints prepend a UTF-8 byte-order mark.
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(data) == 0 {
		return nil, nil
	}

	// A body that claims to be JSON but does not parse must not
	// masquerade as valid data. Non-JSON bodies pass through verbatim.
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") && !json.Valid(data) {
		return nil, ErrParse("response declared application/json but did not parse", nil)
	}
	return data, nil
}

// freshAuthorization returns the Authorization header value, refreshing
// the OAuth2 token first if it has expired. The whole check-refresh-
// persist sequence holds the session lock.
func (s *Session) freshAuthorization(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.oauth2 == nil || s.oauth1 == nil {
		return "", ErrAuth("session holds no credentials")
	}
	if !s.oauth2.Expired() {
		return s.oauth2.Authorization(), nil
	}

	if s.Verbose {
		fmt.Println("[garth] OAuth2 token expired, refreshing")
	}
	o2, err := s.sso.Exchange(ctx, s.oauth1)
	if err != nil {
		if IsUnauthorized(err) {
			return "", &Error{
				Code:    CodeTokenExpired,
				Message: "OAuth2 token expired and refresh was rejected",
				Cause:   err,
			}
		}
		return "", err
	}
	s.oauth2 = o2

	// The OAuth1 half is unchanged; rewrite only the OAuth2 file.
	if s.tokenDir != "" {
		if err := SaveOAuth2(s.tokenDir, o2); err != nil {
			return "", err
		}
	}
	return s.oauth2.Authorization(), nil
}

func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(b), "application/json", nil
	case []byte:
		return b, "application/json", nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("marshal body: %w", err)
		}
		return data, "application/json", nil
	}
}
