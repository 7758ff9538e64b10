package garth

import (
	"errors"
	"fmt"
)

// Error codes for caller pattern-matching.
const (
	CodeUsage               = "usage"
	CodeAuth                = "auth_required"
	CodeLogin               = "login_failed"
	CodeTokenExpired        = "token_expired"
	CodeCredentialsNotFound = "credentials_not_found"
	CodeBadRequest          = "bad_request"
	CodeUnauthorized        = "unauthorized"
	CodeForbidden           = "forbidden"
	CodeNotFound            = "not_found"
	CodeRateLimit           = "too_many_requests"
	CodeServer              = "server_error"
	CodeHTTP                = "http_error"
	CodeParse               = "parse_error"
	CodeNetwork             = "network"
)

// Error is a structured error with a code, message, and optional hint.
// HTTP failures carry the numeric status and raw body for inspection.
type Error struct {
	Code       string
	Message    string
	Hint       string
	HTTPStatus int
	Body       string
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error constructors for common cases.

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrAuth(msg string) *Error {
	return &Error{
		Code:    CodeAuth,
		Message: msg,
		Hint:    "Run: garth login",
	}
}

// ErrLogin reports a failure at a specific step of the SSO flow.
func ErrLogin(step, detail string) *Error {
	return &Error{
		Code:    CodeLogin,
		Message: fmt.Sprintf("login failed at %s: %s", step, detail),
	}
}

func ErrCredentialsNotFound(what string) *Error {
	return &Error{
		Code:    CodeCredentialsNotFound,
		Message: "credentials not found: " + what,
	}
}

func ErrParse(msg string, cause error) *Error {
	return &Error{
		Code:    CodeParse,
		Message: msg,
		Cause:   cause,
	}
}

func ErrNetwork(cause error) *Error {
	return &Error{
		Code:      CodeNetwork,
		Message:   "network error",
		Hint:      cause.Error(),
		Retryable: true,
		Cause:     cause,
	}
}

// statusError classifies an HTTP failure status into an error kind.
// Known statuses get a dedicated code; anything >= 500 is a server
// error and the remaining 4xx fall through to a generic HTTP code.
func statusError(status int, body []byte) *Error {
	e := &Error{
		HTTPStatus: status,
		Body:       string(body),
		Message:    fmt.Sprintf("request failed (HTTP %d)", status),
	}
	switch status {
	case 400:
		e.Code = CodeBadRequest
	case 401:
		e.Code = CodeUnauthorized
	case 403:
		e.Code = CodeForbidden
	case 404:
		e.Code = CodeNotFound
	case 429:
		e.Code = CodeRateLimit
	default:
		if status >= 500 {
			e.Code = CodeServer
		} else {
			e.Code = CodeHTTP
		}
	}
	// Transient statuses are retried by the transport before the final
	// attempt's classification reaches the caller.
	switch status {
	case 408, 500, 502, 503, 504:
		e.Retryable = true
	}
	return e
}

// AsError attempts to convert an error to an *Error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeHTTP, Message: err.Error(), Cause: err}
}

func codeIs(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsNotFound reports whether err is a 404 classification.
func IsNotFound(err error) bool { return codeIs(err, CodeNotFound) }

// IsUnauthorized reports whether err is a 401 classification.
func IsUnauthorized(err error) bool { return codeIs(err, CodeUnauthorized) }

// IsRateLimited reports whether err is a 429 classification.
func IsRateLimited(err error) bool { return codeIs(err, CodeRateLimit) }

// IsAuthError reports whether err is a credentials or session problem,
// including SSO login failures.
func IsAuthError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case CodeAuth, CodeLogin, CodeTokenExpired, CodeCredentialsNotFound:
		return true
	}
	return false
}

// IsHTTPError reports whether err carries an HTTP status classification.
func IsHTTPError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.HTTPStatus >= 400
}
