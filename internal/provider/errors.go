package provider

import "fmt"

// AuthError reports a missing or rejected API key. Never retried: the
// request will fail identically until the user fixes the credential.
type AuthError struct {
	Kind   Kind
	Status int    // 0 when the key was missing before any request
	Detail string // server-provided message, if any
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: no API key set (export %s)", e.Kind, InfoFor(e.Kind).EnvKey)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: authentication failed (HTTP %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: authentication failed (HTTP %d)", e.Kind, e.Status)
}

// APIError reports a non-auth HTTP failure that survived retries.
type APIError struct {
	Kind   Kind
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: API request failed (HTTP %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: API request failed (HTTP %d)", e.Kind, e.Status)
}

// ParseError reports a response body or stream event the client could not
// decode. Distinct from APIError so callers can tell a broken wire format
// from a server rejection.
type ParseError struct {
	Kind Kind
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: failed to parse API response: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
