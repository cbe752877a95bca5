package backend

import "fmt"

// ErrorKind classifies a remote-call failure at the client boundary.
type ErrorKind string

const (
	// KindNetworkUnreachable means the backend could not be reached at all.
	KindNetworkUnreachable ErrorKind = "network_unreachable"
	// KindUnauthorized is the 401-equivalent (bad credentials, rejected session).
	KindUnauthorized ErrorKind = "unauthorized"
	// KindServer covers any other non-2xx response, including malformed bodies.
	KindServer ErrorKind = "server_error"
)

// APIError is the typed error returned for every remote-call failure.
// Callers branch on Kind, never on transport details.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s: HTTP %d: %s", e.Kind, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("backend %s: %s", e.Kind, e.Body)
}

// IsRetryable returns true for failures worth retrying with the same input.
// Unauthorized is permanent until the user re-authenticates.
func (e *APIError) IsRetryable() bool {
	return e.Kind != KindUnauthorized
}

func networkError(err error) *APIError {
	return &APIError{Kind: KindNetworkUnreachable, Body: err.Error()}
}

func statusError(status int, body string) *APIError {
	kind := KindServer
	if status == 401 {
		kind = KindUnauthorized
	}
	return &APIError{Kind: kind, StatusCode: status, Body: body}
}
