package evacalor

import "fmt"

// AuthError reports credentials or a session token the platform refuses to
// accept. It is returned once recovery (token refresh, then a full login)
// has already been attempted.
type AuthError struct {
	Op         string // API call that was rejected
	StatusCode int    // HTTP status, 0 when no response was involved
	Message    string
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: authorization rejected (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// NetworkError reports a request that never produced an HTTP response, such
// as a DNS failure, a refused connection, or a timeout.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServiceError reports a platform response that cannot be used: an
// unexpected HTTP status, a body that does not decode, or a device job the
// platform failed to complete.
type ServiceError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// ValidationError reports input rejected locally. No request is sent to the
// platform for a call that fails validation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
