package apiclient

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork covers transport failures and timeouts.
	ErrNetwork = errors.New("backend unreachable")
	// ErrSessionExpired is returned when the backend rejects the token itself.
	ErrSessionExpired = errors.New("session expired")
)

type APIError struct {
	Status  int
	Message string
	Path    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend %s: status %d", e.Path, e.Status)
	}
	return fmt.Sprintf("backend %s: status %d: %s", e.Path, e.Status, e.Message)
}

// paths where a 401 means bad input, not a dead session
var sessionExemptPaths = []string{
	"/user/login",
	"/user/register",
	"/admin/signin",
	"/user/forgot-password",
	"/user/verify-password-reset-otp",
	"/user/reset-password",
	"/user/verify-email",
	"/user/resend-otp",
}

func sessionExempt(path string) bool {
	for _, p := range sessionExemptPaths {
		if path == p {
			return true
		}
	}
	return false
}

func tokenRejected(message string) bool {
	m := strings.ToLower(message)
	if strings.Contains(m, "jwt") {
		return true
	}
	if !strings.Contains(m, "token") {
		return false
	}
	return strings.Contains(m, "invalid") || strings.Contains(m, "expired") || strings.Contains(m, "failed")
}

func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
