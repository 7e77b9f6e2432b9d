package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/disgoorg/disgo/rest"
)

// Collaborator failures are reduced to a small set of kinds so callers can
// decide retry vs surface vs ignore without inspecting HTTP responses.
var (
	ErrNotFound         = errors.New("gateway: not found")
	ErrPermissionDenied = errors.New("gateway: permission denied")
	ErrRateLimited      = errors.New("gateway: rate limited")
	ErrBlocked          = errors.New("gateway: direct messages blocked")
)

// Discord JSON error code for "Cannot send messages to this user".
const jsonCodeCannotMessageUser = 50007

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var restErr rest.Error
	if !errors.As(err, &restErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if restErr.Code == jsonCodeCannotMessageUser {
		return fmt.Errorf("%s: %w", op, ErrBlocked)
	}

	status := 0
	if restErr.Response != nil {
		status = restErr.Response.StatusCode
	}
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", op, ErrRateLimited)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsTransient reports whether the error is worth retrying with backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
