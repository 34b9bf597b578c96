package ai

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyResponse is returned when a provider answers 2xx without any content.
var ErrEmptyResponse = errors.New("provider returned no choices")

// AuthError is a 401/403: the credential is missing, wrong or revoked.
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

// RateLimitError is a 429. RetryAfter is zero when the provider sent no hint.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry in about %ds: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.APIError.Error())
}

type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.APIError.Error())
}

type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("provider error: %s", e.APIError.Error()) }

// UnreachableError means no HTTP exchange happened at all, e.g. a local
// Ollama daemon that is not running.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Hint returns a one-line suggestion for a provider error, or "".
func Hint(err error) string {
	var (
		authErr  *AuthError
		rlErr    *RateLimitError
		mnfErr   *ModelNotFoundError
		quotaErr *QuotaExceededError
		unreach  *UnreachableError
	)
	switch {
	case errors.As(err, &authErr):
		return "check the API key for the selected provider (sheetwise config show)"
	case errors.As(err, &rlErr):
		return "the provider is rate limiting requests; wait a moment and ask again"
	case errors.As(err, &mnfErr):
		return "the model is not available for this provider; see 'sheetwise models' or pass --model"
	case errors.As(err, &quotaErr):
		return "the account has run out of quota or credits"
	case errors.As(err, &unreach):
		return "the model endpoint could not be reached; for ollama make sure 'ollama serve' is running"
	}
	return ""
}
