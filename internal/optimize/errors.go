package optimize

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/sashabaranov/go-openai"
)

// ErrorCategory classifies a backend failure for the retry policy.
type ErrorCategory int

const (
	ErrorUnknown ErrorCategory = iota
	ErrorNetwork
	ErrorAuthentication
	ErrorRateLimit
	ErrorServer
	ErrorTimeout
	ErrorClient
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrorNetwork:
		return "network"
	case ErrorAuthentication:
		return "authentication"
	case ErrorRateLimit:
		return "rate-limit"
	case ErrorServer:
		return "server"
	case ErrorTimeout:
		return "timeout"
	case ErrorClient:
		return "client"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures in this category are worth
// repeating. Timeouts, client mistakes, and unclassified failures
// are not.
func (c ErrorCategory) Retryable() bool {
	switch c {
	case ErrorNetwork, ErrorAuthentication, ErrorRateLimit, ErrorServer:
		return true
	default:
		return false
	}
}

// BackendError carries the category alongside the provider error.
type BackendError struct {
	Category ErrorCategory
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Category, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Categorize resolves the category of a backend failure. Errors the
// backends have already wrapped keep their category; everything else
// is classified from the transport signals.
func Categorize(err error) ErrorCategory {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Category
	}
	return categorizeTransport(err)
}

// IsRetryable reports whether the failure belongs to a retryable
// category.
func IsRetryable(err error) bool {
	return Categorize(err).Retryable()
}

func categorizeTransport(err error) ErrorCategory {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTimeout
		}
		return ErrorNetwork
	}
	return ErrorUnknown
}

func categorizeStatus(code int) ErrorCategory {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrorAuthentication
	case code == http.StatusTooManyRequests:
		return ErrorRateLimit
	case code == http.StatusRequestTimeout:
		return ErrorTimeout
	case code >= 500:
		return ErrorServer
	case code >= 400:
		return ErrorClient
	default:
		return ErrorUnknown
	}
}

// wrapAnthropicError classifies a go-anthropic failure.
func wrapAnthropicError(err error) error {
	category := ErrorUnknown
	var apiErr *anthropic.APIError
	var reqErr *anthropic.RequestError
	switch {
	case errors.As(err, &apiErr):
		switch {
		case apiErr.IsAuthenticationErr(), apiErr.IsPermissionErr():
			category = ErrorAuthentication
		case apiErr.IsRateLimitErr():
			category = ErrorRateLimit
		case apiErr.IsApiErr(), apiErr.IsOverloadedErr():
			category = ErrorServer
		case apiErr.IsInvalidRequestErr(), apiErr.IsNotFoundErr():
			category = ErrorClient
		}
	case errors.As(err, &reqErr):
		category = categorizeStatus(reqErr.StatusCode)
	default:
		category = categorizeTransport(err)
	}
	return &BackendError{Category: category, Err: fmt.Errorf("anthropic API error: %w", err)}
}

// wrapOpenAIError classifies a go-openai failure.
func wrapOpenAIError(err error) error {
	category := ErrorUnknown
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		category = categorizeStatus(apiErr.HTTPStatusCode)
	case errors.As(err, &reqErr):
		category = categorizeStatus(reqErr.HTTPStatusCode)
	default:
		category = categorizeTransport(err)
	}
	return &BackendError{Category: category, Err: fmt.Errorf("openai API error: %w", err)}
}
