// Package providererr maps transport failures of AI providers onto
// *domain.ProviderError so the retry policy can recognise them.
package providererr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

// maxBodyInError bounds how much of a response body ends up in an error.
const maxBodyInError = 300

// KindForStatus classifies an HTTP status code.
func KindForStatus(status int) domain.ProviderErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.ProviderErrorRateLimited
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return domain.ProviderErrorTimeout
	case status >= 500:
		return domain.ProviderErrorUnavailable
	default:
		return domain.ProviderErrorRejected
	}
}

// FromStatus builds the error for a non-2xx response.
func FromStatus(provider string, status int, body string) *domain.ProviderError {
	body = strings.TrimSpace(body)
	if len(body) > maxBodyInError {
		body = body[:maxBodyInError] + "..."
	}
	if body == "" {
		body = http.StatusText(status)
	}
	return domain.NewProviderError(provider, KindForStatus(status), status, errors.New(body))
}

// FromTransport classifies an error raised before a response arrived.
// Cancellation by the caller is returned unchanged.
func FromTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewProviderError(provider, domain.ProviderErrorTimeout, 0, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewProviderError(provider, domain.ProviderErrorTimeout, 0, err)
	}
	return domain.NewProviderError(provider, domain.ProviderErrorUnavailable, 0, err)
}

// Malformed reports an unusable response body.
func Malformed(provider, format string, args ...any) *domain.ProviderError {
	return domain.NewProviderError(provider, domain.ProviderErrorMalformed, 0, fmt.Errorf(format, args...))
}
