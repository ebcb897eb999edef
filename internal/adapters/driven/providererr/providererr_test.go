package providererr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/grantkb/internal/core/domain"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   domain.ProviderErrorKind
	}{
		{http.StatusTooManyRequests, domain.ProviderErrorRateLimited},
		{http.StatusRequestTimeout, domain.ProviderErrorTimeout},
		{http.StatusGatewayTimeout, domain.ProviderErrorTimeout},
		{http.StatusInternalServerError, domain.ProviderErrorUnavailable},
		{http.StatusServiceUnavailable, domain.ProviderErrorUnavailable},
		{http.StatusUnauthorized, domain.ProviderErrorRejected},
		{http.StatusBadRequest, domain.ProviderErrorRejected},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.want, KindForStatus(tc.status))
		})
	}
}

func TestFromStatus(t *testing.T) {
	err := FromStatus("openai", http.StatusTooManyRequests, ` {"error":"slow down"} `)

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 429, err.StatusCode)
	assert.Contains(t, err.Error(), `{"error":"slow down"}`)
}

func TestFromStatus_TruncatesBody(t *testing.T) {
	err := FromStatus("ollama", http.StatusBadRequest, strings.Repeat("x", 1000))

	assert.Less(t, len(err.Error()), 400)
	assert.False(t, domain.IsRetryable(err))
}

func TestFromStatus_EmptyBody(t *testing.T) {
	err := FromStatus("gemini", http.StatusServiceUnavailable, "")
	assert.Contains(t, err.Error(), "Service Unavailable")
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestFromTransport(t *testing.T) {
	assert.NoError(t, FromTransport("p", nil))

	canceled := fmt.Errorf("post: %w", context.Canceled)
	assert.Same(t, canceled, FromTransport("p", canceled))

	assert.ErrorIs(t, FromTransport("p", context.DeadlineExceeded), domain.ErrTimeout)
	assert.ErrorIs(t, FromTransport("p", fmt.Errorf("dial: %w", timeoutErr{})), domain.ErrTimeout)

	refused := FromTransport("p", errors.New("connection refused"))
	var pe *domain.ProviderError
	assert.ErrorAs(t, refused, &pe)
	assert.Equal(t, domain.ProviderErrorUnavailable, pe.Kind)

	already := FromStatus("p", 429, "")
	assert.Same(t, already, FromTransport("p", already))
}

func TestMalformed(t *testing.T) {
	err := Malformed("openai", "got %d vectors for %d inputs", 1, 2)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.Contains(t, err.Error(), "got 1 vectors for 2 inputs")
}
