package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	stderrors "assistant-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RetryConfig: &RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
		},
	}}
}

func TestExecuteWithRetry(t *testing.T) {
	tests := []struct {
		name          string
		errs          []error
		expectedCalls int
		expectedCode  stderrors.ErrorCode
	}{
		{
			name:          "succeeds first time",
			errs:          []error{nil},
			expectedCalls: 1,
		},
		{
			name:          "retries transient failures",
			errs:          []error{errors.New("connection refused"), errors.New("Unavailable"), nil},
			expectedCalls: 3,
		},
		{
			name:          "gives up after max retries",
			errs:          []error{errors.New("deadline exceeded"), errors.New("deadline exceeded"), errors.New("deadline exceeded")},
			expectedCalls: 3,
			expectedCode:  stderrors.ErrCodeBrokerTimeout,
		},
		{
			name:          "permanent failure is not retried",
			errs:          []error{errors.New("NOT_FOUND: process not found")},
			expectedCalls: 1,
			expectedCode:  stderrors.ErrCodeBrokerRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(2)
			calls := 0

			err := c.ExecuteWithRetry(context.Background(), func(ctx context.Context) error {
				e := tt.errs[calls]
				calls++
				return e
			}, "topology")

			assert.Equal(t, tt.expectedCalls, calls)
			if tt.expectedCode == "" {
				assert.NoError(t, err)
				return
			}
			var stdErr *stderrors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, tt.expectedCode, stdErr.Code)
		})
	}
}

func TestExecuteWithRetry_ContextCancelled(t *testing.T) {
	c := testClient(5)
	c.config.RetryConfig.BaseDelay = time.Hour
	c.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.ExecuteWithRetry(ctx, func(context.Context) error {
		return errors.New("connection reset by peer")
	}, "topology")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		code stderrors.ErrorCode
	}{
		{"rpc error: code = Unavailable desc = connection refused", stderrors.ErrCodeBrokerUnavailable},
		{"context deadline exceeded", stderrors.ErrCodeBrokerTimeout},
		{"permission denied", stderrors.ErrCodeBrokerRejected},
		{"something odd", stderrors.ErrCodeBrokerUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := mapZeebeError(errors.New(tt.msg), "complete", 0)
			var stdErr *stderrors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, tt.code, stdErr.Code)
			assert.Contains(t, stdErr.Details, "complete")
		})
	}
}
