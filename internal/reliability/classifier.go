package reliability

import (
	"context"
	"errors"
	"net"
	"time"
)

// IsRetryableHTTPStatus classifies retryable upstream HTTP status codes.
// Request-timeout, rate-limit, and the whole server-error class are worth
// another attempt; any other non-2xx means the same payload will fail again.
func IsRetryableHTTPStatus(code int) bool {
	if code >= 500 && code <= 599 {
		return true
	}
	switch code {
	case 408, 429:
		return true
	default:
		return false
	}
}

// IsRetryableTransportError classifies connection-level failures that never
// produced an HTTP status: timeouts, aborted attempts, dropped connections.
func IsRetryableTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
