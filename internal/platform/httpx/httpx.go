package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"
)

// StatusCoder is implemented by transport errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatusCode() int
}

func IsRetryableStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRetryable reports whether an upstream call error is worth another attempt.
// Context cancellation is not retryable: the caller is going away.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return IsRetryableStatus(sc.HTTPStatusCode())
	}
	// Plain transport failures (connection refused, reset) surface as
	// *url.Error / *net.OpError without a status; retry those too.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Backoff returns the exponential delay for the given zero-based attempt,
// with +/-20% jitter.
func Backoff(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	j := 0.2
	low := d.Seconds() * (1 - j)
	high := d.Seconds() * (1 + j)
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}
