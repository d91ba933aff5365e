package worker

import (
	"errors"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/motorlink/golang_services/internal/delivery/transport"
)

// IsTransient classifies a transport failure. Transient failures are retried
// with backoff; everything else fails the job after the current attempt.
//
// Transient: HTTP 429/408/425 and 5xx, network timeouts, temporary DNS
// failures, connection resets, and any error whose message mentions a
// timeout. Validation errors are always permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, transport.ErrValidation) {
		return false
	}

	var statusErr *transport.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 408, 425, 429:
			return true
		}
		return statusErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// BackoffDelay computes the wait before retry number attempt:
// base * 2^(attempt-1), with ±20% jitter so a burst of failures does not
// retry in lockstep.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Cap the shift; beyond ~1000x the exact delay no longer matters.
	shift := attempt - 1
	if shift > 10 {
		shift = 10
	}
	delay := base << shift
	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(delay) * jitter)
}
