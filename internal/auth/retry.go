package auth

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/steveyegge/cockpit/internal/engine"
)

func newLoginBackoff(maxElapsed time.Duration) backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	if maxElapsed <= 0 {
		maxElapsed = DefaultLoginMaxElapsed
	}
	bo.MaxElapsedTime = maxElapsed
	return bo
}

// isRetryableLoginError returns true for transient transport failures.
// Any HTTP response, including 5xx, is final. Only the error chain is
// inspected, never the message, which carries the engine name and URL.
func isRetryableLoginError(err error) bool {
	if err == nil {
		return false
	}
	var reqErr *engine.RequestError
	if errors.As(err, &reqErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
