package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// rmiOp is one round trip attempt: send bytes, get bytes back.
type rmiOp func(ctx context.Context) ([]byte, error)

// withRetry decorates op with retry-with-exponential-backoff, generalized
// from a Chain-style retry middleware around a request handler to a single
// RMI round trip instead of a whole RPCMessage. Only a session.Error coded
// TIMEOUT or TRANSPORT_LOST, or an error mentioning a refused connection,
// is retried; anything else, including a decoded rmi.Error, returns
// immediately.
func withRetry(retries int, baseDelay time.Duration, op rmiOp) rmiOp {
	if retries <= 0 {
		return op
	}
	return func(ctx context.Context) ([]byte, error) {
		reply, err := op(ctx)
		for attempt := 0; attempt < retries && isRetryable(err); attempt++ {
			select {
			case <-time.After(baseDelay * (1 << attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			reply, err = op(ctx)
		}
		return reply, err
	}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Code == ErrCodeTimeout || sessErr.Code == ErrCodeTransportLost
	}
	return strings.Contains(err.Error(), "connection refused")
}
