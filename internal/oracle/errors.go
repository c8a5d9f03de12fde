package oracle

import "errors"

// Typed failure taxonomy for the external vision classifier. Transient
// failures are retried; permission and quota failures are terminal.
var (
	ErrRateLimited      = errors.New("oracle: rate limited")
	ErrTimeout          = errors.New("oracle: attempt timed out")
	ErrUnavailable      = errors.New("oracle: service unavailable")
	ErrInternal         = errors.New("oracle: internal service error")
	ErrPermissionDenied = errors.New("oracle: permission denied")
	ErrQuotaExceeded    = errors.New("oracle: quota exceeded")
	ErrParse            = errors.New("oracle: unparseable response")
)

// Retryable reports whether an attempt that failed with err may be retried.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrInternal):
		return true
	}
	return false
}
