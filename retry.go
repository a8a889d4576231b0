package livepers

import (
	"context"
	"encoding/json"
	"errors"
	log "log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryBaseDelay is the first Fibonacci backoff step used by Retry.
var RetryBaseDelay = 1 * time.Second

// Retry executes task with Fibonacci backoff up to 5 retries.
// If retries are exhausted, gaveUpTask is invoked (when not nil) and the final error is returned.
func Retry(ctx context.Context, task func(ctx context.Context) error, gaveUpTask func(ctx context.Context)) error {
	b := retry.NewFibonacci(RetryBaseDelay)
	if err := retry.Do(ctx, retry.WithMaxRetries(5, b), task); err != nil {
		log.Warn(err.Error() + ", gave up")
		if gaveUpTask != nil {
			gaveUpTask(ctx)
		}
		return err
	}
	return nil
}

// permanentErrors end a retry loop at once: another attempt cannot change the outcome.
var permanentErrors = []error{
	context.Canceled,
	context.DeadlineExceeded,
	ErrNotFound,
	ErrBackendUnavailable,
	os.ErrNotExist,
	os.ErrPermission,
	os.ErrClosed,
	os.ErrExist,
	syscall.EROFS,
	syscall.ENOSPC,
	syscall.EDQUOT,
	syscall.EACCES,
	syscall.EPERM,
	syscall.ENAMETOOLONG,
	syscall.ENOTDIR,
	syscall.EISDIR,
	syscall.EINVAL,
}

// ShouldRetry reports whether a failed back-end or file operation may succeed when tried
// again. Missing entities, an unset back-end, caller cancellation, undecodable documents
// and file system errors that persist (permissions, full or read-only volumes, bad paths)
// are final; anything else, e.g. EMFILE or a network hiccup, is retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	for _, p := range permanentErrors {
		if errors.Is(err, p) {
			return false
		}
	}
	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	if errors.As(err, &se) || errors.As(err, &te) {
		return false
	}
	var le Error
	if errors.As(err, &le) && le.Code == DuplicateAdd {
		return false
	}
	// Some drivers only report EROFS as text.
	return !strings.Contains(err.Error(), "read-only file system")
}
