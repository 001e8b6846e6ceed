// Package repository persists enrollment templates and the verification
// attempt ledger in Postgres via gorm.
package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/bioverify/internal/biometric"
	"github.com/example/bioverify/internal/logging"
)

// ErrNoActiveTemplate reports that a (user, modality) pair has no active
// enrollment. Callers surface this as a distinct rejection, never as a
// threshold failure.
var ErrNoActiveTemplate = errors.New("no active enrollment template")

// ErrTemplateNotFound reports a deactivation target that does not exist.
var ErrTemplateNotFound = errors.New("enrollment template not found")

type retrier struct {
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func newRetrier(logger *zap.Logger) retrier {
	return retrier{
		logger:         logger,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// executeWithRetry retries fn on transient errors with exponential
// backoff, wrapping the terminal error with operation metadata. Expected
// domain outcomes (missing rows, refused deletions) pass through unwrapped
// and unlogged; they are rejections, not infrastructure failures.
func (r retrier) executeWithRetry(ctx context.Context, operation, attemptID string, fn func() error) error {
	if r.retryAttempts <= 1 {
		err := fn()
		if err == nil || isExpectedOutcome(err) {
			return err
		}
		return logging.NewOperationError(operation, attemptID, err)
	}

	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, attemptID)
	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, attemptID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if isExpectedOutcome(err) {
			return err
		}

		if !isTransientError(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, attemptID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, attemptID, err)
}

// isExpectedOutcome reports errors that represent normal domain results
// rather than infrastructure failures.
func isExpectedOutcome(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, ErrNoActiveTemplate) ||
		errors.Is(err, ErrTemplateNotFound) {
		return true
	}
	var minErr *biometric.MinimumMethodsError
	return errors.As(err, &minErr)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
