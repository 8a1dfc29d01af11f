package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	pkgerrors "github.com/hpratama/resellhub-backend/pkg/errors"
)

// Postgres codes that indicate the transaction may succeed on a clean retry.
var transientPGCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"53300": {}, // too_many_connections
	"57P03": {}, // cannot_connect_now
	"08000": {}, // connection_exception
	"08003": {}, // connection_does_not_exist
	"08006": {}, // connection_failure
}

// IsTransient reports whether err looks like a storage failure worth retrying.
// Typed domain errors are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if typed := pkgerrors.As(err); typed != nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := transientPGCodes[pgErr.Code]
		return ok
	}

	msg := err.Error()
	for _, fragment := range []string{"connection refused", "connection reset", "broken pipe", "i/o timeout"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// WithTxRetry runs fn inside a transaction, retrying the whole transaction up
// to attempts times with exponential backoff when the failure is transient.
// Business failures propagate immediately.
func (c *Client) WithTxRetry(ctx context.Context, attempts int, backoff time.Duration, fn func(tx *gorm.DB) error) error {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := c.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// RetryRunner adapts WithTxRetry to the plain WithTx signature services take.
type RetryRunner struct {
	Client   *Client
	Attempts int
	Backoff  time.Duration
}

func (r RetryRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.Client == nil {
		return errors.New("db client required")
	}
	return r.Client.WithTxRetry(ctx, r.Attempts, r.Backoff, fn)
}
