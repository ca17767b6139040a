package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by pgxpool.Pool and sql.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabasePingCheck returns a readiness check that pings the database.
func DatabasePingCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping database")
		}
		return nil
	}
}

// GoroutineCountCheck returns a liveness check that fails when the number of
// goroutines exceeds threshold, which usually indicates a leak.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// DeadlineCheck wraps check so it also fails when it takes longer than limit.
// The probe timeout already bounds execution; this reports slowness before
// the hard timeout trips.
func DeadlineCheck(limit time.Duration, check CheckFunc) CheckFunc {
	return func(ctx context.Context) error {
		start := time.Now()
		if err := check(ctx); err != nil {
			return err
		}
		if elapsed := time.Since(start); elapsed > limit {
			return errors.Errorf("check took %s, limit %s", elapsed, limit)
		}
		return nil
	}
}
