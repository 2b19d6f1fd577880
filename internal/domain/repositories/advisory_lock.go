package repositories

import "context"

// AdvisoryLocker serializes rare heavyweight operations (contract
// deployments) through a database-level named lock. WithLock fails fast
// with domain ErrLockBusy when another session holds the lock; callers are
// expected to surface a "try again shortly" signal instead of queuing.
type AdvisoryLocker interface {
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}
