package repositories

import (
	"context"
	"hash/fnv"
	"sync"

	"gorm.io/gorm"
	domainerrors "mint-gate.backend/internal/domain/errors"
)

// AdvisoryLockGate implements AdvisoryLocker on Postgres using
// transaction-scoped advisory locks. Heavy non-queued operations (contract
// deployments) run under WithLock; concurrent attempts fail fast with
// ErrLockBusy instead of queuing.
//
// Non-Postgres dialects (the sqlite test database) fall back to an
// in-process mutex per lock name, which gives the same semantics within a
// single process.
type AdvisoryLockGate struct {
	db *gorm.DB

	mu    sync.Mutex
	local map[string]bool
}

// NewAdvisoryLockGate creates a new advisory lock gate
func NewAdvisoryLockGate(db *gorm.DB) *AdvisoryLockGate {
	return &AdvisoryLockGate{db: db, local: make(map[string]bool)}
}

// lockKey maps a lock name to a stable 64-bit key for pg_try_advisory_xact_lock.
func lockKey(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64())
}

// WithLock runs fn inside a transaction holding the named advisory lock.
// The lock is released automatically when the transaction ends.
func (g *AdvisoryLockGate) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	db := GetDB(ctx, g.db)

	if db.Dialector.Name() != "postgres" {
		return g.withLocalLock(ctx, name, fn)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acquired bool
		if err := tx.Raw("SELECT pg_try_advisory_xact_lock(?)", lockKey(name)).Scan(&acquired).Error; err != nil {
			return err
		}
		if !acquired {
			return domainerrors.ErrLockBusy
		}
		txCtx := context.WithValue(ctx, txKey, tx)
		return fn(txCtx)
	})
}

func (g *AdvisoryLockGate) withLocalLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	g.mu.Lock()
	if g.local[name] {
		g.mu.Unlock()
		return domainerrors.ErrLockBusy
	}
	g.local[name] = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.local, name)
		g.mu.Unlock()
	}()

	return fn(ctx)
}
