package blockchain

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/internal/domain/repositories"
)

// NonceManager hands out unique, strictly increasing nonces for one signing
// account shared by multiple producers inside a single process. The first
// Acquire seeds from the chain's pending-inclusive transaction count; later
// calls return last-issued+1, skipping any nonce still recorded in the
// durable pending_transactions table. That table is what makes a restart
// safe: in-memory state is gone, but in-flight nonces are not re-issued.
//
// Cross-process safety is an operational rule (one processor instance per
// signing account), not a property of this type.
type NonceManager struct {
	reader     ChainReader
	pendingTxs repositories.PendingTransactionRepository
	account    common.Address

	mu     sync.Mutex
	next   uint64
	seeded bool
	// freed holds nonces that were acquired but never broadcast; they are
	// reused before new ones are issued so the account sequence has no holes.
	freed []uint64
}

// NonceLease is one acquired nonce. Exactly one of Release or Abandon must
// be called, after the owning transaction reached a terminal state.
type NonceLease struct {
	Nonce uint64

	once    sync.Once
	release func(broadcast bool)
}

// Release ends the lease for a nonce whose transaction was broadcast.
func (l *NonceLease) Release() {
	l.once.Do(func() { l.release(true) })
}

// Abandon ends the lease for a nonce that was never broadcast; the nonce is
// returned to the manager for reuse so the account sequence stays gapless.
func (l *NonceLease) Abandon() {
	l.once.Do(func() { l.release(false) })
}

// NewNonceManager creates a nonce manager for one signing account
func NewNonceManager(reader ChainReader, pendingTxs repositories.PendingTransactionRepository, account common.Address) *NonceManager {
	return &NonceManager{
		reader:     reader,
		pendingTxs: pendingTxs,
		account:    account,
	}
}

// Account returns the managed signing account
func (m *NonceManager) Account() common.Address {
	return m.account
}

// Acquire returns the next free nonce for the account. It fails with a
// retryable error when the RPC is unreachable; it never fabricates a nonce.
func (m *NonceManager) Acquire(ctx context.Context) (*NonceLease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.seeded {
		pending, err := m.reader.PendingNonceAt(ctx, m.account)
		if err != nil {
			return nil, fmt.Errorf("%w: seeding nonce: %v", domainerrors.ErrTransientRPC, err)
		}
		m.next = pending
		m.seeded = true
	}

	nonce, err := m.pickLocked(ctx)
	if err != nil {
		return nil, err
	}

	return &NonceLease{
		Nonce: nonce,
		release: func(broadcast bool) {
			if broadcast {
				return
			}
			m.mu.Lock()
			m.freed = append(m.freed, nonce)
			sort.Slice(m.freed, func(i, j int) bool { return m.freed[i] < m.freed[j] })
			m.mu.Unlock()
		},
	}, nil
}

// pickLocked selects the lowest usable nonce: an abandoned one first, then
// the counter, skipping values still present in the pending table. The
// skip defends against stale in-memory state after a crash.
func (m *NonceManager) pickLocked(ctx context.Context) (uint64, error) {
	for i, n := range m.freed {
		inFlight, err := m.pendingTxs.Exists(ctx, m.account.Hex(), n)
		if err != nil {
			return 0, err
		}
		if !inFlight {
			m.freed = append(m.freed[:i], m.freed[i+1:]...)
			return n, nil
		}
	}

	for {
		candidate := m.next
		inFlight, err := m.pendingTxs.Exists(ctx, m.account.Hex(), candidate)
		if err != nil {
			return 0, err
		}
		m.next = candidate + 1
		if !inFlight {
			return candidate, nil
		}
	}
}

// Refresh re-reads the chain's pending count and only ever advances the
// counter, absorbing nonces consumed outside this process.
func (m *NonceManager) Refresh(ctx context.Context) error {
	pending, err := m.reader.PendingNonceAt(ctx, m.account)
	if err != nil {
		return fmt.Errorf("%w: refreshing nonce: %v", domainerrors.ErrTransientRPC, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.seeded || pending > m.next {
		m.next = pending
		m.seeded = true
		kept := m.freed[:0]
		for _, n := range m.freed {
			if n >= pending {
				kept = append(kept, n)
			}
		}
		m.freed = kept
	}
	return nil
}
