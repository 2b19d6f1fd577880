package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/internal/metrics"
	"mint-gate.backend/pkg/logger"
)

// TxResultStatus is the terminal outcome of a tracked transaction.
type TxResultStatus int

const (
	TxConfirmed TxResultStatus = iota
	TxReverted
	TxTimedOut
)

// TxResult is delivered exactly once per tracked transaction.
type TxResult struct {
	Status  TxResultStatus
	Hash    common.Hash
	Receipt *types.Receipt
	Err     error
}

// ResubmitFunc re-broadcasts the identical call with the same nonce at a
// new gas price, returning the replacement hash.
type ResubmitFunc func(ctx context.Context, gasPrice *big.Int) (common.Hash, error)

// TrackedTx registers a broadcast transaction for confirmation watching.
type TrackedTx struct {
	Hash     common.Hash
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	Resubmit ResubmitFunc
}

// MonitorConfig bounds the acceleration behavior.
type MonitorConfig struct {
	PollInterval    time.Duration
	AccelerateAfter time.Duration
	MaxWait         time.Duration
	MaxAttempts     int
}

// DefaultMonitorConfig returns the standard bounds: poll every 2s,
// accelerate after 5s unconfirmed, give up after 5 resubmissions or 120s.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval:    2 * time.Second,
		AccelerateAfter: 5 * time.Second,
		MaxWait:         120 * time.Second,
		MaxAttempts:     5,
	}
}

type trackedEntry struct {
	tx          TrackedTx
	attempts    int
	bumpPercent int64
	startedAt   time.Time
	submittedAt time.Time
	result      chan TxResult
}

// TransactionMonitor watches unconfirmed transactions and resubmits them at
// a higher fee after a timeout, bounded in attempts and wall-clock time.
// Per transaction the state machine is Submitted -> {Confirmed, Accelerated
// (new hash, back to Submitted), Abandoned}. Giving up only stops tracking:
// an already-broadcast transaction cannot be cancelled and may still land
// later, which callers record as a residual note on the failed item.
type TransactionMonitor struct {
	reader ChainReader
	cfg    MonitorConfig

	mu      sync.Mutex
	tracked map[common.Hash]*trackedEntry

	stop     chan struct{}
	stopOnce sync.Once
}

// NewTransactionMonitor creates a transaction monitor
func NewTransactionMonitor(reader ChainReader, cfg MonitorConfig) *TransactionMonitor {
	if cfg.PollInterval <= 0 {
		cfg = DefaultMonitorConfig()
	}
	return &TransactionMonitor{
		reader:  reader,
		cfg:     cfg,
		tracked: make(map[common.Hash]*trackedEntry),
		stop:    make(chan struct{}),
	}
}

// Track registers a transaction and returns a channel that receives exactly
// one terminal result.
func (m *TransactionMonitor) Track(tx TrackedTx) <-chan TxResult {
	entry := &trackedEntry{
		tx:          tx,
		bumpPercent: 120,
		startedAt:   time.Now(),
		submittedAt: time.Now(),
		result:      make(chan TxResult, 1),
	}
	m.mu.Lock()
	m.tracked[tx.Hash] = entry
	m.mu.Unlock()
	return entry.result
}

// Start runs the polling loop until the context is cancelled or Stop is called
func (m *TransactionMonitor) Start(ctx context.Context) {
	logger.Info(ctx, "Starting transaction monitor",
		zap.Duration("poll_interval", m.cfg.PollInterval),
		zap.Int("max_attempts", m.cfg.MaxAttempts))

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// Stop terminates the polling loop
func (m *TransactionMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// TrackedCount returns the number of transactions currently watched
func (m *TransactionMonitor) TrackedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracked)
}

func (m *TransactionMonitor) poll(ctx context.Context) {
	m.mu.Lock()
	hashes := make([]common.Hash, 0, len(m.tracked))
	for h := range m.tracked {
		hashes = append(hashes, h)
	}
	m.mu.Unlock()

	for _, hash := range hashes {
		m.checkOne(ctx, hash)
	}
}

func (m *TransactionMonitor) checkOne(ctx context.Context, hash common.Hash) {
	m.mu.Lock()
	entry, ok := m.tracked[hash]
	m.mu.Unlock()
	if !ok {
		return
	}

	receipt, err := m.reader.TransactionReceipt(ctx, hash)
	if err == nil && receipt != nil {
		status := TxConfirmed
		var resultErr error
		if receipt.Status == types.ReceiptStatusFailed {
			status = TxReverted
			resultErr = fmt.Errorf("%w: tx %s", domainerrors.ErrOnChainRevert, hash.Hex())
		}
		m.finish(hash, TxResult{Status: status, Hash: hash, Receipt: receipt, Err: resultErr})
		return
	}

	// No receipt yet. Decide between waiting, accelerating and giving up.
	now := time.Now()
	exhausted := entry.attempts >= m.cfg.MaxAttempts
	expired := now.Sub(entry.startedAt) > m.cfg.MaxWait
	if expired || (exhausted && now.Sub(entry.submittedAt) > m.cfg.AccelerateAfter) {
		m.finish(hash, TxResult{
			Status: TxTimedOut,
			Hash:   hash,
			Err: fmt.Errorf("%w: tx %s unconfirmed after %d resubmissions; it may still land later",
				domainerrors.ErrTxTimeout, hash.Hex(), entry.attempts),
		})
		return
	}

	if now.Sub(entry.submittedAt) <= m.cfg.AccelerateAfter || exhausted {
		return
	}
	m.accelerate(ctx, hash, entry)
}

// accelerate resubmits the identical call with the same nonce at a strictly
// higher fee. An "underpriced" rejection raises the multiplier for the next
// attempt without consuming one.
func (m *TransactionMonitor) accelerate(ctx context.Context, hash common.Hash, entry *trackedEntry) {
	if entry.tx.Resubmit == nil {
		return
	}

	newPrice := new(big.Int).Mul(entry.tx.GasPrice, big.NewInt(entry.bumpPercent))
	newPrice.Div(newPrice, big.NewInt(100))
	if newPrice.Cmp(entry.tx.GasPrice) <= 0 {
		newPrice = new(big.Int).Add(entry.tx.GasPrice, big.NewInt(1))
	}

	newHash, err := entry.tx.Resubmit(ctx, newPrice)
	if err != nil {
		if IsUnderpriced(err) {
			m.mu.Lock()
			entry.bumpPercent += 20
			m.mu.Unlock()
			logger.Warn(ctx, "Replacement underpriced, raising fee multiplier",
				zap.String("tx_hash", hash.Hex()),
				zap.Int64("bump_percent", entry.bumpPercent))
			return
		}
		logger.Warn(ctx, "Failed to accelerate transaction",
			zap.String("tx_hash", hash.Hex()), zap.Error(err))
		return
	}

	m.mu.Lock()
	delete(m.tracked, hash)
	entry.tx.Hash = newHash
	entry.tx.GasPrice = newPrice
	entry.attempts++
	entry.submittedAt = time.Now()
	m.tracked[newHash] = entry
	m.mu.Unlock()

	metrics.TxAccelerations.Inc()
	logger.Info(ctx, "Accelerated transaction",
		zap.String("old_hash", hash.Hex()),
		zap.String("new_hash", newHash.Hex()),
		zap.String("gas_price", newPrice.String()),
		zap.Int("attempt", entry.attempts))
}

func (m *TransactionMonitor) finish(hash common.Hash, result TxResult) {
	m.mu.Lock()
	entry, ok := m.tracked[hash]
	if ok {
		delete(m.tracked, hash)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	entry.result <- result
}
