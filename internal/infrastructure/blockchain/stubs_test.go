package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("development")
	os.Exit(m.Run())
}

// stubChain implements ChainClient with overridable behavior per call.
type stubChain struct {
	pendingNonceAtFn     func(ctx context.Context, account common.Address) (uint64, error)
	transactionReceiptFn func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	suggestGasPriceFn    func(ctx context.Context) (*big.Int, error)
	callViewFn           func(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	sendTransactionFn    func(ctx context.Context, tx *types.Transaction) error
}

func (s *stubChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if s.pendingNonceAtFn != nil {
		return s.pendingNonceAtFn(ctx, account)
	}
	return 0, nil
}

func (s *stubChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if s.transactionReceiptFn != nil {
		return s.transactionReceiptFn(ctx, txHash)
	}
	return nil, fmt.Errorf("not found")
}

func (s *stubChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if s.suggestGasPriceFn != nil {
		return s.suggestGasPriceFn(ctx)
	}
	return big.NewInt(1_000_000_000), nil
}

func (s *stubChain) CallView(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if s.callViewFn != nil {
		return s.callViewFn(ctx, to, data)
	}
	return make([]byte, 32), nil
}

func (s *stubChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if s.sendTransactionFn != nil {
		return s.sendTransactionFn(ctx, tx)
	}
	return nil
}

// memPendingTxRepo is an in-memory PendingTransactionRepository.
type memPendingTxRepo struct {
	mu   sync.Mutex
	rows map[string]*entities.PendingTransaction
}

func newMemPendingTxRepo() *memPendingTxRepo {
	return &memPendingTxRepo{rows: make(map[string]*entities.PendingTransaction)}
}

func pendingKey(account string, nonce uint64) string {
	return fmt.Sprintf("%s/%d", common.HexToAddress(account).Hex(), nonce)
}

func (r *memPendingTxRepo) Create(ctx context.Context, tx *entities.PendingTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pendingKey(tx.Account, tx.Nonce)
	if _, ok := r.rows[key]; ok {
		return domainerrors.ErrNonceConflict
	}
	r.rows[key] = tx
	return nil
}

func (r *memPendingTxRepo) UpdateHash(ctx context.Context, account string, nonce uint64, txHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[pendingKey(account, nonce)]
	if !ok {
		return domainerrors.ErrNotFound
	}
	row.TxHash = txHash
	return nil
}

func (r *memPendingTxRepo) Delete(ctx context.Context, account string, nonce uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, pendingKey(account, nonce))
	return nil
}

func (r *memPendingTxRepo) Exists(ctx context.Context, account string, nonce uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[pendingKey(account, nonce)]
	return ok, nil
}

func (r *memPendingTxRepo) ListByAccount(ctx context.Context, account string) ([]*entities.PendingTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var txs []*entities.PendingTransaction
	for _, row := range r.rows {
		if common.HexToAddress(row.Account) == common.HexToAddress(account) {
			txs = append(txs, row)
		}
	}
	return txs, nil
}
