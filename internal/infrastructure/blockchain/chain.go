package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	domainerrors "mint-gate.backend/internal/domain/errors"
)

// ChainReader is the read-only RPC surface consumed by the queue subsystem.
type ChainReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallView(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// ChainWriter broadcasts signed transactions.
type ChainWriter interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// ChainClient combines the RPC surface the processors depend on.
type ChainClient interface {
	ChainReader
	ChainWriter
}

// ClassifyRPCError maps raw RPC failures onto the domain error taxonomy so
// the processors can decide between retry and terminal failure.
func ClassifyRPCError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "already known"):
		return fmt.Errorf("%w: %v", domainerrors.ErrNonceConflict, err)
	case strings.Contains(msg, "execution reverted"):
		return fmt.Errorf("%w: %v", domainerrors.ErrOnChainRevert, err)
	default:
		return fmt.Errorf("%w: %v", domainerrors.ErrTransientRPC, err)
	}
}

// IsUnderpriced reports whether a broadcast was rejected for offering a fee
// below the replacement threshold.
func IsUnderpriced(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "underpriced")
}
