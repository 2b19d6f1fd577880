package usecases

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/internal/domain/repositories"
	"mint-gate.backend/internal/infrastructure/blockchain"
	"mint-gate.backend/pkg/logger"
)

func nullString(s string) null.String {
	if s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}

// chainSubmitter owns the broadcast path shared by both queue processors:
// acquire a nonce, sign, send, record the durable pending row, hand the
// transaction to the monitor and block on its single terminal result.
type chainSubmitter struct {
	chain      blockchain.ChainClient
	signer     *blockchain.TxSigner
	nonces     *blockchain.NonceManager
	monitor    *blockchain.TransactionMonitor
	pendingTxs repositories.PendingTransactionRepository
}

// submitAndAwait broadcasts one contract call and waits for its terminal
// outcome. On confirmation it returns the landing hash. On a nonce conflict
// it refreshes the manager and re-acquires once before giving up. The
// pending row is removed on confirm and revert but deliberately kept on
// timeout, because a timed-out transaction may still land and its nonce must
// not be reused.
func (s *chainSubmitter) submitAndAwait(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (string, error) {
	account := s.signer.Address().Hex()

	for attempt := 0; attempt < 2; attempt++ {
		lease, err := s.nonces.Acquire(ctx)
		if err != nil {
			return "", err
		}

		gasPrice, err := s.chain.SuggestGasPrice(ctx)
		if err != nil {
			lease.Abandon()
			return "", fmt.Errorf("%w: suggesting gas price: %v", domainerrors.ErrTransientRPC, err)
		}

		signed, err := s.signer.SignCall(to, data, lease.Nonce, gasPrice, gasLimit)
		if err != nil {
			lease.Abandon()
			return "", err
		}

		if err := s.chain.SendTransaction(ctx, signed); err != nil {
			classified := blockchain.ClassifyRPCError(err)
			if errors.Is(classified, domainerrors.ErrNonceConflict) {
				// The nonce was consumed elsewhere. Drop it, resync and retry
				// once with a fresh one.
				lease.Release()
				if refreshErr := s.nonces.Refresh(ctx); refreshErr != nil {
					return "", refreshErr
				}
				logger.Warn(ctx, "Nonce conflict on broadcast, re-acquiring",
					zap.Uint64("nonce", lease.Nonce))
				continue
			}
			lease.Abandon()
			return "", classified
		}

		hash := signed.Hash()
		if err := s.pendingTxs.Create(ctx, &entities.PendingTransaction{
			Account: account,
			Nonce:   lease.Nonce,
			TxHash:  hash.Hex(),
			Status:  "submitted",
		}); err != nil {
			logger.Error(ctx, "Failed to record pending transaction",
				zap.String("tx_hash", hash.Hex()), zap.Error(err))
		}

		nonce := lease.Nonce
		resultCh := s.monitor.Track(blockchain.TrackedTx{
			Hash:     hash,
			Nonce:    nonce,
			GasPrice: gasPrice,
			GasLimit: gasLimit,
			Resubmit: func(ctx context.Context, price *big.Int) (common.Hash, error) {
				replacement, err := s.signer.SignCall(to, data, nonce, price, gasLimit)
				if err != nil {
					return common.Hash{}, err
				}
				if err := s.chain.SendTransaction(ctx, replacement); err != nil {
					return common.Hash{}, err
				}
				if err := s.pendingTxs.UpdateHash(ctx, account, nonce, replacement.Hash().Hex()); err != nil {
					logger.Warn(ctx, "Failed to update pending transaction hash",
						zap.Uint64("nonce", nonce), zap.Error(err))
				}
				return replacement.Hash(), nil
			},
		})

		select {
		case <-ctx.Done():
			lease.Release()
			return "", ctx.Err()
		case result := <-resultCh:
			switch result.Status {
			case blockchain.TxConfirmed:
				if err := s.pendingTxs.Delete(ctx, account, nonce); err != nil {
					logger.Warn(ctx, "Failed to delete pending transaction row",
						zap.Uint64("nonce", nonce), zap.Error(err))
				}
				lease.Release()
				return result.Hash.Hex(), nil
			case blockchain.TxReverted:
				if err := s.pendingTxs.Delete(ctx, account, nonce); err != nil {
					logger.Warn(ctx, "Failed to delete pending transaction row",
						zap.Uint64("nonce", nonce), zap.Error(err))
				}
				lease.Release()
				return "", result.Err
			default:
				lease.Release()
				return "", result.Err
			}
		}
	}

	return "", fmt.Errorf("%w: nonce conflicts persisted across re-acquire", domainerrors.ErrNonceConflict)
}
