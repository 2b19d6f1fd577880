package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/internal/domain/repositories"
	"mint-gate.backend/pkg/logger"
)

// SettlementBridge turns a completed mint-type payment into mint queue items.
// It derives deterministic references from the payment itself, so running it
// twice for the same payment inserts nothing new. It is called inside the
// transaction that marks the payment completed.
type SettlementBridge struct {
	mints repositories.MintQueueRepository
}

// NewSettlementBridge creates a settlement bridge
func NewSettlementBridge(mints repositories.MintQueueRepository) *SettlementBridge {
	return &SettlementBridge{mints: mints}
}

// DeriveMintReference computes the deterministic 32-byte reference for the
// i-th mint derived from a payment.
func DeriveMintReference(payment *entities.PaymentQueueItem, target string, i int) string {
	seed := fmt.Sprintf("%s|%d|%s",
		strings.ToLower(payment.Payer),
		payment.CreatedAt.UnixNano()+int64(i),
		strings.ToLower(target))
	return "0x" + fmt.Sprintf("%x", crypto.Keccak256([]byte(seed)))
}

// OnPaymentCompleted creates the mint queue items a settled payment pays
// for. Deploy-type payments produce no mint items. Quantity below one is
// treated as one.
func (b *SettlementBridge) OnPaymentCompleted(ctx context.Context, payment *entities.PaymentQueueItem, settlementTxHash string) error {
	if payment.PaymentType != entities.PaymentTypeMint {
		return nil
	}
	if !payment.TargetAddress.Valid || payment.TargetAddress.String == "" {
		return fmt.Errorf("%w: mint payment %s has no target contract", domainerrors.ErrInvalidInput, payment.ID)
	}

	quantity := payment.Metadata.Quantity
	if quantity < 1 {
		quantity = 1
	}
	mode := payment.Metadata.Mode
	if mode == "" {
		mode = entities.PaymentModeDirect
	}

	target := payment.TargetAddress.String
	created := 0
	for i := 0; i < quantity; i++ {
		item := &entities.MintQueueItem{
			Payer:         payment.Payer,
			MintReference: DeriveMintReference(payment, target, i),
			TargetAddress: target,
			PaymentTxHash: nullString(settlementTxHash),
			Mode:          mode,
			Status:        entities.QueueStatusPending,
		}
		if err := b.mints.Create(ctx, item); err != nil {
			if errors.Is(err, domainerrors.ErrAlreadyExists) {
				continue
			}
			return err
		}
		created++
	}

	logger.Info(ctx, "Settlement bridge enqueued mints",
		zap.String("payment_id", payment.ID.String()),
		zap.String("settlement_tx_hash", settlementTxHash),
		zap.Int("quantity", quantity),
		zap.Int("created", created))
	return nil
}
