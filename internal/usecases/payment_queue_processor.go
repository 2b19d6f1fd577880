package usecases

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/internal/domain/repositories"
	"mint-gate.backend/internal/infrastructure/blockchain"
	"mint-gate.backend/internal/metrics"
	"mint-gate.backend/pkg/events"
	"mint-gate.backend/pkg/logger"
)

const (
	defaultPaymentBatchIntervalMs = 5000
	defaultPaymentBatchSize       = 10

	settleGasLimit = 150_000

	// maxTransientRetries bounds in-cycle retries of retryable RPC failures.
	maxTransientRetries = 3
	transientRetryDelay = 2 * time.Second
	deployLockName      = "token_deploy"
)

// PaymentQueueProcessor settles queued payments on-chain. Items are picked up
// oldest first in batches and submitted one at a time; nonce acquisition is
// the serialization point, so a single processor instance per relayer account
// is assumed. A confirmed settlement and the mint items it pays for commit in
// one transaction through the settlement bridge.
type PaymentQueueProcessor struct {
	payments repositories.PaymentQueueRepository
	uow      repositories.UnitOfWork
	locker   repositories.AdvisoryLocker
	bridge   *SettlementBridge
	events   events.Publisher
	sub      *chainSubmitter

	batchSize int
	interval  time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewPaymentQueueProcessor creates a payment queue processor. Batch interval
// and size are read from system settings once, here.
func NewPaymentQueueProcessor(
	payments repositories.PaymentQueueRepository,
	pendingTxs repositories.PendingTransactionRepository,
	settings repositories.SettingsRepository,
	uow repositories.UnitOfWork,
	locker repositories.AdvisoryLocker,
	bridge *SettlementBridge,
	publisher events.Publisher,
	chain blockchain.ChainClient,
	signer *blockchain.TxSigner,
	nonces *blockchain.NonceManager,
	monitor *blockchain.TransactionMonitor,
) *PaymentQueueProcessor {
	ctx := context.Background()
	intervalMs := settings.GetInt(ctx, entities.SettingPaymentBatchIntervalMs, defaultPaymentBatchIntervalMs)
	batchSize := settings.GetInt(ctx, entities.SettingPaymentBatchSize, defaultPaymentBatchSize)

	return &PaymentQueueProcessor{
		payments:  payments,
		uow:       uow,
		locker:    locker,
		bridge:    bridge,
		events:    publisher,
		sub:       &chainSubmitter{chain: chain, signer: signer, nonces: nonces, monitor: monitor, pendingTxs: pendingTxs},
		batchSize: batchSize,
		interval:  time.Duration(intervalMs) * time.Millisecond,
		stop:      make(chan struct{}),
	}
}

// AddToQueue validates and enqueues a payment, returning its id.
func (p *PaymentQueueProcessor) AddToQueue(ctx context.Context, input *entities.EnqueuePaymentInput) (uuid.UUID, error) {
	if err := validatePaymentInput(input); err != nil {
		return uuid.Nil, err
	}

	exists, err := p.payments.ExistsAuthorizationNonce(ctx, input.Payer, input.Authorization.Nonce)
	if err != nil {
		return uuid.Nil, err
	}
	if exists {
		return uuid.Nil, fmt.Errorf("%w: authorization nonce already used", domainerrors.ErrAlreadyExists)
	}

	item := &entities.PaymentQueueItem{
		PaymentType:   input.PaymentType,
		Payer:         input.Payer,
		Amount:        input.Amount,
		AssetAddress:  input.AssetAddress,
		TargetAddress: null.StringFromPtr(input.TargetAddress),
		Authorization: input.Authorization,
		Status:        entities.QueueStatusPending,
		Metadata:      input.Metadata,
	}
	if err := p.payments.Create(ctx, item); err != nil {
		return uuid.Nil, err
	}

	logger.Info(ctx, "Payment enqueued",
		zap.String("payment_id", item.ID.String()),
		zap.String("payment_type", string(item.PaymentType)),
		zap.String("payer", item.Payer),
		zap.String("amount", item.Amount))
	return item.ID, nil
}

// GetPaymentStatus returns one payment queue item
func (p *PaymentQueueProcessor) GetPaymentStatus(ctx context.Context, id uuid.UUID) (*entities.PaymentQueueItem, error) {
	return p.payments.GetByID(ctx, id)
}

// GetStats aggregates payment queue counts by status
func (p *PaymentQueueProcessor) GetStats(ctx context.Context) (*entities.PaymentQueueStats, error) {
	return p.payments.CountByStatus(ctx)
}

// Start recovers interrupted items and runs the batch loop until the context
// is cancelled or Stop is called.
func (p *PaymentQueueProcessor) Start(ctx context.Context) {
	reset, err := p.payments.ResetProcessing(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to reset interrupted payments", zap.Error(err))
	} else if reset > 0 {
		logger.Info(ctx, "Reset interrupted payments to pending", zap.Int64("count", reset))
	}

	logger.Info(ctx, "Starting payment queue processor",
		zap.Duration("interval", p.interval),
		zap.Int("batch_size", p.batchSize))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

// Stop terminates the batch loop
func (p *PaymentQueueProcessor) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *PaymentQueueProcessor) processBatch(ctx context.Context) {
	started := time.Now()
	defer func() {
		metrics.BatchDuration.WithLabelValues("payment").Observe(time.Since(started).Seconds())
	}()

	if stats, err := p.payments.CountByStatus(ctx); err == nil {
		metrics.PaymentQueueDepth.Set(float64(stats.Pending))
	}

	items, err := p.payments.ListPending(ctx, p.batchSize)
	if err != nil {
		logger.Error(ctx, "Failed to list pending payments", zap.Error(err))
		return
	}
	if len(items) == 0 {
		return
	}

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	if err := p.payments.MarkProcessing(ctx, ids); err != nil {
		logger.Error(ctx, "Failed to mark payments processing", zap.Error(err))
		return
	}

	for _, item := range items {
		p.processItem(ctx, item)
	}
}

// processItem drives one payment to a terminal or requeued state. A failure
// here never aborts the rest of the batch.
func (p *PaymentQueueProcessor) processItem(ctx context.Context, item *entities.PaymentQueueItem) {
	var err error
	if item.PaymentType == entities.PaymentTypeDeploy {
		err = p.locker.WithLock(ctx, deployLockName, func(ctx context.Context) error {
			return p.settle(ctx, item)
		})
	} else {
		err = p.settle(ctx, item)
	}
	if err == nil {
		metrics.PaymentsProcessed.WithLabelValues("completed").Inc()
		return
	}

	switch {
	case errors.Is(err, domainerrors.ErrLockBusy):
		logger.Warn(ctx, "Deploy lock busy, requeueing payment",
			zap.String("payment_id", item.ID.String()))
		p.requeue(ctx, item.ID)
	case domainerrors.IsTerminal(err):
		logger.Error(ctx, "Payment failed",
			zap.String("payment_id", item.ID.String()), zap.Error(err))
		if markErr := p.payments.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
			logger.Error(ctx, "Failed to mark payment failed",
				zap.String("payment_id", item.ID.String()), zap.Error(markErr))
		}
		metrics.PaymentsProcessed.WithLabelValues("failed").Inc()
		p.publish(ctx, events.SubjectPaymentFailed, item.ID, "", err.Error())
	default:
		logger.Warn(ctx, "Payment hit retryable failure, requeueing",
			zap.String("payment_id", item.ID.String()), zap.Error(err))
		p.requeue(ctx, item.ID)
	}
}

// settle submits the EIP-3009 settlement and, on confirmation, commits the
// completion and the derived mint items in one transaction.
func (p *PaymentQueueProcessor) settle(ctx context.Context, item *entities.PaymentQueueItem) error {
	auth := item.Authorization
	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return fmt.Errorf("%w: malformed authorization value %q", domainerrors.ErrInvalidAuthorization, auth.Value)
	}
	validAfter, ok := new(big.Int).SetString(auth.ValidAfter, 10)
	if !ok {
		validAfter = big.NewInt(0)
	}
	validBefore, ok := new(big.Int).SetString(auth.ValidBefore, 10)
	if !ok {
		return fmt.Errorf("%w: malformed validBefore %q", domainerrors.ErrInvalidAuthorization, auth.ValidBefore)
	}

	data, err := blockchain.TransferWithAuthorizationCall(
		common.HexToAddress(auth.From),
		common.HexToAddress(auth.To),
		value, validAfter, validBefore,
		auth.Nonce, auth.Signature,
	)
	if err != nil {
		return err
	}

	asset := common.HexToAddress(item.AssetAddress)

	var lastErr error
	for attempt := 0; attempt < maxTransientRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(transientRetryDelay):
			}
		}

		txHash, err := p.sub.submitAndAwait(ctx, asset, data, settleGasLimit)
		if err == nil {
			return p.complete(ctx, item, txHash)
		}
		lastErr = err
		if !errors.Is(err, domainerrors.ErrTransientRPC) {
			return err
		}
		logger.Warn(ctx, "Transient RPC failure settling payment",
			zap.String("payment_id", item.ID.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return lastErr
}

func (p *PaymentQueueProcessor) complete(ctx context.Context, item *entities.PaymentQueueItem, txHash string) error {
	result, _ := json.Marshal(map[string]string{"settlementTxHash": txHash})
	err := p.uow.Do(ctx, func(ctx context.Context) error {
		if err := p.bridge.OnPaymentCompleted(ctx, item, txHash); err != nil {
			return err
		}
		return p.payments.MarkCompleted(ctx, item.ID, txHash, string(result))
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "Payment settled",
		zap.String("payment_id", item.ID.String()),
		zap.String("settlement_tx_hash", txHash))
	p.publish(ctx, events.SubjectPaymentCompleted, item.ID, txHash, "")
	return nil
}

func (p *PaymentQueueProcessor) requeue(ctx context.Context, id uuid.UUID) {
	if err := p.payments.Requeue(ctx, id); err != nil {
		logger.Error(ctx, "Failed to requeue payment",
			zap.String("payment_id", id.String()), zap.Error(err))
	}
}

func (p *PaymentQueueProcessor) publish(ctx context.Context, subject string, id uuid.UUID, txHash, errMsg string) {
	payload := map[string]string{"id": id.String()}
	if txHash != "" {
		payload["settlementTxHash"] = txHash
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}
	if err := p.events.Publish(subject, payload); err != nil {
		logger.Debug(ctx, "Failed to publish event",
			zap.String("subject", subject), zap.Error(err))
	}
}

func validatePaymentInput(input *entities.EnqueuePaymentInput) error {
	if input.PaymentType != entities.PaymentTypeMint && input.PaymentType != entities.PaymentTypeDeploy {
		return fmt.Errorf("%w: unknown payment type %q", domainerrors.ErrInvalidInput, input.PaymentType)
	}
	if !common.IsHexAddress(input.Payer) {
		return fmt.Errorf("%w: malformed payer address", domainerrors.ErrInvalidInput)
	}
	if !common.IsHexAddress(input.AssetAddress) {
		return fmt.Errorf("%w: malformed asset address", domainerrors.ErrInvalidInput)
	}
	if input.PaymentType == entities.PaymentTypeMint {
		if input.TargetAddress == nil || !common.IsHexAddress(*input.TargetAddress) {
			return fmt.Errorf("%w: mint payments require a target contract", domainerrors.ErrInvalidInput)
		}
	}
	if input.TargetAddress != nil && !common.IsHexAddress(*input.TargetAddress) {
		return fmt.Errorf("%w: malformed target address", domainerrors.ErrInvalidInput)
	}

	amount, ok := new(big.Int).SetString(input.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be a positive integer string", domainerrors.ErrInvalidInput)
	}

	auth := input.Authorization
	if !strings.EqualFold(auth.From, input.Payer) {
		return fmt.Errorf("%w: authorization signer does not match payer", domainerrors.ErrInvalidAuthorization)
	}
	if !common.IsHexAddress(auth.To) {
		return fmt.Errorf("%w: malformed authorization recipient", domainerrors.ErrInvalidAuthorization)
	}
	if auth.Value != input.Amount {
		return fmt.Errorf("%w: authorization value does not match amount", domainerrors.ErrInvalidAuthorization)
	}
	if raw, err := hex.DecodeString(strings.TrimPrefix(auth.Nonce, "0x")); err != nil || len(raw) != 32 {
		return fmt.Errorf("%w: authorization nonce must be 32 bytes of hex", domainerrors.ErrInvalidAuthorization)
	}
	if raw, err := hex.DecodeString(strings.TrimPrefix(auth.Signature, "0x")); err != nil || len(raw) != 65 {
		return fmt.Errorf("%w: authorization signature must be 65 bytes of hex", domainerrors.ErrInvalidAuthorization)
	}
	return nil
}
