package usecases

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
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
	defaultMintBatchIntervalMs = 5000
	defaultMintBatchSize       = 20

	// mintGasLimit grows with group size; a single mint fits well under the base.
	mintBaseGasLimit    = 200_000
	mintPerItemGasLimit = 80_000

	defaultMintMaxRetries = 3

	// mintedExternally is recorded as the history tx hash when a reference
	// turns out already minted on-chain and no transaction of ours exists.
	mintedExternally = "external"
)

// MintQueueProcessor executes queued token mints. Pending items are grouped
// by target contract; each reference is checked against on-chain minted state
// before submission, making re-runs after a crash idempotent. Groups of more
// than one item go out as a single mintBatch call.
type MintQueueProcessor struct {
	mints   repositories.MintQueueRepository
	history repositories.MintHistoryRepository
	uow     repositories.UnitOfWork
	events  events.Publisher
	sub     *chainSubmitter

	batchSize  int
	interval   time.Duration
	maxRetries int

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMintQueueProcessor creates a mint queue processor. Batch interval and
// size are read from system settings once, here.
func NewMintQueueProcessor(
	mints repositories.MintQueueRepository,
	history repositories.MintHistoryRepository,
	pendingTxs repositories.PendingTransactionRepository,
	settings repositories.SettingsRepository,
	uow repositories.UnitOfWork,
	publisher events.Publisher,
	chain blockchain.ChainClient,
	signer *blockchain.TxSigner,
	nonces *blockchain.NonceManager,
	monitor *blockchain.TransactionMonitor,
) *MintQueueProcessor {
	ctx := context.Background()
	intervalMs := settings.GetInt(ctx, entities.SettingMintBatchIntervalMs, defaultMintBatchIntervalMs)
	batchSize := settings.GetInt(ctx, entities.SettingMintBatchSize, defaultMintBatchSize)

	return &MintQueueProcessor{
		mints:      mints,
		history:    history,
		uow:        uow,
		events:     publisher,
		sub:        &chainSubmitter{chain: chain, signer: signer, nonces: nonces, monitor: monitor, pendingTxs: pendingTxs},
		batchSize:  batchSize,
		interval:   time.Duration(intervalMs) * time.Millisecond,
		maxRetries: defaultMintMaxRetries,
		stop:       make(chan struct{}),
	}
}

// AddToQueue enqueues a mint. A duplicate mint reference is not an error: the
// existing item's id is returned so callers can poll it.
func (p *MintQueueProcessor) AddToQueue(ctx context.Context, input *entities.EnqueueMintInput) (uuid.UUID, error) {
	if err := validateMintInput(input); err != nil {
		return uuid.Nil, err
	}

	item := &entities.MintQueueItem{
		Payer:         input.Payer,
		MintReference: strings.ToLower(input.MintReference),
		TargetAddress: input.TargetAddress,
		PaymentTxHash: null.StringFromPtr(input.PaymentTxHash),
		Mode:          input.Mode,
		Status:        entities.QueueStatusPending,
	}
	err := p.mints.Create(ctx, item)
	if err == nil {
		logger.Info(ctx, "Mint enqueued",
			zap.String("mint_id", item.ID.String()),
			zap.String("mint_reference", item.MintReference),
			zap.String("payer", item.Payer))
		return item.ID, nil
	}
	if errors.Is(err, domainerrors.ErrAlreadyExists) {
		existing, getErr := p.mints.GetByReference(ctx, item.MintReference)
		if getErr != nil {
			return uuid.Nil, getErr
		}
		return existing.ID, nil
	}
	return uuid.Nil, err
}

// GetQueueStatus returns one mint item with its pending-queue position
func (p *MintQueueProcessor) GetQueueStatus(ctx context.Context, id uuid.UUID) (*entities.MintQueueStatus, error) {
	item, err := p.mints.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	position, err := p.mints.PendingPosition(ctx, id)
	if err != nil {
		return nil, err
	}
	return &entities.MintQueueStatus{Item: item, Position: position}, nil
}

// GetQueueStats aggregates mint queue counts by status plus history size
func (p *MintQueueProcessor) GetQueueStats(ctx context.Context) (*entities.MintQueueStats, error) {
	stats, err := p.mints.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	total, err := p.history.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.History = total
	return stats, nil
}

// Start recovers interrupted items and runs the batch loop until the context
// is cancelled or Stop is called.
func (p *MintQueueProcessor) Start(ctx context.Context) {
	reset, err := p.mints.ResetProcessing(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to reset interrupted mints", zap.Error(err))
	} else if reset > 0 {
		logger.Info(ctx, "Reset interrupted mints to pending", zap.Int64("count", reset))
	}

	logger.Info(ctx, "Starting mint queue processor",
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
func (p *MintQueueProcessor) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *MintQueueProcessor) processBatch(ctx context.Context) {
	started := time.Now()
	defer func() {
		metrics.BatchDuration.WithLabelValues("mint").Observe(time.Since(started).Seconds())
	}()

	if stats, err := p.mints.CountByStatus(ctx); err == nil {
		metrics.MintQueueDepth.Set(float64(stats.Pending))
	}

	items, err := p.mints.ListPending(ctx, p.batchSize)
	if err != nil {
		logger.Error(ctx, "Failed to list pending mints", zap.Error(err))
		return
	}
	if len(items) == 0 {
		return
	}

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	if err := p.mints.MarkProcessing(ctx, ids); err != nil {
		logger.Error(ctx, "Failed to mark mints processing", zap.Error(err))
		return
	}

	for target, group := range groupByTarget(items) {
		p.processGroup(ctx, target, group)
	}
}

func groupByTarget(items []*entities.MintQueueItem) map[string][]*entities.MintQueueItem {
	groups := make(map[string][]*entities.MintQueueItem)
	for _, item := range items {
		key := strings.ToLower(item.TargetAddress)
		groups[key] = append(groups[key], item)
	}
	return groups
}

// processGroup drives one target contract's items to completion. Items whose
// reference is already minted on-chain are completed without a new
// submission; the rest go out as one mint or mintBatch call.
func (p *MintQueueProcessor) processGroup(ctx context.Context, target string, items []*entities.MintQueueItem) {
	contract := common.HexToAddress(target)

	pending := make([]*entities.MintQueueItem, 0, len(items))
	for i, item := range items {
		minted, err := p.alreadyMinted(ctx, contract, item.MintReference)
		if err != nil {
			logger.Warn(ctx, "Failed to check minted state, deferring group",
				zap.String("target", target), zap.Error(err))
			p.recordGroupFailure(ctx, append(pending, items[i:]...), err)
			return
		}
		if minted {
			logger.Info(ctx, "Reference already minted on-chain, completing without submission",
				zap.String("mint_id", item.ID.String()),
				zap.String("mint_reference", item.MintReference))
			txHash := item.MintTxHash.String
			if txHash == "" {
				txHash = mintedExternally
			}
			p.completeItems(ctx, []*entities.MintQueueItem{item}, txHash)
			continue
		}
		pending = append(pending, item)
	}
	if len(pending) == 0 {
		return
	}

	data, err := buildMintCalldata(pending)
	if err != nil {
		p.recordGroupFailure(ctx, pending, err)
		return
	}

	gasLimit := uint64(mintBaseGasLimit + mintPerItemGasLimit*len(pending))
	txHash, err := p.sub.submitAndAwait(ctx, contract, data, gasLimit)
	if err != nil {
		logger.Error(ctx, "Mint submission failed",
			zap.String("target", target),
			zap.Int("items", len(pending)),
			zap.Error(err))
		p.recordGroupFailure(ctx, pending, err)
		return
	}

	p.completeItems(ctx, pending, txHash)
}

func buildMintCalldata(items []*entities.MintQueueItem) ([]byte, error) {
	if len(items) == 1 {
		return blockchain.MintCall(common.HexToAddress(items[0].Payer), items[0].MintReference)
	}
	recipients := make([]common.Address, len(items))
	references := make([]string, len(items))
	for i, item := range items {
		recipients[i] = common.HexToAddress(item.Payer)
		references[i] = item.MintReference
	}
	return blockchain.MintBatchCall(recipients, references)
}

func (p *MintQueueProcessor) alreadyMinted(ctx context.Context, contract common.Address, reference string) (bool, error) {
	data, err := blockchain.MintedCall(reference)
	if err != nil {
		return false, err
	}
	ret, err := p.sub.chain.CallView(ctx, contract, data)
	if err != nil {
		return false, blockchain.ClassifyRPCError(err)
	}
	return blockchain.DecodeBool(ret), nil
}

// completeItems marks items completed and migrates them into mint_history in
// one transaction per item.
func (p *MintQueueProcessor) completeItems(ctx context.Context, items []*entities.MintQueueItem, txHash string) {
	for _, item := range items {
		record := &entities.MintHistoryRecord{
			QueueItemID:   item.ID,
			Payer:         item.Payer,
			MintReference: item.MintReference,
			TargetAddress: item.TargetAddress,
			PaymentTxHash: item.PaymentTxHash,
			MintTxHash:    txHash,
			Mode:          item.Mode,
			CompletedAt:   time.Now(),
		}
		err := p.uow.Do(ctx, func(ctx context.Context) error {
			if err := p.mints.MarkCompleted(ctx, item.ID, txHash); err != nil {
				return err
			}
			return p.history.Create(ctx, record)
		})
		if err != nil {
			logger.Error(ctx, "Failed to complete mint item",
				zap.String("mint_id", item.ID.String()), zap.Error(err))
			continue
		}

		metrics.MintsProcessed.WithLabelValues("completed").Inc()
		logger.Info(ctx, "Mint completed",
			zap.String("mint_id", item.ID.String()),
			zap.String("mint_reference", item.MintReference),
			zap.String("mint_tx_hash", txHash))
		p.publishCompleted(ctx, item, txHash)
	}
}

// recordGroupFailure bumps each item's retry counter; items past the retry
// budget become permanently failed.
func (p *MintQueueProcessor) recordGroupFailure(ctx context.Context, items []*entities.MintQueueItem, cause error) {
	for _, item := range items {
		if err := p.mints.RecordFailure(ctx, item.ID, cause.Error(), p.maxRetries); err != nil {
			logger.Error(ctx, "Failed to record mint failure",
				zap.String("mint_id", item.ID.String()), zap.Error(err))
			continue
		}
		metrics.MintsProcessed.WithLabelValues("failed").Inc()
	}
}

func (p *MintQueueProcessor) publishCompleted(ctx context.Context, item *entities.MintQueueItem, txHash string) {
	payload := map[string]string{
		"id":            item.ID.String(),
		"mintReference": item.MintReference,
		"payer":         item.Payer,
		"mintTxHash":    txHash,
	}
	if err := p.events.Publish(events.SubjectMintCompleted, payload); err != nil {
		logger.Debug(ctx, "Failed to publish event",
			zap.String("subject", events.SubjectMintCompleted), zap.Error(err))
	}
}

func validateMintInput(input *entities.EnqueueMintInput) error {
	if !common.IsHexAddress(input.Payer) {
		return fmt.Errorf("%w: malformed payer address", domainerrors.ErrInvalidInput)
	}
	if !common.IsHexAddress(input.TargetAddress) {
		return fmt.Errorf("%w: malformed target address", domainerrors.ErrInvalidInput)
	}
	if raw, err := hex.DecodeString(strings.TrimPrefix(input.MintReference, "0x")); err != nil || len(raw) != 32 {
		return fmt.Errorf("%w: mint reference must be 32 bytes of hex", domainerrors.ErrInvalidInput)
	}
	switch input.Mode {
	case entities.PaymentModeX402, entities.PaymentModeDirect, entities.PaymentModeRelayed:
	default:
		return fmt.Errorf("%w: unknown payment mode %q", domainerrors.ErrInvalidInput, input.Mode)
	}
	return nil
}
