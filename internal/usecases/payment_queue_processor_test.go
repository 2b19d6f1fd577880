package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
	"mint-gate.backend/pkg/events"
)

const (
	testPayer  = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	testAsset  = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	testTarget = "0x1111111111111111111111111111111111111111"
	testPayTo  = "0x2222222222222222222222222222222222222222"
)

func validAuthNonce() string {
	return "0x" + strings.Repeat("11", 32)
}

func validAuthSignature() string {
	return "0x" + strings.Repeat("ab", 64) + "1b"
}

func validPaymentInput() *entities.EnqueuePaymentInput {
	target := testTarget
	return &entities.EnqueuePaymentInput{
		PaymentType:   entities.PaymentTypeMint,
		Payer:         testPayer,
		Amount:        "1000000",
		AssetAddress:  testAsset,
		TargetAddress: &target,
		Authorization: entities.TransferAuthorization{
			From:        testPayer,
			To:          testPayTo,
			Value:       "1000000",
			ValidAfter:  "0",
			ValidBefore: "99999999999",
			Nonce:       validAuthNonce(),
			Signature:   validAuthSignature(),
		},
		Metadata: entities.PaymentMetadata{Quantity: 2, Mode: entities.PaymentModeX402},
	}
}

type paymentEnv struct {
	*chainEnv
	payments  *memPayments
	mints     *memMints
	locker    *localLocker
	publisher *capturePublisher
	processor *PaymentQueueProcessor
}

func newPaymentEnv(t *testing.T, chain *stubChain, settings *memSettings) *paymentEnv {
	t.Helper()
	env := newChainEnv(t, chain)
	payments := newMemPayments()
	mints := newMemMints()
	locker := newLocalLocker()
	publisher := &capturePublisher{}

	processor := NewPaymentQueueProcessor(
		payments, env.pendingTxs, settings, passthroughUOW{}, locker,
		NewSettlementBridge(mints), publisher,
		chain, env.signer, env.nonces, env.monitor,
	)
	t.Cleanup(processor.Stop)

	return &paymentEnv{
		chainEnv:  env,
		payments:  payments,
		mints:     mints,
		locker:    locker,
		publisher: publisher,
		processor: processor,
	}
}

func TestPaymentQueueProcessor_AddToQueue(t *testing.T) {
	env := newPaymentEnv(t, &stubChain{}, &memSettings{})
	ctx := context.Background()

	id, err := env.processor.AddToQueue(ctx, validPaymentInput())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	item, err := env.processor.GetPaymentStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entities.QueueStatusPending, item.Status)
	assert.Equal(t, testPayer, item.Payer)
	assert.Equal(t, 2, item.Metadata.Quantity)
}

func TestPaymentQueueProcessor_AddToQueue_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(input *entities.EnqueuePaymentInput)
		wantErr error
	}{
		{"unknown type", func(in *entities.EnqueuePaymentInput) { in.PaymentType = "refund" }, domainerrors.ErrInvalidInput},
		{"bad payer", func(in *entities.EnqueuePaymentInput) { in.Payer = "not-an-address" }, domainerrors.ErrInvalidInput},
		{"bad asset", func(in *entities.EnqueuePaymentInput) { in.AssetAddress = "0x12" }, domainerrors.ErrInvalidInput},
		{"mint without target", func(in *entities.EnqueuePaymentInput) { in.TargetAddress = nil }, domainerrors.ErrInvalidInput},
		{"zero amount", func(in *entities.EnqueuePaymentInput) {
			in.Amount = "0"
			in.Authorization.Value = "0"
		}, domainerrors.ErrInvalidInput},
		{"non-numeric amount", func(in *entities.EnqueuePaymentInput) {
			in.Amount = "lots"
			in.Authorization.Value = "lots"
		}, domainerrors.ErrInvalidInput},
		{"signer mismatch", func(in *entities.EnqueuePaymentInput) {
			in.Authorization.From = testPayTo
		}, domainerrors.ErrInvalidAuthorization},
		{"value mismatch", func(in *entities.EnqueuePaymentInput) {
			in.Authorization.Value = "999"
		}, domainerrors.ErrInvalidAuthorization},
		{"short nonce", func(in *entities.EnqueuePaymentInput) {
			in.Authorization.Nonce = "0x1234"
		}, domainerrors.ErrInvalidAuthorization},
		{"short signature", func(in *entities.EnqueuePaymentInput) {
			in.Authorization.Signature = "0xdeadbeef"
		}, domainerrors.ErrInvalidAuthorization},
		{"bad recipient", func(in *entities.EnqueuePaymentInput) {
			in.Authorization.To = "nowhere"
		}, domainerrors.ErrInvalidAuthorization},
	}

	env := newPaymentEnv(t, &stubChain{}, &memSettings{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validPaymentInput()
			tt.mutate(input)
			_, err := env.processor.AddToQueue(context.Background(), input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPaymentQueueProcessor_AddToQueue_DuplicateNonce(t *testing.T) {
	env := newPaymentEnv(t, &stubChain{}, &memSettings{})
	ctx := context.Background()

	_, err := env.processor.AddToQueue(ctx, validPaymentInput())
	require.NoError(t, err)

	_, err = env.processor.AddToQueue(ctx, validPaymentInput())
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestPaymentQueueProcessor_SettlesAndBridgesMints(t *testing.T) {
	chain := &stubChain{}
	env := newPaymentEnv(t, chain, &memSettings{})
	ctx := context.Background()

	id, err := env.processor.AddToQueue(ctx, validPaymentInput())
	require.NoError(t, err)

	env.processor.processBatch(ctx)

	item, err := env.payments.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entities.QueueStatusCompleted, item.Status)
	require.True(t, item.SettlementTxHash.Valid)
	assert.Contains(t, item.Result.String, item.SettlementTxHash.String)

	// The settlement produced exactly the paid-for mint items.
	mints, err := env.mints.ListByPaymentTxHash(ctx, item.SettlementTxHash.String)
	require.NoError(t, err)
	require.Len(t, mints, 2)
	for _, mint := range mints {
		assert.Equal(t, entities.PaymentModeX402, mint.Mode)
		assert.Equal(t, entities.QueueStatusPending, mint.Status)
	}

	// One broadcast to the asset contract, nonce slot released after confirm.
	require.Len(t, chain.sentTxs(), 1)
	exists, err := env.pendingTxs.Exists(ctx, env.signer.Address().Hex(), chain.sentTxs()[0].Nonce())
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Contains(t, env.publisher.subjects(), events.SubjectPaymentCompleted)
}

func TestPaymentQueueProcessor_MalformedAuthorizationIsTerminal(t *testing.T) {
	env := newPaymentEnv(t, &stubChain{}, &memSettings{})
	ctx := context.Background()

	item := &entities.PaymentQueueItem{
		PaymentType:   entities.PaymentTypeMint,
		Payer:         testPayer,
		Amount:        "1000000",
		AssetAddress:  testAsset,
		TargetAddress: null.StringFrom(testTarget),
		Authorization: entities.TransferAuthorization{
			From: testPayer, To: testPayTo,
			Value: "not-a-number", ValidBefore: "99999999999",
			Nonce: validAuthNonce(), Signature: validAuthSignature(),
		},
		Status: entities.QueueStatusPending,
	}
	require.NoError(t, env.payments.Create(ctx, item))

	env.processor.processBatch(ctx)

	got, err := env.payments.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.QueueStatusFailed, got.Status)
	assert.True(t, got.ErrorMessage.Valid)
	assert.Contains(t, env.publisher.subjects(), events.SubjectPaymentFailed)
}

func TestPaymentQueueProcessor_BroadcastRevertIsTerminal(t *testing.T) {
	chain := &stubChain{
		sendTransactionFn: func(context.Context, *types.Transaction) error {
			return errors.New("execution reverted: authorization expired")
		},
	}
	env := newPaymentEnv(t, chain, &memSettings{})
	ctx := context.Background()

	id, err := env.processor.AddToQueue(ctx, validPaymentInput())
	require.NoError(t, err)

	env.processor.processBatch(ctx)

	got, err := env.payments.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entities.QueueStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage.String, "execution reverted")
	assert.Contains(t, env.publisher.subjects(), events.SubjectPaymentFailed)

	// No mint items were derived from the failed settlement.
	stats, err := env.mints.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
}

func TestPaymentQueueProcessor_DeployLockBusyRequeues(t *testing.T) {
	env := newPaymentEnv(t, &stubChain{}, &memSettings{})
	ctx := context.Background()

	input := validPaymentInput()
	input.PaymentType = entities.PaymentTypeDeploy
	input.TargetAddress = nil
	id, err := env.processor.AddToQueue(ctx, input)
	require.NoError(t, err)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = env.locker.WithLock(ctx, "token_deploy", func(ctx context.Context) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	env.processor.processBatch(ctx)
	close(release)

	got, err := env.payments.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entities.QueueStatusPending, got.Status, "busy lock requeues instead of failing")
}

func TestPaymentQueueProcessor_RecoversInterruptedItems(t *testing.T) {
	chain := &stubChain{}
	settings := &memSettings{values: map[string]string{
		entities.SettingPaymentBatchIntervalMs: "20",
	}}
	env := newPaymentEnv(t, chain, settings)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	id, err := env.processor.AddToQueue(ctx, validPaymentInput())
	require.NoError(t, err)
	// Simulate a crash mid-batch: the item is stuck in processing.
	require.NoError(t, env.payments.MarkProcessing(ctx, []uuid.UUID{id}))

	go env.processor.Start(ctx)
	defer env.processor.Stop()

	require.Eventually(t, func() bool {
		item, err := env.payments.GetByID(ctx, id)
		return err == nil && item.Status == entities.QueueStatusCompleted
	}, 5*time.Second, 20*time.Millisecond, "interrupted item is reset and settled")
}

func TestQueuePipeline_SettlementFlowsIntoMintHistory(t *testing.T) {
	chain := &stubChain{}
	env := newPaymentEnv(t, chain, &memSettings{})
	ctx := context.Background()

	history := &memHistory{}
	minter := NewMintQueueProcessor(
		env.mints, history, env.pendingTxs, &memSettings{}, passthroughUOW{}, env.publisher,
		chain, env.signer, env.nonces, env.monitor,
	)
	t.Cleanup(minter.Stop)

	id, err := env.processor.AddToQueue(ctx, validPaymentInput())
	require.NoError(t, err)

	env.processor.processBatch(ctx)

	payment, err := env.payments.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, entities.QueueStatusCompleted, payment.Status)
	require.True(t, payment.SettlementTxHash.Valid)
	payHash := payment.SettlementTxHash.String

	minter.processBatch(ctx)

	// Settlement transfer plus one mintBatch covering both paid-for items.
	sent := chain.sentTxs()
	require.Len(t, sent, 2)
	mintHash := sent[1].Hash().Hex()

	records, err := history.ListByPaymentTxHash(ctx, payHash)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, mintHash, record.MintTxHash)
		assert.Equal(t, entities.PaymentModeX402, record.Mode)
		assert.Equal(t, testPayer, record.Payer)
	}

	stats, err := env.mints.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Completed)
	assert.Contains(t, env.publisher.subjects(), events.SubjectMintCompleted)
}

func TestPaymentQueueProcessor_StopIsIdempotent(t *testing.T) {
	env := newPaymentEnv(t, &stubChain{}, &memSettings{})
	env.processor.Stop()
	env.processor.Stop()
}
