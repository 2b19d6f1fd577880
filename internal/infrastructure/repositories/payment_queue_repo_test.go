package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"mint-gate.backend/internal/domain/entities"
	domainerrors "mint-gate.backend/internal/domain/errors"
)

func newPaymentItem(nonce string) *entities.PaymentQueueItem {
	return &entities.PaymentQueueItem{
		PaymentType:  entities.PaymentTypeMint,
		Payer:        "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
		Amount:       "1000000",
		AssetAddress: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		TargetAddress: null.StringFrom(
			"0x1111111111111111111111111111111111111111"),
		Authorization: entities.TransferAuthorization{
			From:        "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
			To:          "0x2222222222222222222222222222222222222222",
			Value:       "1000000",
			ValidAfter:  "0",
			ValidBefore: "99999999999",
			Nonce:       nonce,
			Signature:   "0xsignature",
		},
		Status:   entities.QueueStatusPending,
		Metadata: entities.PaymentMetadata{Quantity: 2, Mode: entities.PaymentModeX402},
	}
}

func TestPaymentQueueRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	createPaymentQueueTable(t, db)
	repo := NewPaymentQueueRepository(db)
	ctx := context.Background()

	item := newPaymentItem("0xaaaa000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, repo.Create(ctx, item))
	require.NotEqual(t, uuid.Nil, item.ID)

	got, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Payer, got.Payer)
	assert.Equal(t, item.Authorization.Nonce, got.Authorization.Nonce)
	assert.Equal(t, item.Authorization.Signature, got.Authorization.Signature)
	assert.Equal(t, 2, got.Metadata.Quantity)
	assert.Equal(t, entities.PaymentModeX402, got.Metadata.Mode)
	assert.Equal(t, entities.QueueStatusPending, got.Status)
}

func TestPaymentQueueRepository_GetMissing(t *testing.T) {
	db := newTestDB(t)
	createPaymentQueueTable(t, db)
	repo := NewPaymentQueueRepository(db)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestPaymentQueueRepository_DuplicateAuthNonce(t *testing.T) {
	db := newTestDB(t)
	createPaymentQueueTable(t, db)
	repo := NewPaymentQueueRepository(db)
	ctx := context.Background()

	nonce := "0xaaaa000000000000000000000000000000000000000000000000000000000002"
	require.NoError(t, repo.Create(ctx, newPaymentItem(nonce)))

	err := repo.Create(ctx, newPaymentItem(nonce))
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestPaymentQueueRepository_ExistsAuthorizationNonce(t *testing.T) {
	db := newTestDB(t)
	createPaymentQueueTable(t, db)
	repo := NewPaymentQueueRepository(db)
	ctx := context.Background()

	nonce := "0xAAAA000000000000000000000000000000000000000000000000000000000003"
	require.NoError(t, repo.Create(ctx, newPaymentItem(nonce)))

	// Lookups are case-insensitive on both payer and nonce.
	exists, err := repo.ExistsAuthorizationNonce(ctx,
		"0xab5801a7d398351b8be11c439e05c5b3259aec9b",
		"0xaaaa000000000000000000000000000000000000000000000000000000000003")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsAuthorizationNonce(ctx,
		"0xab5801a7d398351b8be11c439e05c5b3259aec9b",
		"0xaaaa0000000000000000000000000000000000000000000000000000000000ff")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPaymentQueueRepository_ListPendingOrderAndLimit(t *testing.T) {
	db := newTestDB(t)
	createPaymentQueueTable(t, db)
	repo := NewPaymentQueueRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		item := newPaymentItem("0xbbbb00000000000000000000000000000000000000000000000000000000000" + string(rune('0'+i)))
		item.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, item))
		ids = append(ids, item.ID)
	}

	items, err := repo.ListPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, ids[0], items[0].ID)
	assert.Equal(t, ids[1], items[1].ID)
}

func TestPaymentQueueRepository_StatusTransitions(t *testing.T) {
	db := newTestDB(t)
	createPaymentQueueTable(t, db)
	repo := NewPaymentQueueRepository(db)
	ctx := context.Background()

	item := newPaymentItem("0xcccc000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, repo.Create(ctx, item))

	require.NoError(t, repo.MarkProcessing(ctx, []uuid.UUID{item.ID}))
	got, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.QueueStatusProcessing, got.Status)

	require.NoError(t, repo.MarkCompleted(ctx, item.ID, "0xhash", `{"settlementTxHash":"0xhash"}`))
	got, err = repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.QueueStatusCompleted, got.Status)
	assert.Equal(t, "0xhash", got.SettlementTxHash.String)
	assert.True(t, got.Result.Valid)
}

func TestPaymentQueueRepository_MarkFailedAndRequeue(t *testing.T) {
	db := newTestDB(t)
	createPaymentQueueTable(t, db)
	repo := NewPaymentQueueRepository(db)
	ctx := context.Background()

	item := newPaymentItem("0xcccc000000000000000000000000000000000000000000000000000000000002")
	require.NoError(t, repo.Create(ctx, item))
	require.NoError(t, repo.MarkProcessing(ctx, []uuid.UUID{item.ID}))

	require.NoError(t, repo.Requeue(ctx, item.ID))
	got, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.QueueStatusPending, got.Status)

	require.NoError(t, repo.MarkProcessing(ctx, []uuid.UUID{item.ID}))
	require.NoError(t, repo.MarkFailed(ctx, item.ID, "execution reverted"))
	got, err = repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.QueueStatusFailed, got.Status)
	assert.Equal(t, "execution reverted", got.ErrorMessage.String)
}

func TestPaymentQueueRepository_ResetProcessing(t *testing.T) {
	db := newTestDB(t)
	createPaymentQueueTable(t, db)
	repo := NewPaymentQueueRepository(db)
	ctx := context.Background()

	a := newPaymentItem("0xdddd000000000000000000000000000000000000000000000000000000000001")
	b := newPaymentItem("0xdddd000000000000000000000000000000000000000000000000000000000002")
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))
	require.NoError(t, repo.MarkProcessing(ctx, []uuid.UUID{a.ID, b.ID}))

	reset, err := repo.ResetProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reset)

	items, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestPaymentQueueRepository_CountByStatus(t *testing.T) {
	db := newTestDB(t)
	createPaymentQueueTable(t, db)
	repo := NewPaymentQueueRepository(db)
	ctx := context.Background()

	a := newPaymentItem("0xeeee000000000000000000000000000000000000000000000000000000000001")
	b := newPaymentItem("0xeeee000000000000000000000000000000000000000000000000000000000002")
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))
	require.NoError(t, repo.MarkProcessing(ctx, []uuid.UUID{a.ID}))
	require.NoError(t, repo.MarkCompleted(ctx, a.ID, "0xhash", ""))

	stats, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(0), stats.Failed)
}
