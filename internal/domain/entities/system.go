package entities

import "time"

// SystemSetting is a key/value runtime configuration row. Settings are read
// once when a processor is constructed; there is no hot reload.
type SystemSetting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Setting keys understood by the queue processors.
const (
	SettingPaymentBatchIntervalMs = "payment_batch_interval_ms"
	SettingPaymentBatchSize       = "payment_batch_size"
	SettingMintBatchIntervalMs    = "mint_batch_interval_ms"
	SettingMintBatchSize          = "mint_batch_size"
)

// PendingTransaction is the durable nonce bookkeeping row: one per in-flight
// transaction, keyed by (account, nonce). Rows survive crashes so a restarted
// NonceManager never re-issues a nonce that is still in flight.
type PendingTransaction struct {
	Account   string    `json:"account"`
	Nonce     uint64    `json:"nonce"`
	TxHash    string    `json:"txHash"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
