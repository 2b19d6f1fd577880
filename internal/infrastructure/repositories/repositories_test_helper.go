package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createPaymentQueueTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE payment_queue (
		id TEXT PRIMARY KEY,
		payment_type TEXT NOT NULL,
		payer TEXT NOT NULL,
		amount TEXT NOT NULL,
		asset_address TEXT NOT NULL,
		target_address TEXT,
		authorization TEXT NOT NULL,
		auth_nonce TEXT NOT NULL,
		auth_payer TEXT NOT NULL,
		status TEXT NOT NULL,
		settlement_tx_hash TEXT,
		error_message TEXT,
		metadata TEXT DEFAULT '{}',
		result TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE(auth_payer, auth_nonce)
	);`)
}

func createMintQueueTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE mint_queue (
		id TEXT PRIMARY KEY,
		payer TEXT NOT NULL,
		mint_reference TEXT NOT NULL UNIQUE,
		target_address TEXT NOT NULL,
		payment_tx_hash TEXT,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		retry_count INTEGER DEFAULT 0,
		mint_tx_hash TEXT,
		error_message TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE mint_history (
		id TEXT PRIMARY KEY,
		queue_item_id TEXT NOT NULL,
		payer TEXT NOT NULL,
		mint_reference TEXT NOT NULL UNIQUE,
		target_address TEXT NOT NULL,
		payment_tx_hash TEXT,
		mint_tx_hash TEXT NOT NULL,
		mode TEXT NOT NULL,
		completed_at DATETIME NOT NULL
	);`)
}

func createPendingTransactionsTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE pending_transactions (
		account TEXT NOT NULL,
		nonce INTEGER NOT NULL,
		tx_hash TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME,
		PRIMARY KEY(account, nonce)
	);`)
}

func createSystemSettingsTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE system_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		description TEXT,
		updated_at DATETIME
	);`)
}

func createAllQueueTables(t *testing.T, db *gorm.DB) {
	createPaymentQueueTable(t, db)
	createMintQueueTables(t, db)
	createPendingTransactionsTable(t, db)
	createSystemSettingsTable(t, db)
}
