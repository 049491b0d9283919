package flags

import "github.com/givemart/givemart/internal/config"

// DB
var (
	MigrateOnStart = config.GenFlag("behavior.db.run_migrations", true, "Apply pending PostgreSQL migrations when the server starts")
	LogDBQueries   = config.GenFlag("behavior.db.log_sql", false, "Log every SQL statement at debug level")
	CountDBQueries = config.GenFlag("behavior.db.count_queries", false, "Log how many SQL statements each API request ran")
)

// payouts
var (
	PayoutTxTimeoutSeconds = config.GenFlag("behavior.payouts.tx_timeout_seconds", 15, "Maximum duration of a payout creation transaction, in seconds")
	MaxPayoutDonations     = config.GenFlag("behavior.payouts.max_donations", 5000, "Maximum number of donations settled by a single payout")
	SendPayoutReceipts     = config.GenFlag("feature.payouts.email_receipts", false, "Email a receipt to the nonprofit contact after a payout is recorded")
)

// history
var (
	DefaultPageSize = config.GenFlag("behavior.history.default_page_size", 20, "Default number of payouts per history page")
	MaxPageSize     = config.GenFlag("behavior.history.max_page_size", 100, "Maximum number of payouts per history page")
)

// reconciliation
var (
	ReconcileIntervalMinutes = config.GenFlag("behavior.reconcile.interval_minutes", 0, "Run the ledger reconciliation audit every N minutes (0 disables it)")
)
