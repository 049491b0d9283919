// Package givemart holds the domain types of the marketplace donation ledger:
// donations collected at checkout, the payouts that settle them and the pure
// folds used to aggregate and reconcile them.
package givemart

import (
	"time"
)

const Version = "v0.4.1"

type AuditLog struct {
	ID        int       `json:"id"`
	LogTime   time.Time `json:"log_time"`
	SystemLog bool      `json:"system_log"`
	Message   string    `json:"message"`
	Author    *string   `json:"author"`
}
