package givemart

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PayoutStatus string

// Only PayoutStatusPaid is produced right now. Pending and failed are reserved
// for tracking the disbursement separately from recording it.
const (
	PayoutStatusNone    PayoutStatus = ""
	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusPaid    PayoutStatus = "paid"
	PayoutStatusFailed  PayoutStatus = "failed"
)

func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusPaid, PayoutStatusFailed:
		return true
	default:
		return false
	}
}

// NonprofitPayout is a snapshot: Amount and DonationCount are fixed at creation
// and must keep matching the donations attributed to it.
type NonprofitPayout struct {
	ID          int             `json:"id"`
	Reference   uuid.UUID       `json:"reference"`
	NonprofitID int             `json:"nonprofit_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      PayoutStatus    `json:"status"`

	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	DonationCount int       `json:"donation_count"`

	Method string `json:"method"`
	Notes  string `json:"notes"`

	CreatedAt time.Time  `json:"created_at"`
	PaidAt    *time.Time `json:"paid_at"`

	Nonprofit *NonprofitBrief `json:"nonprofit,omitempty"`
}

// PayoutRequest names exactly which donations get settled. It is never
// "everything pending", since donations may arrive between viewing the
// dashboard and committing.
type PayoutRequest struct {
	NonprofitID int   `json:"nonprofit_id"`
	DonationIDs []int `json:"donation_ids"`

	// PeriodStart and PeriodEnd are what the caller saw. The stored period is
	// always derived from the settled donations.
	PeriodStart *time.Time `json:"period_start"`
	PeriodEnd   *time.Time `json:"period_end"`

	Method string `json:"method"`
	Notes  string `json:"notes"`
}

func (r PayoutRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.NonprofitID, validation.Required, validation.Min(1)),
		validation.Field(&r.DonationIDs, validation.Required, validation.By(uniquePositiveIDs)),
		validation.Field(&r.PeriodEnd, validation.When(r.PeriodStart != nil && r.PeriodEnd != nil, validation.By(func(any) error {
			if r.PeriodEnd.Before(*r.PeriodStart) {
				return validation.NewError("validation_period_order", "must not be before period_start")
			}
			return nil
		}))),
		validation.Field(&r.Method, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Notes, validation.Length(0, 2000)),
	)
}

func uniquePositiveIDs(value any) error {
	ids, _ := value.([]int)
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return validation.NewError("validation_id_positive", "must contain only positive ids")
		}
		if _, ok := seen[id]; ok {
			return validation.NewError("validation_id_unique", "must not contain duplicates")
		}
		seen[id] = struct{}{}
	}
	return nil
}

type PayoutFilter struct {
	ID          *int         `json:"id"`
	NonprofitID *int         `json:"nonprofit_id"`
	Status      PayoutStatus `json:"status"`

	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type PayoutPage struct {
	Payouts    []*NonprofitPayout `json:"payouts"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

// PayoutTx is the write scope of a payout. It only exists inside a store
// transaction, which is the single place donations can become paid.
type PayoutTx interface {
	// LockPendingDonations returns, ordered by id and locked until the end of
	// the transaction, the donations among ids that belong to nonprofitID
	// and are still pending.
	LockPendingDonations(ctx context.Context, nonprofitID int, ids []int) ([]*Donation, error)
	// InsertPayout stores the payout, filling in its ID and CreatedAt.
	InsertPayout(ctx context.Context, payout *NonprofitPayout) error
	// MarkDonationsPaid attributes the still-pending donations among ids to
	// payoutID and returns how many rows actually changed.
	MarkDonationsPaid(ctx context.Context, payoutID int, ids []int) (int, error)
}
