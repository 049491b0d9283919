package givemart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventPayoutCreated = "payout.created"

// PayoutEvent is published once a payout has been committed, for the
// accounting side to pick up.
type PayoutEvent struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`

	PayoutID      int             `json:"payout_id"`
	Reference     uuid.UUID       `json:"reference"`
	NonprofitID   int             `json:"nonprofit_id"`
	Amount        decimal.Decimal `json:"amount"`
	DonationCount int             `json:"donation_count"`
	DonationIDs   []int           `json:"donation_ids"`
	PeriodStart   time.Time       `json:"period_start"`
	PeriodEnd     time.Time       `json:"period_end"`
	Method        string          `json:"method"`
}

func NewPayoutEvent(p *NonprofitPayout, donationIDs []int) *PayoutEvent {
	occurred := p.CreatedAt
	if p.PaidAt != nil {
		occurred = *p.PaidAt
	}
	return &PayoutEvent{
		Type:          EventPayoutCreated,
		OccurredAt:    occurred,
		PayoutID:      p.ID,
		Reference:     p.Reference,
		NonprofitID:   p.NonprofitID,
		Amount:        p.Amount,
		DonationCount: p.DonationCount,
		DonationIDs:   donationIDs,
		PeriodStart:   p.PeriodStart,
		PeriodEnd:     p.PeriodEnd,
		Method:        p.Method,
	}
}

type EventPublisher interface {
	PublishPayout(ctx context.Context, ev *PayoutEvent) error
	Close() error
}
