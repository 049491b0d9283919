package db

import (
	"context"
	"errors"

	"github.com/givemart/givemart"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type payoutTotals struct {
	PayoutID      int             `db:"payout_id"`
	NonprofitID   int             `db:"nonprofit_id"`
	Amount        decimal.Decimal `db:"amount"`
	DonationCount int             `db:"donation_count"`
	LinkedAmount  decimal.Decimal `db:"linked_amount"`
	LinkedCount   int             `db:"linked_count"`
}

// PayoutTotals compares every payout snapshot with its attributed donations.
func (s *DB) PayoutTotals(ctx context.Context) ([]*givemart.PayoutTotals, error) {
	rows, _ := s.conn.Query(ctx, "SELECT payout_id, nonprofit_id, amount, donation_count, linked_amount, linked_count FROM payout_link_totals ORDER BY payout_id")
	totals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[payoutTotals])
	if errors.Is(err, pgx.ErrNoRows) {
		return []*givemart.PayoutTotals{}, nil
	} else if err != nil {
		return nil, err
	}
	return mapper(totals, func(t *payoutTotals) *givemart.PayoutTotals {
		return &givemart.PayoutTotals{
			PayoutID:      t.PayoutID,
			NonprofitID:   t.NonprofitID,
			Amount:        t.Amount,
			DonationCount: t.DonationCount,
			LinkedAmount:  t.LinkedAmount,
			LinkedCount:   t.LinkedCount,
		}
	}), nil
}

// SuspectDonations returns the donations whose status, attribution or
// nonprofit look inconsistent. The full check is done by the caller.
func (s *DB) SuspectDonations(ctx context.Context) ([]*givemart.Donation, error) {
	rows, _ := s.conn.Query(ctx, "SELECT "+donationColumns+" FROM suspect_donations ORDER BY id")
	donations, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[donation])
	if errors.Is(err, pgx.ErrNoRows) {
		return []*givemart.Donation{}, nil
	} else if err != nil {
		return nil, err
	}
	return mapper(donations, internalToDonation), nil
}
