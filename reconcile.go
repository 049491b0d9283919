package givemart

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// PayoutTotals pairs a payout snapshot with what is currently linked to it.
type PayoutTotals struct {
	PayoutID      int             `json:"payout_id"`
	NonprofitID   int             `json:"nonprofit_id"`
	Amount        decimal.Decimal `json:"amount"`
	DonationCount int             `json:"donation_count"`

	LinkedAmount decimal.Decimal `json:"linked_amount"`
	LinkedCount  int             `json:"linked_count"`
}

type DiscrepancyKind string

const (
	DiscrepancyAmount      DiscrepancyKind = "amount_mismatch"
	DiscrepancyCount       DiscrepancyKind = "count_mismatch"
	DiscrepancyAttribution DiscrepancyKind = "attribution"
	DiscrepancyNonprofit   DiscrepancyKind = "nonprofit_mismatch"
	DiscrepancyOrphan      DiscrepancyKind = "orphan_payout_ref"
)

type Discrepancy struct {
	Kind       DiscrepancyKind `json:"kind"`
	PayoutID   *int            `json:"payout_id,omitempty"`
	DonationID *int            `json:"donation_id,omitempty"`
	Detail     string          `json:"detail"`
}

type ReconciliationReport struct {
	CheckedAt      time.Time      `json:"checked_at"`
	PayoutsChecked int            `json:"payouts_checked"`
	Discrepancies  []*Discrepancy `json:"discrepancies"`
}

func (r *ReconciliationReport) OK() bool {
	return r != nil && len(r.Discrepancies) == 0
}

// CheckPayoutTotals reports every payout whose snapshot amount or donation
// count drifted from the donations attributed to it.
func CheckPayoutTotals(totals []*PayoutTotals) []*Discrepancy {
	var out []*Discrepancy
	for _, t := range totals {
		id := t.PayoutID
		if !t.Amount.Equal(t.LinkedAmount) {
			out = append(out, &Discrepancy{
				Kind:     DiscrepancyAmount,
				PayoutID: &id,
				Detail:   fmt.Sprintf("payout #%d records %s but its donations sum to %s", id, t.Amount.StringFixed(AmountPlaces), t.LinkedAmount.StringFixed(AmountPlaces)),
			})
		}
		if t.DonationCount != t.LinkedCount {
			out = append(out, &Discrepancy{
				Kind:     DiscrepancyCount,
				PayoutID: &id,
				Detail:   fmt.Sprintf("payout #%d records %d donations but %d are attributed to it", id, t.DonationCount, t.LinkedCount),
			})
		}
	}
	return out
}

// CheckAttribution reports donations breaking "paid if and only if attributed"
// or attributed to a payout of another nonprofit. payoutNonprofits maps every
// known payout to its nonprofit.
func CheckAttribution(donations []*Donation, payoutNonprofits map[int]int) []*Discrepancy {
	var out []*Discrepancy
	for _, d := range donations {
		id := d.ID
		switch {
		case d.Status == DonationStatusPaid && d.PayoutID == nil:
			out = append(out, &Discrepancy{
				Kind:       DiscrepancyAttribution,
				DonationID: &id,
				Detail:     fmt.Sprintf("donation #%d is paid but not attributed to any payout", id),
			})
			continue
		case d.Status != DonationStatusPaid && d.PayoutID != nil:
			out = append(out, &Discrepancy{
				Kind:       DiscrepancyAttribution,
				DonationID: &id,
				PayoutID:   d.PayoutID,
				Detail:     fmt.Sprintf("donation #%d is %s but attributed to payout #%d", id, d.Status, *d.PayoutID),
			})
			continue
		case d.PayoutID == nil:
			continue
		}

		nonprofitID, ok := payoutNonprofits[*d.PayoutID]
		if !ok {
			out = append(out, &Discrepancy{
				Kind:       DiscrepancyOrphan,
				DonationID: &id,
				PayoutID:   d.PayoutID,
				Detail:     fmt.Sprintf("donation #%d references missing payout #%d", id, *d.PayoutID),
			})
			continue
		}
		if nonprofitID != d.NonprofitID {
			out = append(out, &Discrepancy{
				Kind:       DiscrepancyNonprofit,
				DonationID: &id,
				PayoutID:   d.PayoutID,
				Detail:     fmt.Sprintf("donation #%d of nonprofit #%d is attributed to payout #%d of nonprofit #%d", id, d.NonprofitID, *d.PayoutID, nonprofitID),
			})
		}
	}
	return out
}

// BuildReconciliationReport runs both checks and orders the findings by payout, then donation.
func BuildReconciliationReport(totals []*PayoutTotals, suspects []*Donation, at time.Time) *ReconciliationReport {
	payoutNonprofits := make(map[int]int, len(totals))
	for _, t := range totals {
		payoutNonprofits[t.PayoutID] = t.NonprofitID
	}
	discrepancies := append(CheckPayoutTotals(totals), CheckAttribution(suspects, payoutNonprofits)...)
	slices.SortStableFunc(discrepancies, func(a, b *Discrepancy) int {
		if c := cmp.Compare(derefOr(a.PayoutID, 0), derefOr(b.PayoutID, 0)); c != 0 {
			return c
		}
		return cmp.Compare(derefOr(a.DonationID, 0), derefOr(b.DonationID, 0))
	})
	if discrepancies == nil {
		discrepancies = []*Discrepancy{}
	}
	return &ReconciliationReport{
		CheckedAt:      at,
		PayoutsChecked: len(totals),
		Discrepancies:  discrepancies,
	}
}

func derefOr[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
