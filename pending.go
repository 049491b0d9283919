package givemart

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// PendingNonprofitSummary is what a nonprofit is currently owed.
// The three donor type breakdowns always add up to the totals.
type PendingNonprofitSummary struct {
	NonprofitID int             `json:"nonprofit_id"`
	Nonprofit   *NonprofitBrief `json:"nonprofit,omitempty"`

	TotalAmount   decimal.Decimal `json:"total_amount"`
	DonationCount int             `json:"donation_count"`

	SellerContributionAmount decimal.Decimal `json:"seller_contribution_amount"`
	SellerContributionCount  int             `json:"seller_contribution_count"`
	BuyerDirectAmount        decimal.Decimal `json:"buyer_direct_amount"`
	BuyerDirectCount         int             `json:"buyer_direct_count"`
	PlatformRevenueAmount    decimal.Decimal `json:"platform_revenue_amount"`
	PlatformRevenueCount     int             `json:"platform_revenue_count"`

	OldestPending time.Time `json:"oldest_pending"`
	NewestPending time.Time `json:"newest_pending"`

	Donations []*Donation `json:"donations"`
}

// DonationIDs lists the constituent donations, ready for a PayoutRequest.
func (s *PendingNonprofitSummary) DonationIDs() []int {
	ids := make([]int, len(s.Donations))
	for i, d := range s.Donations {
		ids[i] = d.ID
	}
	return ids
}

// PayoutRequest builds the request settling exactly this summary.
func (s *PendingNonprofitSummary) PayoutRequest(method, notes string) PayoutRequest {
	start, end := s.OldestPending, s.NewestPending
	return PayoutRequest{
		NonprofitID: s.NonprofitID,
		DonationIDs: s.DonationIDs(),
		PeriodStart: &start,
		PeriodEnd:   &end,
		Method:      method,
		Notes:       notes,
	}
}

func (s *PendingNonprofitSummary) add(d *Donation) {
	s.TotalAmount = s.TotalAmount.Add(d.Amount)
	s.DonationCount++
	switch d.DonorType {
	case DonorTypeSellerContribution:
		s.SellerContributionAmount = s.SellerContributionAmount.Add(d.Amount)
		s.SellerContributionCount++
	case DonorTypeBuyerDirect:
		s.BuyerDirectAmount = s.BuyerDirectAmount.Add(d.Amount)
		s.BuyerDirectCount++
	case DonorTypePlatformRevenue:
		s.PlatformRevenueAmount = s.PlatformRevenueAmount.Add(d.Amount)
		s.PlatformRevenueCount++
	}
	if s.OldestPending.IsZero() || d.CreatedAt.Before(s.OldestPending) {
		s.OldestPending = d.CreatedAt
	}
	if d.CreatedAt.After(s.NewestPending) {
		s.NewestPending = d.CreatedAt
	}
	s.Donations = append(s.Donations, d)
}

// SummarizePending groups pending donations by nonprofit. Donations in any
// other state are ignored. Summaries are ordered by their oldest pending
// donation, donations inside a summary by creation time.
//
// Donor types are assumed to be valid (the store enforces it); an unknown
// type would count towards the totals but no breakdown.
func SummarizePending(donations []*Donation) []*PendingNonprofitSummary {
	groups := make(map[int]*PendingNonprofitSummary)
	for _, d := range donations {
		if !d.IsPending() {
			continue
		}
		sum, ok := groups[d.NonprofitID]
		if !ok {
			sum = &PendingNonprofitSummary{
				NonprofitID:              d.NonprofitID,
				TotalAmount:              decimal.Zero,
				SellerContributionAmount: decimal.Zero,
				BuyerDirectAmount:        decimal.Zero,
				PlatformRevenueAmount:    decimal.Zero,
			}
			groups[d.NonprofitID] = sum
		}
		sum.add(d)
	}

	summaries := make([]*PendingNonprofitSummary, 0, len(groups))
	for _, sum := range groups {
		slices.SortStableFunc(sum.Donations, func(a, b *Donation) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		summaries = append(summaries, sum)
	}
	slices.SortFunc(summaries, func(a, b *PendingNonprofitSummary) int {
		if c := a.OldestPending.Compare(b.OldestPending); c != 0 {
			return c
		}
		return cmp.Compare(a.NonprofitID, b.NonprofitID)
	})
	return summaries
}
