package givemart

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func pendingDonation(id, nonprofit int, amount string, tp DonorType, at time.Duration) *Donation {
	return &Donation{
		ID:          id,
		NonprofitID: nonprofit,
		OrderID:     id * 10,
		Amount:      decimal.RequireFromString(amount),
		DonorType:   tp,
		Status:      DonationStatusPending,
		CreatedAt:   t0.Add(at),
	}
}

func TestSummarizePendingBreakdown(t *testing.T) {
	summaries := SummarizePending([]*Donation{
		pendingDonation(1, 7, "10", DonorTypeSellerContribution, 0),
		pendingDonation(2, 7, "5", DonorTypeBuyerDirect, time.Hour),
		pendingDonation(3, 7, "2", DonorTypePlatformRevenue, 2*time.Hour),
	})
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	sum := summaries[0]

	checks := []struct {
		name   string
		amount decimal.Decimal
		count  int
		want   string
		wantN  int
	}{
		{"total", sum.TotalAmount, sum.DonationCount, "17", 3},
		{"seller", sum.SellerContributionAmount, sum.SellerContributionCount, "10", 1},
		{"buyer", sum.BuyerDirectAmount, sum.BuyerDirectCount, "5", 1},
		{"platform", sum.PlatformRevenueAmount, sum.PlatformRevenueCount, "2", 1},
	}
	for _, c := range checks {
		if !c.amount.Equal(decimal.RequireFromString(c.want)) || c.count != c.wantN {
			t.Errorf("%s: got %s/%d, want %s/%d", c.name, c.amount, c.count, c.want, c.wantN)
		}
	}
	if !sum.OldestPending.Equal(t0) || !sum.NewestPending.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("unexpected period %v - %v", sum.OldestPending, sum.NewestPending)
	}

	req := sum.PayoutRequest("manual", "")
	if len(req.DonationIDs) != 3 || req.NonprofitID != 7 {
		t.Errorf("unexpected payout request %+v", req)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("payout request built from a summary should be valid: %v", err)
	}
}

func TestSummarizePendingSkipsPaid(t *testing.T) {
	paid := pendingDonation(2, 7, "5", DonorTypeBuyerDirect, 0)
	paid.Status = DonationStatusPaid
	payoutID := 1
	paid.PayoutID = &payoutID

	summaries := SummarizePending([]*Donation{
		pendingDonation(1, 7, "1.25", DonorTypeBuyerDirect, time.Hour),
		paid,
	})
	if len(summaries) != 1 || summaries[0].DonationCount != 1 {
		t.Fatalf("paid donations must not be summarized: %+v", summaries)
	}
	if got := SummarizePending(nil); len(got) != 0 {
		t.Fatalf("expected no summaries, got %d", len(got))
	}
}

func TestSummarizePendingOrdering(t *testing.T) {
	summaries := SummarizePending([]*Donation{
		pendingDonation(1, 2, "1", DonorTypeBuyerDirect, 3*time.Hour),
		pendingDonation(2, 1, "1", DonorTypeBuyerDirect, 2*time.Hour),
		pendingDonation(3, 3, "1", DonorTypeBuyerDirect, 2*time.Hour),
		pendingDonation(4, 2, "1", DonorTypeBuyerDirect, time.Hour),
	})
	var got []int
	for _, s := range summaries {
		got = append(got, s.NonprofitID)
	}
	want := []int{2, 1, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got order %v, want %v", got, want)
		}
	}
	if summaries[0].Donations[0].ID != 4 {
		t.Fatalf("donations should be ordered by creation time")
	}
}

// Breakdowns always add up and the result doesn't depend on input order.
func TestSummarizePendingProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		var donations []*Donation
		for i := range rng.IntN(40) + 1 {
			cents := rng.IntN(100000)
			donations = append(donations, pendingDonation(i+1, rng.IntN(4)+1,
				decimal.New(int64(cents), -2).String(), DonorTypes[rng.IntN(len(DonorTypes))], time.Duration(rng.IntN(1000))*time.Minute))
		}

		first := SummarizePending(donations)
		for _, s := range first {
			breakdown := s.SellerContributionAmount.Add(s.BuyerDirectAmount).Add(s.PlatformRevenueAmount)
			if !breakdown.Equal(s.TotalAmount) {
				t.Fatalf("breakdown %s does not add up to %s", breakdown, s.TotalAmount)
			}
			if s.SellerContributionCount+s.BuyerDirectCount+s.PlatformRevenueCount != s.DonationCount {
				t.Fatalf("breakdown counts do not add up to %d", s.DonationCount)
			}
			if !SumAmounts(s.Donations).Equal(s.TotalAmount) {
				t.Fatalf("donations do not add up to the total")
			}
		}

		shuffled := append([]*Donation(nil), donations...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		second := SummarizePending(shuffled)
		if len(first) != len(second) {
			t.Fatalf("summary count changed with input order")
		}
		for i := range first {
			if first[i].NonprofitID != second[i].NonprofitID || !first[i].TotalAmount.Equal(second[i].TotalAmount) {
				t.Fatalf("summaries changed with input order")
			}
		}
	}
}
