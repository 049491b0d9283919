package givemart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCheckPayoutTotals(t *testing.T) {
	tests := []struct {
		name  string
		total PayoutTotals
		kinds []DiscrepancyKind
	}{
		{"consistent", PayoutTotals{PayoutID: 1, Amount: decimal.NewFromInt(17), DonationCount: 3, LinkedAmount: decimal.RequireFromString("17.00"), LinkedCount: 3}, nil},
		{"amount drift", PayoutTotals{PayoutID: 2, Amount: decimal.NewFromInt(17), DonationCount: 3, LinkedAmount: decimal.NewFromInt(15), LinkedCount: 3}, []DiscrepancyKind{DiscrepancyAmount}},
		{"count drift", PayoutTotals{PayoutID: 3, Amount: decimal.NewFromInt(17), DonationCount: 3, LinkedAmount: decimal.NewFromInt(17), LinkedCount: 4}, []DiscrepancyKind{DiscrepancyCount}},
		{"both", PayoutTotals{PayoutID: 4, Amount: decimal.NewFromInt(17), DonationCount: 3, LinkedAmount: decimal.Zero, LinkedCount: 0}, []DiscrepancyKind{DiscrepancyAmount, DiscrepancyCount}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckPayoutTotals([]*PayoutTotals{&tt.total})
			if len(got) != len(tt.kinds) {
				t.Fatalf("got %d discrepancies, want %d", len(got), len(tt.kinds))
			}
			for i, d := range got {
				if d.Kind != tt.kinds[i] || *d.PayoutID != tt.total.PayoutID {
					t.Errorf("unexpected discrepancy %+v", d)
				}
			}
		})
	}
}

func TestCheckAttribution(t *testing.T) {
	payoutOf := func(id int) *int { return &id }
	payoutNonprofits := map[int]int{10: 1}

	tests := []struct {
		name string
		d    Donation
		kind DiscrepancyKind
	}{
		{"pending", Donation{ID: 1, NonprofitID: 1, Status: DonationStatusPending}, ""},
		{"paid", Donation{ID: 2, NonprofitID: 1, Status: DonationStatusPaid, PayoutID: payoutOf(10)}, ""},
		{"paid unattributed", Donation{ID: 3, NonprofitID: 1, Status: DonationStatusPaid}, DiscrepancyAttribution},
		{"pending attributed", Donation{ID: 4, NonprofitID: 1, Status: DonationStatusPending, PayoutID: payoutOf(10)}, DiscrepancyAttribution},
		{"missing payout", Donation{ID: 5, NonprofitID: 1, Status: DonationStatusPaid, PayoutID: payoutOf(11)}, DiscrepancyOrphan},
		{"wrong nonprofit", Donation{ID: 6, NonprofitID: 2, Status: DonationStatusPaid, PayoutID: payoutOf(10)}, DiscrepancyNonprofit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckAttribution([]*Donation{&tt.d}, payoutNonprofits)
			if tt.kind == "" {
				if len(got) != 0 {
					t.Fatalf("expected no discrepancy, got %+v", got[0])
				}
				return
			}
			if len(got) != 1 || got[0].Kind != tt.kind || *got[0].DonationID != tt.d.ID {
				t.Fatalf("expected a %s discrepancy, got %+v", tt.kind, got)
			}
		})
	}
}

func TestBuildReconciliationReport(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	report := BuildReconciliationReport(nil, nil, at)
	if !report.OK() || report.Discrepancies == nil || !report.CheckedAt.Equal(at) {
		t.Fatalf("empty ledger should reconcile: %+v", report)
	}

	payoutID := 2
	report = BuildReconciliationReport([]*PayoutTotals{
		{PayoutID: 2, NonprofitID: 1, Amount: decimal.NewFromInt(5), DonationCount: 1, LinkedAmount: decimal.NewFromInt(4), LinkedCount: 1},
		{PayoutID: 1, NonprofitID: 1, Amount: decimal.NewFromInt(5), DonationCount: 1, LinkedAmount: decimal.NewFromInt(5), LinkedCount: 1},
	}, []*Donation{
		{ID: 9, NonprofitID: 3, Status: DonationStatusPaid, PayoutID: &payoutID},
		{ID: 8, NonprofitID: 1, Status: DonationStatusPaid},
	}, at)

	if report.OK() || report.PayoutsChecked != 2 || len(report.Discrepancies) != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	// Donation-only findings first, then by payout.
	if report.Discrepancies[0].Kind != DiscrepancyAttribution || *report.Discrepancies[0].DonationID != 8 {
		t.Errorf("unexpected first discrepancy %+v", report.Discrepancies[0])
	}
	if report.Discrepancies[1].Kind != DiscrepancyAmount {
		t.Errorf("unexpected second discrepancy %+v", report.Discrepancies[1])
	}
	if report.Discrepancies[2].Kind != DiscrepancyNonprofit {
		t.Errorf("unexpected third discrepancy %+v", report.Discrepancies[2])
	}
}
