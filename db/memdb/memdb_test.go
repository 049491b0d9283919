package memdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/givemart/givemart"
	"github.com/google/uuid"
	"github.com/matryer/is"
	"github.com/shopspring/decimal"
)

var ctx = context.Background()

func seed(t *testing.T, amounts ...string) (*DB, int, []*givemart.Donation) {
	t.Helper()
	is := is.New(t)
	s := New()
	np := &givemart.NonprofitBrief{Name: "Ocean Cleanup"}
	is.NoErr(s.AddNonprofit(ctx, np))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	inputs := make([]*givemart.DonationInput, 0, len(amounts))
	for i, amount := range amounts {
		at := base.Add(time.Duration(i) * time.Hour)
		inputs = append(inputs, &givemart.DonationInput{
			NonprofitID: np.ID,
			OrderID:     100 + i,
			Amount:      decimal.RequireFromString(amount),
			DonorType:   givemart.DonorTypeBuyerDirect,
			CreatedAt:   &at,
		})
	}
	donations, err := s.AddDonations(ctx, inputs)
	is.NoErr(err)
	return s, np.ID, donations
}

func TestAddDonationsUnknownNonprofit(t *testing.T) {
	is := is.New(t)
	s, npID, _ := seed(t, "1.00")

	_, err := s.AddDonations(ctx, []*givemart.DonationInput{
		{NonprofitID: npID, OrderID: 1, Amount: decimal.NewFromInt(2), DonorType: givemart.DonorTypeBuyerDirect},
		{NonprofitID: npID + 1, OrderID: 2, Amount: decimal.NewFromInt(3), DonorType: givemart.DonorTypeBuyerDirect},
	})
	is.True(errors.Is(err, ErrUnknownNonprofit))

	cnt, err := s.CountDonations(ctx, givemart.DonationFilter{})
	is.NoErr(err)
	is.Equal(cnt, 1) // the valid half of the batch was not stored
}

func TestPayoutTxRollback(t *testing.T) {
	is := is.New(t)
	s, npID, donations := seed(t, "10.00", "5.00")
	ids := []int{donations[0].ID, donations[1].ID}

	boom := errors.New("boom")
	err := s.WithPayoutTx(ctx, func(tx givemart.PayoutTx) error {
		locked, err := tx.LockPendingDonations(ctx, npID, ids)
		is.NoErr(err)
		is.Equal(len(locked), 2)
		p := &givemart.NonprofitPayout{
			Reference:     uuid.New(),
			NonprofitID:   npID,
			Amount:        givemart.SumAmounts(locked),
			Status:        givemart.PayoutStatusPaid,
			PeriodStart:   locked[0].CreatedAt,
			PeriodEnd:     locked[1].CreatedAt,
			DonationCount: 2,
			Method:        "wire",
		}
		is.NoErr(tx.InsertPayout(ctx, p))
		n, err := tx.MarkDonationsPaid(ctx, p.ID, ids)
		is.NoErr(err)
		is.Equal(n, 2)
		return boom
	})
	is.True(errors.Is(err, boom))

	cnt, err := s.CountPayouts(ctx, givemart.PayoutFilter{})
	is.NoErr(err)
	is.Equal(cnt, 0)
	pending, err := s.CountDonations(ctx, givemart.DonationFilter{Status: givemart.DonationStatusPending})
	is.NoErr(err)
	is.Equal(pending, 2)
}

func TestMarkDonationsPaidSkipsPaid(t *testing.T) {
	is := is.New(t)
	s, npID, donations := seed(t, "1.00", "2.00")

	err := s.WithPayoutTx(ctx, func(tx givemart.PayoutTx) error {
		n, err := tx.MarkDonationsPaid(ctx, 1, []int{donations[0].ID})
		is.NoErr(err)
		is.Equal(n, 1)

		n, err = tx.MarkDonationsPaid(ctx, 2, []int{donations[0].ID, donations[1].ID})
		is.NoErr(err)
		is.Equal(n, 1)

		locked, err := tx.LockPendingDonations(ctx, npID, []int{donations[0].ID, donations[1].ID})
		is.NoErr(err)
		is.Equal(len(locked), 0)
		return errors.New("discard")
	})
	is.True(err != nil)
}

func TestLockPendingDonationsFiltersNonprofit(t *testing.T) {
	is := is.New(t)
	s, npID, donations := seed(t, "1.00", "2.00", "3.00")

	err := s.WithPayoutTx(ctx, func(tx givemart.PayoutTx) error {
		locked, err := tx.LockPendingDonations(ctx, npID+1, []int{donations[0].ID})
		is.NoErr(err)
		is.Equal(len(locked), 0)

		locked, err = tx.LockPendingDonations(ctx, npID, []int{donations[2].ID, donations[0].ID, 9999})
		is.NoErr(err)
		is.Equal(len(locked), 2)
		is.Equal(locked[0].ID, donations[0].ID) // ordered by id
		return nil
	})
	is.NoErr(err)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	is := is.New(t)
	s, _, donations := seed(t, "4.00")

	donations[0].Status = givemart.DonationStatusPaid
	d, err := s.Donation(ctx, donations[0].ID)
	is.NoErr(err)
	is.Equal(d.Status, givemart.DonationStatusPending)
}

func TestSuspectDonationsAndTotals(t *testing.T) {
	is := is.New(t)
	s, npID, donations := seed(t, "10.00", "5.00", "2.00")
	ids := []int{donations[0].ID, donations[1].ID}

	err := s.WithPayoutTx(ctx, func(tx givemart.PayoutTx) error {
		p := &givemart.NonprofitPayout{
			Reference:     uuid.New(),
			NonprofitID:   npID,
			Amount:        decimal.RequireFromString("15.00"),
			Status:        givemart.PayoutStatusPaid,
			PeriodStart:   donations[0].CreatedAt,
			PeriodEnd:     donations[1].CreatedAt,
			DonationCount: 2,
			Method:        "wire",
		}
		if err := tx.InsertPayout(ctx, p); err != nil {
			return err
		}
		_, err := tx.MarkDonationsPaid(ctx, p.ID, ids)
		return err
	})
	is.NoErr(err)

	totals, err := s.PayoutTotals(ctx)
	is.NoErr(err)
	is.Equal(len(totals), 1)
	is.True(totals[0].LinkedAmount.Equal(totals[0].Amount))
	is.Equal(totals[0].LinkedCount, 2)

	suspects, err := s.SuspectDonations(ctx)
	is.NoErr(err)
	is.Equal(len(suspects), 0)

	// Tamper with the ledger directly.
	s.st.payouts[0].Amount = decimal.RequireFromString("16.00")
	s.st.donations[donations[2].ID].Status = givemart.DonationStatusPaid

	totals, err = s.PayoutTotals(ctx)
	is.NoErr(err)
	suspects, err = s.SuspectDonations(ctx)
	is.NoErr(err)
	is.Equal(len(suspects), 1)

	report := givemart.BuildReconciliationReport(totals, suspects, time.Now())
	is.True(!report.OK())
	is.Equal(len(report.Discrepancies), 2)
}

func TestClosed(t *testing.T) {
	is := is.New(t)
	s, _, _ := seed(t)
	is.NoErr(s.Close())
	_, err := s.Donations(ctx, givemart.DonationFilter{})
	is.True(errors.Is(err, ErrClosed))
}
