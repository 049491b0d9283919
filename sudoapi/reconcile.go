package sudoapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/givemart/givemart"
	"github.com/givemart/givemart/integrations/prometheus"
)

// Reconcile checks every payout snapshot against the donations attributed to
// it, and every donation against the "paid if and only if attributed" rule.
func (s *BaseAPI) Reconcile(ctx context.Context) (*givemart.ReconciliationReport, error) {
	totals, err := s.db.PayoutTotals(ctx)
	if err != nil {
		return nil, WrapStorageError(err, "Couldn't get payout totals")
	}
	suspects, err := s.db.SuspectDonations(ctx)
	if err != nil {
		return nil, WrapStorageError(err, "Couldn't get suspect donations")
	}
	report := givemart.BuildReconciliationReport(totals, suspects, s.now())
	prometheus.ReconcileDiscrepancies.Set(float64(len(report.Discrepancies)))
	return report, nil
}

func (s *BaseAPI) reconcileJob(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			return nil
		case <-t.C:
			s.runReconcile(ctx)
		}
	}
}

func (s *BaseAPI) runReconcile(ctx context.Context) {
	report, err := s.Reconcile(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Reconciliation audit failed", slog.Any("err", err))
		return
	}
	if report.OK() {
		slog.DebugContext(ctx, "Reconciliation audit passed", slog.Int("payouts", report.PayoutsChecked))
		return
	}
	for _, d := range report.Discrepancies {
		slog.ErrorContext(ctx, "Ledger discrepancy", slog.String("kind", string(d.Kind)), slog.String("detail", d.Detail))
	}
	s.LogSystemAction(ctx, "Reconciliation audit found %d discrepancies across %d payouts", len(report.Discrepancies), report.PayoutsChecked)
}
