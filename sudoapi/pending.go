package sudoapi

import (
	"context"

	"github.com/givemart/givemart"
	"github.com/givemart/givemart/integrations/prometheus"
)

// PendingByNonprofit returns what every nonprofit (or only nonprofitID) is
// currently owed. It is a read-only snapshot: donations may become pending or
// paid right after it returns.
func (s *BaseAPI) PendingByNonprofit(ctx context.Context, nonprofitID *int) ([]*givemart.PendingNonprofitSummary, error) {
	if nonprofitID != nil && *nonprofitID <= 0 {
		return nil, Statusf(400, "Invalid nonprofit ID")
	}
	donations, err := s.db.Donations(ctx, givemart.DonationFilter{
		NonprofitID: nonprofitID,
		Status:      givemart.DonationStatusPending,
	})
	if err != nil {
		return nil, WrapStorageError(err, "Couldn't get pending donations")
	}

	summaries := givemart.SummarizePending(donations)
	ids := make([]int, 0, len(summaries))
	for _, sum := range summaries {
		ids = append(ids, sum.NonprofitID)
	}
	briefs := s.nonprofitBriefs(ctx, ids)
	for _, sum := range summaries {
		sum.Nonprofit = briefs[sum.NonprofitID]
	}
	if nonprofitID == nil {
		prometheus.PendingNonprofits.Set(float64(len(summaries)))
	}
	return summaries, nil
}
