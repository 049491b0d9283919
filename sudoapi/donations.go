package sudoapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/givemart/givemart"
	"github.com/givemart/givemart/integrations/prometheus"
)

// RecordDonations stores a batch of pending donations produced by order
// settlement. One invalid input rejects the whole batch.
func (s *BaseAPI) RecordDonations(ctx context.Context, inputs []*givemart.DonationInput) ([]*givemart.Donation, error) {
	if len(inputs) == 0 {
		return nil, Statusf(400, "No donations to record")
	}
	for i, in := range inputs {
		if in == nil {
			return nil, Statusf(400, "Donation #%d is empty", i+1)
		}
		if err := in.Validate(); err != nil {
			return nil, validationError(err, fmt.Sprintf("Invalid donation #%d", i+1))
		}
	}

	donations, err := s.db.AddDonations(ctx, inputs)
	if err != nil {
		return nil, WrapStorageError(err, "Couldn't record donations")
	}

	for _, d := range donations {
		prometheus.DonationsRecorded.WithLabelValues(string(d.DonorType)).Inc()
	}
	s.LogUserAction(ctx, "Recorded %d donation(s) totalling %s", len(donations), givemart.SumAmounts(donations).StringFixed(givemart.AmountPlaces))
	return donations, nil
}

func (s *BaseAPI) Donation(ctx context.Context, id int) (*givemart.Donation, error) {
	d, err := s.db.Donation(ctx, id)
	if err != nil {
		return nil, WrapStorageError(err, "Couldn't get donation")
	}
	if d == nil {
		return nil, Statusf(404, "Donation not found")
	}
	return d, nil
}

func (s *BaseAPI) Donations(ctx context.Context, filter givemart.DonationFilter) ([]*givemart.Donation, error) {
	donations, err := s.db.Donations(ctx, filter)
	if err != nil {
		return nil, WrapStorageError(err, "Couldn't get donations")
	}
	return donations, nil
}

// Nonprofit returns the cached display metadata of a nonprofit.
func (s *BaseAPI) Nonprofit(ctx context.Context, id int) (*givemart.NonprofitBrief, error) {
	np, err := s.nonprofitCache.Get(ctx, id)
	if errors.Is(err, errNonprofitMissing) {
		return nil, Statusf(404, "Nonprofit not found")
	} else if err != nil {
		return nil, WrapStorageError(err, "Couldn't get nonprofit")
	}
	return np, nil
}

var errNonprofitMissing = errors.New("nonprofit does not exist")

// nonprofitBriefs resolves display metadata for ids, skipping the ones that
// can't be loaded. It never fails the caller.
func (s *BaseAPI) nonprofitBriefs(ctx context.Context, ids []int) map[int]*givemart.NonprofitBrief {
	out := make(map[int]*givemart.NonprofitBrief, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		np, err := s.nonprofitCache.Get(ctx, id)
		if err != nil {
			continue
		}
		out[id] = np
	}
	return out
}
