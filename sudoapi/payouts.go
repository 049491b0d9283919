package sudoapi

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/givemart/givemart"
	"github.com/givemart/givemart/integrations/prometheus"
	"github.com/givemart/givemart/sudoapi/flags"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CreatePayout settles exactly the donations named by req in one store
// transaction.
//
// Inside the transaction the donations are re-read with a lock and must all
// still be pending and belong to the nonprofit, otherwise ErrDonationConflict
// is returned and nothing changes. Amount, count and period of the payout are
// computed from those rows, never taken from the caller. Marking the donations
// paid is conditioned on them still being pending, so of two racing payouts
// over the same donation exactly one commits.
func (s *BaseAPI) CreatePayout(ctx context.Context, req givemart.PayoutRequest) (*givemart.NonprofitPayout, error) {
	ctx, span := otel.Tracer("sudoapi").Start(ctx, "CreatePayout")
	defer span.End()
	span.SetAttributes(attribute.Int("nonprofit.id", req.NonprofitID), attribute.Int("payout.donations", len(req.DonationIDs)))

	if len(req.DonationIDs) == 0 {
		return nil, ErrEmptyDonationSet
	}
	if err := req.Validate(); err != nil {
		return nil, validationError(err, "Invalid payout request")
	}
	if maxCnt := flags.MaxPayoutDonations.Value(); maxCnt > 0 && len(req.DonationIDs) > maxCnt {
		return nil, Statusf(400, "A payout can settle at most %d donations", maxCnt)
	}

	if timeout := flags.PayoutTxTimeoutSeconds.Value(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	ids := slices.Clone(req.DonationIDs)
	slices.Sort(ids)

	start := time.Now()
	var payout *givemart.NonprofitPayout
	err := s.db.WithPayoutTx(ctx, func(tx givemart.PayoutTx) error {
		donations, err := tx.LockPendingDonations(ctx, req.NonprofitID, ids)
		if err != nil {
			return err
		}
		if len(donations) != len(ids) {
			return ErrDonationConflict
		}

		p, err := s.newPayout(&req, donations)
		if err != nil {
			return err
		}
		if err := tx.InsertPayout(ctx, p); err != nil {
			return err
		}

		changed, err := tx.MarkDonationsPaid(ctx, p.ID, ids)
		if err != nil {
			return err
		}
		if changed != len(ids) {
			return ErrDonationConflict
		}
		payout = p
		return nil
	})
	prometheus.PayoutDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrDonationConflict) {
			prometheus.PayoutConflicts.Inc()
			slog.InfoContext(ctx, "Payout rejected, donations changed", slog.Int("nonprofit_id", req.NonprofitID), slog.Int("donations", len(ids)))
			return nil, ErrDonationConflict
		}
		prometheus.PayoutFailures.Inc()
		slog.WarnContext(ctx, "Payout transaction failed", slog.Int("nonprofit_id", req.NonprofitID), slog.Any("err", err))
		return nil, WrapStorageError(err, "Couldn't create payout")
	}

	span.SetAttributes(attribute.Int("payout.id", payout.ID))
	s.afterPayout(ctx, payout, ids)
	return payout, nil
}

func (s *BaseAPI) newPayout(req *givemart.PayoutRequest, donations []*givemart.Donation) (*givemart.NonprofitPayout, error) {
	ref, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	periodStart, periodEnd := donations[0].CreatedAt, donations[0].CreatedAt
	for _, d := range donations[1:] {
		if d.CreatedAt.Before(periodStart) {
			periodStart = d.CreatedAt
		}
		if d.CreatedAt.After(periodEnd) {
			periodEnd = d.CreatedAt
		}
	}
	paidAt := s.now()
	return &givemart.NonprofitPayout{
		Reference:     ref,
		NonprofitID:   req.NonprofitID,
		Amount:        givemart.SumAmounts(donations),
		Status:        givemart.PayoutStatusPaid,
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		DonationCount: len(donations),
		Method:        req.Method,
		Notes:         req.Notes,
		PaidAt:        &paidAt,
	}, nil
}

// afterPayout does the side work of a committed payout. None of it can fail
// the payout anymore.
func (s *BaseAPI) afterPayout(ctx context.Context, payout *givemart.NonprofitPayout, ids []int) {
	prometheus.ObservePayout(payout.Amount)
	s.LogUserAction(ctx, "Recorded payout #%d (%s) of %s for nonprofit #%d, settling %d donation(s) via %s",
		payout.ID, payout.Reference, payout.Amount.StringFixed(givemart.AmountPlaces), payout.NonprofitID, payout.DonationCount, payout.Method)

	np, err := s.nonprofitCache.Get(ctx, payout.NonprofitID)
	if err == nil {
		payout.Nonprofit = np
	}

	bgCtx := context.WithoutCancel(ctx)
	if s.publisher != nil {
		ev := givemart.NewPayoutEvent(payout, ids)
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			if err := s.publisher.PublishPayout(bgCtx, ev); err != nil {
				slog.WarnContext(bgCtx, "Couldn't publish payout event", slog.Int("payout_id", ev.PayoutID), slog.Any("err", err))
			}
		}()
	}
	if s.mailer != nil && flags.SendPayoutReceipts.Value() && np != nil && np.ContactEmail != "" {
		msg := payoutReceipt(payout, np)
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			if err := s.mailer.SendEmail(bgCtx, msg); err != nil {
				slog.WarnContext(bgCtx, "Couldn't send payout receipt", slog.Int("payout_id", payout.ID), slog.Any("err", err))
			}
		}()
	}
}

func payoutReceipt(payout *givemart.NonprofitPayout, np *givemart.NonprofitBrief) *givemart.MailerMessage {
	amount := formatAmount(payout.Amount)
	return &givemart.MailerMessage{
		To:      np.ContactEmail,
		Subject: "Donation payout " + payout.Reference.String(),
		PlainContent: "Hello " + np.Name + ",\n\n" +
			"A payout of $" + amount + " covering " + humanize.Comma(int64(payout.DonationCount)) + " donation(s) " +
			"made between " + payout.PeriodStart.Format(time.DateOnly) + " and " + payout.PeriodEnd.Format(time.DateOnly) +
			" was sent via " + payout.Method + ".\n\n" +
			"Reference: " + payout.Reference.String() + "\n",
	}
}

// formatAmount renders d with AmountPlaces decimals and thousands separators,
// without going through float64.
func formatAmount(d decimal.Decimal) string {
	fixed := d.StringFixed(givemart.AmountPlaces)
	sign := ""
	if rest, ok := strings.CutPrefix(fixed, "-"); ok {
		sign, fixed = "-", rest
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var sb strings.Builder
	sb.WriteString(sign)
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(c)
	}
	if frac != "" {
		sb.WriteByte('.')
		sb.WriteString(frac)
	}
	return sb.String()
}

// Payout returns a single payout with its nonprofit metadata.
func (s *BaseAPI) Payout(ctx context.Context, id int) (*givemart.NonprofitPayout, error) {
	p, err := s.db.Payout(ctx, id)
	if err != nil {
		return nil, WrapStorageError(err, "Couldn't get payout")
	}
	if p == nil {
		return nil, Statusf(404, "Payout not found")
	}
	if np, err := s.nonprofitCache.Get(ctx, p.NonprofitID); err == nil {
		p.Nonprofit = np
	}
	return p, nil
}

// PayoutDonations lists the donations settled by a payout.
func (s *BaseAPI) PayoutDonations(ctx context.Context, id int) ([]*givemart.Donation, error) {
	if _, err := s.Payout(ctx, id); err != nil {
		return nil, err
	}
	donations, err := s.db.Donations(ctx, givemart.DonationFilter{PayoutID: &id})
	if err != nil {
		return nil, WrapStorageError(err, "Couldn't get payout donations")
	}
	return donations, nil
}

// Payouts returns one page of payout history, newest first. page is 1-based;
// pageSize is clamped to the configured maximum and defaults when not positive.
func (s *BaseAPI) Payouts(ctx context.Context, filter givemart.PayoutFilter, page, pageSize int) (*givemart.PayoutPage, error) {
	if filter.Status != givemart.PayoutStatusNone && !filter.Status.Valid() {
		return nil, Statusf(400, "Invalid payout status")
	}
	if filter.NonprofitID != nil && *filter.NonprofitID <= 0 {
		return nil, Statusf(400, "Invalid nonprofit ID")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = flags.DefaultPageSize.Value()
	}
	if maxSize := flags.MaxPageSize.Value(); maxSize > 0 && pageSize > maxSize {
		pageSize = maxSize
	}
	pageSize = max(pageSize, 1)

	total, err := s.db.CountPayouts(ctx, filter)
	if err != nil {
		return nil, WrapStorageError(err, "Couldn't count payouts")
	}
	totalPages := (total + pageSize - 1) / pageSize
	// Pages past the end resolve to the last one.
	page = max(1, min(page, totalPages))

	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	payouts, err := s.db.Payouts(ctx, filter)
	if err != nil {
		return nil, WrapStorageError(err, "Couldn't get payouts")
	}

	ids := make([]int, 0, len(payouts))
	for _, p := range payouts {
		ids = append(ids, p.NonprofitID)
	}
	briefs := s.nonprofitBriefs(ctx, ids)
	for _, p := range payouts {
		p.Nonprofit = briefs[p.NonprofitID]
	}

	return &givemart.PayoutPage{
		Payouts:    payouts,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}
