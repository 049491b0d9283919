// Package memdb is an in-memory ledger store with the same transactional
// behaviour as the PostgreSQL one. It backs local development (-memory) and
// the service tests.
package memdb

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/givemart/givemart"
)

var (
	ErrUnknownNonprofit = errors.New("unknown nonprofit")
	ErrClosed           = errors.New("store is closed")
)

type state struct {
	nonprofits map[int]*givemart.NonprofitBrief
	donations  map[int]*givemart.Donation
	payouts    []*givemart.NonprofitPayout
	auditLogs  []*givemart.AuditLog

	lastNonprofit int
	lastDonation  int
	lastPayout    int
	lastAuditLog  int
}

// clone copies everything a payout transaction may touch. Payouts are never
// modified after insertion, so the slice can share its elements.
func (st *state) clone() *state {
	next := *st
	next.donations = make(map[int]*givemart.Donation, len(st.donations))
	for id, d := range st.donations {
		next.donations[id] = copyDonation(d)
	}
	next.payouts = slices.Clone(st.payouts)
	return &next
}

// DB serializes every operation behind a single mutex. Payout transactions
// work on a copy of the state which replaces the live one only on success.
type DB struct {
	mu     sync.Mutex
	st     *state
	closed bool

	now func() time.Time
}

func New() *DB {
	return &DB{
		st: &state{
			nonprofits: make(map[int]*givemart.NonprofitBrief),
			donations:  make(map[int]*givemart.Donation),
		},
		now: time.Now,
	}
}

// SetClock replaces the time source used for default timestamps.
func (s *DB) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *DB) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

func (s *DB) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *DB) AddNonprofit(ctx context.Context, np *givemart.NonprofitBrief) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.st.lastNonprofit++
	np.ID = s.st.lastNonprofit
	cp := *np
	s.st.nonprofits[np.ID] = &cp
	return nil
}

func (s *DB) Nonprofit(ctx context.Context, id int) (*givemart.NonprofitBrief, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	np, ok := s.st.nonprofits[id]
	if !ok {
		return nil, nil
	}
	cp := *np
	return &cp, nil
}

// AddDonations inserts all inputs or none of them.
func (s *DB) AddDonations(ctx context.Context, inputs []*givemart.DonationInput) ([]*givemart.Donation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	for _, in := range inputs {
		if _, ok := s.st.nonprofits[in.NonprofitID]; !ok {
			return nil, fmt.Errorf("couldn't insert donations: %w (#%d)", ErrUnknownNonprofit, in.NonprofitID)
		}
	}

	now := s.now()
	out := make([]*givemart.Donation, 0, len(inputs))
	for _, in := range inputs {
		s.st.lastDonation++
		createdAt := now
		if in.CreatedAt != nil {
			createdAt = *in.CreatedAt
		}
		d := &givemart.Donation{
			ID:          s.st.lastDonation,
			NonprofitID: in.NonprofitID,
			ShopID:      in.ShopID,
			OrderID:     in.OrderID,
			Amount:      in.Amount.Round(givemart.AmountPlaces),
			DonorType:   in.DonorType,
			Status:      givemart.DonationStatusPending,
			CreatedAt:   createdAt,
		}
		s.st.donations[d.ID] = d
		out = append(out, copyDonation(d))
	}
	return out, nil
}

func (s *DB) Donation(ctx context.Context, id int) (*givemart.Donation, error) {
	donations, err := s.Donations(ctx, givemart.DonationFilter{ID: &id, Limit: 1})
	if err != nil || len(donations) == 0 {
		return nil, err
	}
	return donations[0], nil
}

// Donations lists donations matching filter, oldest first.
func (s *DB) Donations(ctx context.Context, filter givemart.DonationFilter) ([]*givemart.Donation, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return paginate(s.filterDonations(&filter), filter.Limit, filter.Offset, copyDonation), nil
}

func (s *DB) CountDonations(ctx context.Context, filter givemart.DonationFilter) (int, error) {
	if err := s.lock(); err != nil {
		return -1, err
	}
	defer s.mu.Unlock()
	return len(s.filterDonations(&filter)), nil
}

func (s *DB) filterDonations(filter *givemart.DonationFilter) []*givemart.Donation {
	var ids map[int]bool
	if filter.IDs != nil {
		ids = make(map[int]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}
	var out []*givemart.Donation
	for _, d := range s.st.donations {
		if filter.ID != nil && d.ID != *filter.ID {
			continue
		}
		if ids != nil && !ids[d.ID] {
			continue
		}
		if filter.NonprofitID != nil && d.NonprofitID != *filter.NonprofitID {
			continue
		}
		if filter.OrderID != nil && d.OrderID != *filter.OrderID {
			continue
		}
		if filter.ShopID != nil && (d.ShopID == nil || *d.ShopID != *filter.ShopID) {
			continue
		}
		if filter.PayoutID != nil && (d.PayoutID == nil || *d.PayoutID != *filter.PayoutID) {
			continue
		}
		if filter.DonorType != givemart.DonorTypeNone && d.DonorType != filter.DonorType {
			continue
		}
		if filter.Status != givemart.DonationStatusNone && d.Status != filter.Status {
			continue
		}
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *givemart.Donation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *DB) Payout(ctx context.Context, id int) (*givemart.NonprofitPayout, error) {
	payouts, err := s.Payouts(ctx, givemart.PayoutFilter{ID: &id, Limit: 1})
	if err != nil || len(payouts) == 0 {
		return nil, err
	}
	return payouts[0], nil
}

// Payouts lists payouts newest first.
func (s *DB) Payouts(ctx context.Context, filter givemart.PayoutFilter) ([]*givemart.NonprofitPayout, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return paginate(s.filterPayouts(&filter), filter.Limit, filter.Offset, copyPayout), nil
}

func (s *DB) CountPayouts(ctx context.Context, filter givemart.PayoutFilter) (int, error) {
	if err := s.lock(); err != nil {
		return -1, err
	}
	defer s.mu.Unlock()
	return len(s.filterPayouts(&filter)), nil
}

func (s *DB) filterPayouts(filter *givemart.PayoutFilter) []*givemart.NonprofitPayout {
	var out []*givemart.NonprofitPayout
	for _, p := range s.st.payouts {
		if filter.ID != nil && p.ID != *filter.ID {
			continue
		}
		if filter.NonprofitID != nil && p.NonprofitID != *filter.NonprofitID {
			continue
		}
		if filter.Status != givemart.PayoutStatusNone && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *givemart.NonprofitPayout) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

// WithPayoutTx runs fn against a private copy of the ledger. The copy becomes
// the ledger only if fn returns nil and ctx is still alive.
func (s *DB) WithPayoutTx(ctx context.Context, fn func(tx givemart.PayoutTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	tx := &payoutTx{st: s.st.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

var _ givemart.PayoutTx = &payoutTx{}

type payoutTx struct {
	st  *state
	now func() time.Time
}

func (t *payoutTx) LockPendingDonations(ctx context.Context, nonprofitID int, ids []int) ([]*givemart.Donation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*givemart.Donation
	for _, id := range ids {
		d, ok := t.st.donations[id]
		if !ok || d.NonprofitID != nonprofitID || d.Status != givemart.DonationStatusPending {
			continue
		}
		out = append(out, copyDonation(d))
	}
	slices.SortFunc(out, func(a, b *givemart.Donation) int { return cmp.Compare(a.ID, b.ID) })
	if out == nil {
		out = []*givemart.Donation{}
	}
	return out, nil
}

func (t *payoutTx) InsertPayout(ctx context.Context, p *givemart.NonprofitPayout) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.st.nonprofits[p.NonprofitID]; !ok {
		return fmt.Errorf("couldn't insert payout: %w (#%d)", ErrUnknownNonprofit, p.NonprofitID)
	}
	if p.PeriodEnd.Before(p.PeriodStart) {
		return errors.New("couldn't insert payout: period ends before it starts")
	}
	for _, other := range t.st.payouts {
		if other.Reference == p.Reference {
			return fmt.Errorf("couldn't insert payout: duplicate reference %s", p.Reference)
		}
	}
	t.st.lastPayout++
	p.ID = t.st.lastPayout
	p.CreatedAt = t.now()
	t.st.payouts = append(t.st.payouts, copyPayout(p))
	return nil
}

func (t *payoutTx) MarkDonationsPaid(ctx context.Context, payoutID int, ids []int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	changed := 0
	for _, id := range ids {
		d, ok := t.st.donations[id]
		if !ok || d.Status != givemart.DonationStatusPending {
			continue
		}
		d.Status = givemart.DonationStatusPaid
		d.PayoutID = &payoutID
		changed++
	}
	return changed, nil
}

// PayoutTotals compares every payout snapshot with its attributed donations.
func (s *DB) PayoutTotals(ctx context.Context) ([]*givemart.PayoutTotals, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	totals := make(map[int]*givemart.PayoutTotals, len(s.st.payouts))
	for _, p := range s.st.payouts {
		totals[p.ID] = &givemart.PayoutTotals{
			PayoutID:      p.ID,
			NonprofitID:   p.NonprofitID,
			Amount:        p.Amount,
			DonationCount: p.DonationCount,
			LinkedAmount:  givemart.SumAmounts(nil),
		}
	}
	for _, d := range s.st.donations {
		if d.PayoutID == nil {
			continue
		}
		if t, ok := totals[*d.PayoutID]; ok {
			t.LinkedAmount = t.LinkedAmount.Add(d.Amount)
			t.LinkedCount++
		}
	}
	return slices.SortedFunc(maps.Values(totals), func(a, b *givemart.PayoutTotals) int {
		return cmp.Compare(a.PayoutID, b.PayoutID)
	}), nil
}

// SuspectDonations returns the donations whose status, attribution or
// nonprofit look inconsistent.
func (s *DB) SuspectDonations(ctx context.Context) ([]*givemart.Donation, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	payoutNonprofit := make(map[int]int, len(s.st.payouts))
	for _, p := range s.st.payouts {
		payoutNonprofit[p.ID] = p.NonprofitID
	}
	out := []*givemart.Donation{}
	for _, d := range s.st.donations {
		paid := d.Status == givemart.DonationStatusPaid
		if paid != (d.PayoutID != nil) {
			out = append(out, copyDonation(d))
			continue
		}
		if d.PayoutID == nil {
			continue
		}
		if np, ok := payoutNonprofit[*d.PayoutID]; !ok || np != d.NonprofitID {
			out = append(out, copyDonation(d))
		}
	}
	slices.SortFunc(out, func(a, b *givemart.Donation) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *DB) CreateAuditLog(ctx context.Context, msg string, author *string, system bool) (int, error) {
	if err := s.lock(); err != nil {
		return -1, err
	}
	defer s.mu.Unlock()
	s.st.lastAuditLog++
	s.st.auditLogs = append(s.st.auditLogs, &givemart.AuditLog{
		ID:        s.st.lastAuditLog,
		LogTime:   s.now(),
		SystemLog: system,
		Message:   strings.TrimSpace(msg),
		Author:    author,
	})
	return s.st.lastAuditLog, nil
}

// AuditLogs returns the newest entries first.
func (s *DB) AuditLogs(ctx context.Context, limit, offset int) ([]*givemart.AuditLog, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	logs := slices.Clone(s.st.auditLogs)
	slices.Reverse(logs)
	return paginate(logs, limit, offset, func(l *givemart.AuditLog) *givemart.AuditLog {
		cp := *l
		return &cp
	}), nil
}

func (s *DB) AuditLogCount(ctx context.Context) (int, error) {
	if err := s.lock(); err != nil {
		return -1, err
	}
	defer s.mu.Unlock()
	return len(s.st.auditLogs), nil
}

func paginate[T any](lst []*T, limit, offset int, cp func(*T) *T) []*T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(lst) {
		return []*T{}
	}
	lst = lst[offset:]
	if limit > 0 && limit < len(lst) {
		lst = lst[:limit]
	}
	out := make([]*T, len(lst))
	for i := range lst {
		out[i] = cp(lst[i])
	}
	return out
}

func copyDonation(d *givemart.Donation) *givemart.Donation {
	cp := *d
	if d.PayoutID != nil {
		id := *d.PayoutID
		cp.PayoutID = &id
	}
	if d.ShopID != nil {
		id := *d.ShopID
		cp.ShopID = &id
	}
	return &cp
}

func copyPayout(p *givemart.NonprofitPayout) *givemart.NonprofitPayout {
	cp := *p
	cp.Nonprofit = nil
	if p.PaidAt != nil {
		t := *p.PaidAt
		cp.PaidAt = &t
	}
	return &cp
}
