package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/givemart/givemart"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const payoutColumns = "id, reference, nonprofit_id, amount, status, period_start, period_end, donation_count, method, notes, created_at, paid_at"

type payout struct {
	ID            int             `db:"id"`
	Reference     uuid.UUID       `db:"reference"`
	NonprofitID   int             `db:"nonprofit_id"`
	Amount        decimal.Decimal `db:"amount"`
	Status        string          `db:"status"`
	PeriodStart   time.Time       `db:"period_start"`
	PeriodEnd     time.Time       `db:"period_end"`
	DonationCount int             `db:"donation_count"`
	Method        string          `db:"method"`
	Notes         string          `db:"notes"`
	CreatedAt     time.Time       `db:"created_at"`
	PaidAt        *time.Time      `db:"paid_at"`
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
	sb := psql.Select(payoutColumns).From("nonprofit_payouts")
	sb = payoutFilterQuery(&filter, sb)
	query, args, err := sb.OrderBy("created_at DESC", "id DESC").ToSql()
	if err != nil {
		return nil, err
	}

	rows, _ := s.conn.Query(ctx, query, args...)
	payouts, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[payout])
	if errors.Is(err, pgx.ErrNoRows) {
		return []*givemart.NonprofitPayout{}, nil
	} else if err != nil {
		return nil, err
	}
	return mapper(payouts, internalToPayout), nil
}

// CountPayouts ignores the limit fields in filter.
func (s *DB) CountPayouts(ctx context.Context, filter givemart.PayoutFilter) (int, error) {
	sb := psql.Select("COUNT(*)").From("nonprofit_payouts")
	sb = payoutFilterQuery(&filter, sb).RemoveLimit().RemoveOffset()
	query, args, err := sb.ToSql()
	if err != nil {
		return -1, err
	}

	var count int
	err = s.conn.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}

func payoutFilterQuery(filter *givemart.PayoutFilter, sb sq.SelectBuilder) sq.SelectBuilder {
	where := sq.And{}
	if v := filter.ID; v != nil {
		where = append(where, sq.Eq{"id": v})
	}
	if v := filter.NonprofitID; v != nil {
		where = append(where, sq.Eq{"nonprofit_id": v})
	}
	if v := filter.Status; v != givemart.PayoutStatusNone {
		where = append(where, sq.Eq{"status": string(v)})
	}

	if v := filter.Limit; v > 0 {
		sb = sb.Limit(uint64(v))
	}
	if v := filter.Offset; v > 0 {
		sb = sb.Offset(uint64(v))
	}

	return sb.Where(where)
}

// WithPayoutTx runs fn inside a single read committed transaction. Rows
// returned by LockPendingDonations stay locked until commit, so a concurrent
// payout over the same donations waits and then no longer sees them as
// pending. Any error from fn rolls everything back.
func (s *DB) WithPayoutTx(ctx context.Context, fn func(tx givemart.PayoutTx) error) error {
	return pgx.BeginTxFunc(ctx, s.conn, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&payoutTx{tx})
	})
}

var _ givemart.PayoutTx = &payoutTx{}

type payoutTx struct {
	tx pgx.Tx
}

// Locks are taken in id order so overlapping payouts cannot deadlock.
const lockPendingQuery = `SELECT ` + donationColumns + ` FROM donations
	WHERE id = ANY($1) AND nonprofit_id = $2 AND status = 'pending'
	ORDER BY id ASC
	FOR UPDATE`

func (t *payoutTx) LockPendingDonations(ctx context.Context, nonprofitID int, ids []int) ([]*givemart.Donation, error) {
	rows, _ := t.tx.Query(ctx, lockPendingQuery, ids, nonprofitID)
	donations, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[donation])
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("couldn't lock donations: %w", err)
	}
	return mapper(donations, internalToDonation), nil
}

const payoutInsertQuery = `INSERT INTO nonprofit_payouts (
	reference, nonprofit_id, amount, status, period_start, period_end, donation_count, method, notes, paid_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
) RETURNING id, created_at`

func (t *payoutTx) InsertPayout(ctx context.Context, p *givemart.NonprofitPayout) error {
	err := t.tx.QueryRow(ctx, payoutInsertQuery,
		p.Reference, p.NonprofitID, p.Amount, string(p.Status), p.PeriodStart, p.PeriodEnd, p.DonationCount, p.Method, p.Notes, p.PaidAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("couldn't insert payout: %w", err)
	}
	return nil
}

// The status condition makes the update a compare-and-swap per row.
const markPaidQuery = `UPDATE donations SET status = 'paid', payout_id = $1
	WHERE id = ANY($2) AND status = 'pending'`

func (t *payoutTx) MarkDonationsPaid(ctx context.Context, payoutID int, ids []int) (int, error) {
	tag, err := t.tx.Exec(ctx, markPaidQuery, payoutID, ids)
	if err != nil {
		return 0, fmt.Errorf("couldn't mark donations as paid: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func internalToPayout(p *payout) *givemart.NonprofitPayout {
	if p == nil {
		return nil
	}
	return &givemart.NonprofitPayout{
		ID:            p.ID,
		Reference:     p.Reference,
		NonprofitID:   p.NonprofitID,
		Amount:        p.Amount,
		Status:        givemart.PayoutStatus(p.Status),
		PeriodStart:   p.PeriodStart,
		PeriodEnd:     p.PeriodEnd,
		DonationCount: p.DonationCount,
		Method:        p.Method,
		Notes:         p.Notes,
		CreatedAt:     p.CreatedAt,
		PaidAt:        p.PaidAt,
	}
}
