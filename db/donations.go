package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/givemart/givemart"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const donationColumns = "id, nonprofit_id, shop_id, order_id, amount, donor_type, status, payout_id, created_at"

type donation struct {
	ID          int             `db:"id"`
	NonprofitID int             `db:"nonprofit_id"`
	ShopID      *int            `db:"shop_id"`
	OrderID     int             `db:"order_id"`
	Amount      decimal.Decimal `db:"amount"`
	DonorType   string          `db:"donor_type"`
	Status      string          `db:"status"`
	PayoutID    *int            `db:"payout_id"`
	CreatedAt   time.Time       `db:"created_at"`
}

const donationInsertQuery = `INSERT INTO donations (
	nonprofit_id, shop_id, order_id, amount, donor_type, created_at
) VALUES (
	$1, $2, $3, $4, $5, COALESCE($6, NOW())
) RETURNING ` + donationColumns

// AddDonations inserts a batch of pending donations atomically.
func (s *DB) AddDonations(ctx context.Context, inputs []*givemart.DonationInput) ([]*givemart.Donation, error) {
	if len(inputs) == 0 {
		return []*givemart.Donation{}, nil
	}
	var donations []*givemart.Donation
	err := pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, in := range inputs {
			batch.Queue(donationInsertQuery, in.NonprofitID, in.ShopID, in.OrderID, in.Amount, string(in.DonorType), in.CreatedAt)
		}
		results := tx.SendBatch(ctx, batch)
		donations = make([]*givemart.Donation, 0, len(inputs))
		for range inputs {
			rows, err := results.Query()
			if err != nil {
				results.Close()
				return err
			}
			d, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[donation])
			if err != nil {
				results.Close()
				return err
			}
			donations = append(donations, internalToDonation(d))
		}
		return results.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't insert donations: %w", err)
	}
	return donations, nil
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
	sb := psql.Select(donationColumns).From("donations")
	sb = donationFilterQuery(&filter, sb)
	query, args, err := sb.OrderBy("created_at ASC", "id ASC").ToSql()
	if err != nil {
		return nil, err
	}

	rows, _ := s.conn.Query(ctx, query, args...)
	donations, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[donation])
	if errors.Is(err, pgx.ErrNoRows) {
		return []*givemart.Donation{}, nil
	} else if err != nil {
		return nil, err
	}
	return mapper(donations, internalToDonation), nil
}

// CountDonations ignores the limit fields in filter.
func (s *DB) CountDonations(ctx context.Context, filter givemart.DonationFilter) (int, error) {
	sb := psql.Select("COUNT(*)").From("donations")
	sb = donationFilterQuery(&filter, sb).RemoveLimit().RemoveOffset()
	query, args, err := sb.ToSql()
	if err != nil {
		return -1, err
	}

	var count int
	err = s.conn.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}

func donationFilterQuery(filter *givemart.DonationFilter, sb sq.SelectBuilder) sq.SelectBuilder {
	where := sq.And{}
	if v := filter.ID; v != nil {
		where = append(where, sq.Eq{"id": v})
	}
	if v := filter.IDs; v != nil && len(v) == 0 {
		where = append(where, sq.Expr("0 = 1"))
	}
	if v := filter.IDs; len(v) > 0 {
		where = append(where, sq.Expr("id = ANY(?)", v))
	}
	if v := filter.NonprofitID; v != nil {
		where = append(where, sq.Eq{"nonprofit_id": v})
	}
	if v := filter.OrderID; v != nil {
		where = append(where, sq.Eq{"order_id": v})
	}
	if v := filter.ShopID; v != nil {
		where = append(where, sq.Eq{"shop_id": v})
	}
	if v := filter.PayoutID; v != nil {
		where = append(where, sq.Eq{"payout_id": v})
	}
	if v := filter.DonorType; v != givemart.DonorTypeNone {
		where = append(where, sq.Eq{"donor_type": string(v)})
	}
	if v := filter.Status; v != givemart.DonationStatusNone {
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

func internalToDonation(d *donation) *givemart.Donation {
	if d == nil {
		return nil
	}
	return &givemart.Donation{
		ID:          d.ID,
		NonprofitID: d.NonprofitID,
		ShopID:      d.ShopID,
		OrderID:     d.OrderID,
		Amount:      d.Amount,
		DonorType:   givemart.DonorType(d.DonorType),
		Status:      givemart.DonationStatus(d.Status),
		PayoutID:    d.PayoutID,
		CreatedAt:   d.CreatedAt,
	}
}
