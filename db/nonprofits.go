package db

import (
	"context"
	"errors"

	"github.com/givemart/givemart"
	"github.com/jackc/pgx/v5"
)

type nonprofit struct {
	ID           int    `db:"id"`
	Name         string `db:"name"`
	LogoURL      string `db:"logo_url"`
	EIN          string `db:"ein"`
	Verified     bool   `db:"verified"`
	ContactEmail string `db:"contact_email"`
}

const nonprofitColumns = "id, name, logo_url, ein, verified, contact_email"

func (s *DB) Nonprofit(ctx context.Context, id int) (*givemart.NonprofitBrief, error) {
	rows, _ := s.conn.Query(ctx, "SELECT "+nonprofitColumns+" FROM nonprofits WHERE id = $1", id)
	np, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[nonprofit])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return internalToNonprofit(np), nil
}

// AddNonprofit is used for seeding and tests, nonprofits are otherwise managed by the catalog.
func (s *DB) AddNonprofit(ctx context.Context, np *givemart.NonprofitBrief) error {
	return s.conn.QueryRow(ctx,
		"INSERT INTO nonprofits (name, logo_url, ein, verified, contact_email) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		np.Name, np.LogoURL, np.EIN, np.Verified, np.ContactEmail,
	).Scan(&np.ID)
}

func internalToNonprofit(np *nonprofit) *givemart.NonprofitBrief {
	if np == nil {
		return nil
	}
	return &givemart.NonprofitBrief{
		ID:           np.ID,
		Name:         np.Name,
		LogoURL:      np.LogoURL,
		EIN:          np.EIN,
		Verified:     np.Verified,
		ContactEmail: np.ContactEmail,
	}
}
