package givemart

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// DonorType says whose money a donation is. It is only used for reporting.
type DonorType string

const (
	DonorTypeNone               DonorType = ""
	DonorTypeSellerContribution DonorType = "seller_contribution"
	DonorTypeBuyerDirect        DonorType = "buyer_direct"
	DonorTypePlatformRevenue    DonorType = "platform_revenue"
)

var DonorTypes = []DonorType{DonorTypeSellerContribution, DonorTypeBuyerDirect, DonorTypePlatformRevenue}

func (t DonorType) Valid() bool {
	switch t {
	case DonorTypeSellerContribution, DonorTypeBuyerDirect, DonorTypePlatformRevenue:
		return true
	default:
		return false
	}
}

// DonationStatus only ever moves from pending to paid.
type DonationStatus string

const (
	DonationStatusNone    DonationStatus = ""
	DonationStatusPending DonationStatus = "pending"
	DonationStatusPaid    DonationStatus = "paid"
)

type Donation struct {
	ID          int             `json:"id"`
	NonprofitID int             `json:"nonprofit_id"`
	ShopID      *int            `json:"shop_id"`
	OrderID     int             `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	DonorType   DonorType       `json:"donor_type"`

	Status   DonationStatus `json:"status"`
	PayoutID *int           `json:"payout_id"`

	CreatedAt time.Time `json:"created_at"`
}

func (d *Donation) IsPending() bool {
	return d != nil && d.Status == DonationStatusPending
}

// DonationInput is what the order-settlement path hands over for every
// donation generated by an order. Donor type is resolved by the caller.
type DonationInput struct {
	NonprofitID int             `json:"nonprofit_id"`
	ShopID      *int            `json:"shop_id"`
	OrderID     int             `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	DonorType   DonorType       `json:"donor_type"`

	// CreatedAt defaults to the insertion time.
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func (in DonationInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.NonprofitID, validation.Required, validation.Min(1)),
		validation.Field(&in.ShopID, validation.When(in.ShopID != nil, validation.By(positiveID))),
		validation.Field(&in.OrderID, validation.Required, validation.Min(1)),
		validation.Field(&in.Amount, validation.By(validAmount)),
		validation.Field(&in.DonorType, validation.Required, validation.In(DonorTypeSellerContribution, DonorTypeBuyerDirect, DonorTypePlatformRevenue)),
	)
}

// AmountPlaces is the number of decimal places kept for every amount.
const AmountPlaces = 2

// positiveID is needed where zero must be rejected; validation.Min skips empty values.
func positiveID(value any) error {
	id, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	if v, ok := id.(int); !ok || v <= 0 {
		return errors.New("must be no less than 1")
	}
	return nil
}

func validAmount(value any) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal amount")
	}
	if amount.IsNegative() {
		return errors.New("must not be negative")
	}
	if !amount.Equal(amount.Truncate(AmountPlaces)) {
		return errors.New("must have at most 2 decimal places")
	}
	return nil
}

type DonationFilter struct {
	ID          *int           `json:"id"`
	IDs         []int          `json:"ids"`
	NonprofitID *int           `json:"nonprofit_id"`
	OrderID     *int           `json:"order_id"`
	ShopID      *int           `json:"shop_id"`
	PayoutID    *int           `json:"payout_id"`
	DonorType   DonorType      `json:"donor_type"`
	Status      DonationStatus `json:"status"`

	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// SumAmounts adds up donation amounts exactly.
func SumAmounts(donations []*Donation) decimal.Decimal {
	total := decimal.Zero
	for _, d := range donations {
		total = total.Add(d.Amount)
	}
	return total
}
