package givemart

// NonprofitBrief is the display metadata of a nonprofit. Nonprofits are
// managed elsewhere, the ledger only reads them.
type NonprofitBrief struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	LogoURL  string `json:"logo_url"`
	EIN      string `json:"ein"`
	Verified bool   `json:"verified"`

	ContactEmail string `json:"-"`
}
