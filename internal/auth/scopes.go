package auth

const (
	// ScopeDonationsRecord lets the checkout side record donations.
	ScopeDonationsRecord = "donations:record"
	// ScopePayoutsRead gives access to pending summaries, history and audits.
	ScopePayoutsRead = "payouts:read"
	// ScopePayoutsManage allows recording payouts. It implies ScopePayoutsRead.
	ScopePayoutsManage = "payouts:manage"
)

var Scopes = []string{
	ScopeDonationsRecord,
	ScopePayoutsRead,
	ScopePayoutsManage,
}

var impliedScopes = map[string][]string{
	ScopePayoutsManage: {ScopePayoutsRead},
}
