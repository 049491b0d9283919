package apiv2

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/givemart/givemart"
	"github.com/givemart/givemart/db/memdb"
	"github.com/givemart/givemart/internal/auth"
	"github.com/givemart/givemart/sudoapi"
	"github.com/matryer/is"
	"github.com/shopspring/decimal"
)

func TestListPending(t *testing.T) {
	is := is.New(t)
	store := memdb.New()
	np := &givemart.NonprofitBrief{Name: "Food Bank"}
	is.NoErr(store.AddNonprofit(t.Context(), np))
	base, err := sudoapi.GetBaseAPI(store, nil, nil)
	is.NoErr(err)
	defer base.Close()
	_, err = base.RecordDonations(t.Context(), []*givemart.DonationInput{
		{NonprofitID: np.ID, OrderID: 1, Amount: decimal.RequireFromString("4.20"), DonorType: givemart.DonorTypeBuyerDirect},
	})
	is.NoErr(err)

	authorizer, err := auth.NewAuthorizer("secret", "givemart")
	is.NoErr(err)
	handler := New(base, authorizer).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/payouts/pending", nil))
	is.Equal(rec.Code, 401)

	tok, err := authorizer.Issue("viewer", []string{auth.ScopePayoutsRead}, time.Hour)
	is.NoErr(err)
	req := httptest.NewRequest("GET", "/payouts/pending", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	is.Equal(rec.Code, 200)

	var summaries []*givemart.PendingNonprofitSummary
	is.NoErr(json.Unmarshal(rec.Body.Bytes(), &summaries))
	is.Equal(len(summaries), 1)
	is.True(summaries[0].TotalAmount.Equal(decimal.RequireFromString("4.20")))

	req = httptest.NewRequest("GET", "/payouts/99", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	is.Equal(rec.Code, 404)
}
