package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/givemart/givemart"
	"github.com/givemart/givemart/db/memdb"
	"github.com/givemart/givemart/internal/auth"
	"github.com/givemart/givemart/sudoapi"
	"github.com/matryer/is"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	auth    *auth.Authorizer
	npID    int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memdb.New()
	np := &givemart.NonprofitBrief{Name: "Ocean Cleanup"}
	if err := store.AddNonprofit(t.Context(), np); err != nil {
		t.Fatal(err)
	}
	base, err := sudoapi.GetBaseAPI(store, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { base.Close() })
	authorizer, err := auth.NewAuthorizer("test-secret", "givemart")
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{t: t, handler: New(base, authorizer).Handler(), auth: authorizer, npID: np.ID}
}

func (ts *testServer) token(scopes ...string) string {
	tok, err := ts.auth.Issue("tester", scopes, time.Hour)
	if err != nil {
		ts.t.Fatal(err)
	}
	return tok
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (ts *testServer) do(method, path, token string, body any) (int, envelope) {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			ts.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		ts.t.Fatalf("invalid response body %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestAuthorization(t *testing.T) {
	ts := newTestServer(t)
	expired := func() string {
		a, _ := auth.NewAuthorizer("test-secret", "givemart")
		tok, err := a.Issue("tester", []string{auth.ScopePayoutsRead}, -time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		return tok
	}()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		code   int
	}{
		{"anonymous read", "GET", "/payouts", "", 401},
		{"garbage token", "GET", "/payouts", "nope", 401},
		{"expired token", "GET", "/payouts", expired, 401},
		{"recorder reading", "GET", "/payouts", ts.token(auth.ScopeDonationsRecord), 403},
		{"reader creating payout", "POST", "/payouts", ts.token(auth.ScopePayoutsRead), 403},
		{"reader recording donations", "POST", "/donations", ts.token(auth.ScopePayoutsRead), 403},
		{"reader reading", "GET", "/payouts", ts.token(auth.ScopePayoutsRead), 200},
		{"manager reading", "GET", "/payouts/pending", ts.token(auth.ScopePayoutsManage), 200},
		{"ping", "GET", "/ping", "", 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := ts.do(tt.method, tt.path, tt.token, nil)
			if code != tt.code {
				t.Fatalf("got status %d, want %d", code, tt.code)
			}
		})
	}
}

func TestPayoutFlow(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t)
	recorder := ts.token(auth.ScopeDonationsRecord)
	manager := ts.token(auth.ScopePayoutsManage)

	code, env := ts.do("POST", "/donations", recorder, map[string]any{
		"donations": []map[string]any{
			{"nonprofit_id": ts.npID, "order_id": 1, "amount": "10.00", "donor_type": "seller_contribution"},
			{"nonprofit_id": ts.npID, "order_id": 1, "amount": "5.00", "donor_type": "buyer_direct"},
			{"nonprofit_id": ts.npID, "order_id": 2, "amount": "2.00", "donor_type": "platform_revenue"},
		},
	})
	is.Equal(code, 200)
	var donations []*givemart.Donation
	is.NoErr(json.Unmarshal(env.Data, &donations))
	is.Equal(len(donations), 3)

	code, env = ts.do("GET", "/payouts/pending", manager, nil)
	is.Equal(code, 200)
	var summaries []*givemart.PendingNonprofitSummary
	is.NoErr(json.Unmarshal(env.Data, &summaries))
	is.Equal(len(summaries), 1)
	is.Equal(summaries[0].TotalAmount.String(), "17")

	req := summaries[0].PayoutRequest("manual", "March payout")
	code, env = ts.do("POST", "/payouts", manager, req)
	is.Equal(code, 201)
	var payout givemart.NonprofitPayout
	is.NoErr(json.Unmarshal(env.Data, &payout))
	is.Equal(payout.DonationCount, 3)
	is.Equal(payout.Amount.String(), "17")

	code, env = ts.do("POST", "/payouts", manager, req)
	is.Equal(code, 409)
	var msg string
	is.NoErr(json.Unmarshal(env.Data, &msg))
	is.Equal(msg, givemart.ErrDonationConflict.Text)

	code, env = ts.do("GET", "/payouts?page=1&page_size=10", manager, nil)
	is.Equal(code, 200)
	var page givemart.PayoutPage
	is.NoErr(json.Unmarshal(env.Data, &page))
	is.Equal(page.Total, 1)
	is.Equal(page.Payouts[0].Nonprofit.Name, "Ocean Cleanup")

	code, env = ts.do("GET", "/reconcile", manager, nil)
	is.Equal(code, 200)
	var report givemart.ReconciliationReport
	is.NoErr(json.Unmarshal(env.Data, &report))
	is.True(report.OK())
	is.Equal(report.PayoutsChecked, 1)
}

func TestBadRequests(t *testing.T) {
	ts := newTestServer(t)
	manager := ts.token(auth.ScopePayoutsManage)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"empty payout", "POST", "/payouts", map[string]any{"nonprofit_id": ts.npID, "donation_ids": []int{}, "method": "manual"}, 400},
		{"unknown field", "POST", "/payouts", map[string]any{"nonprofit": ts.npID}, 400},
		{"bad id", "GET", "/payouts/abc", nil, 400},
		{"missing payout", "GET", "/payouts/42", nil, 404},
		{"bad status", "GET", "/payouts?status=lost", nil, 400},
		{"malformed history query", "GET", "/payouts?page=%zz", nil, 400},
		{"malformed pending query", "GET", "/payouts/pending?nonprofit_id=1%", nil, 400},
		{"malformed audit query", "GET", "/audit_logs?page=%g0", nil, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := ts.do(tt.method, tt.path, manager, tt.body)
			if code != tt.code || env.Status != "error" {
				t.Fatalf("got %d %s, want %d error", code, env.Status, tt.code)
			}
		})
	}
}
