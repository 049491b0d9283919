package api

import (
	"net/http"

	"github.com/givemart/givemart"
)

func (s *API) pendingPayouts(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		errorData(w, "Malformed query string", http.StatusBadRequest)
		return
	}
	var args struct {
		NonprofitID *int `json:"nonprofit_id"`
	}
	if err := decoder.Decode(&args, r.Form); err != nil {
		errorData(w, "Invalid query parameters", http.StatusBadRequest)
		return
	}

	summaries, err := s.base.PendingByNonprofit(r.Context(), args.NonprofitID)
	if err != nil {
		statusError(w, r, err)
		return
	}
	returnData(w, summaries)
}

func (s *API) createPayout(w http.ResponseWriter, r *http.Request) {
	var req givemart.PayoutRequest
	if err := parseJSONBody(r, &req); err != nil {
		err.WriteError(w)
		return
	}

	payout, err := s.base.CreatePayout(r.Context(), req)
	if err != nil {
		statusError(w, r, err)
		return
	}
	givemart.StatusData(w, "success", payout, http.StatusCreated)
}

func (s *API) payouts(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		errorData(w, "Malformed query string", http.StatusBadRequest)
		return
	}
	var args struct {
		NonprofitID *int                  `json:"nonprofit_id"`
		Status      givemart.PayoutStatus `json:"status"`
		Page        int                   `json:"page"`
		PageSize    int                   `json:"page_size"`
	}
	if err := decoder.Decode(&args, r.Form); err != nil {
		errorData(w, "Invalid query parameters", http.StatusBadRequest)
		return
	}

	page, err := s.base.Payouts(r.Context(), givemart.PayoutFilter{
		NonprofitID: args.NonprofitID,
		Status:      args.Status,
	}, args.Page, args.PageSize)
	if err != nil {
		statusError(w, r, err)
		return
	}
	returnData(w, page)
}

func (s *API) payout(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		errorData(w, "Invalid payout ID", 400)
		return
	}
	payout, err := s.base.Payout(r.Context(), id)
	if err != nil {
		statusError(w, r, err)
		return
	}
	returnData(w, payout)
}

func (s *API) payoutDonations(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		errorData(w, "Invalid payout ID", 400)
		return
	}
	donations, err := s.base.PayoutDonations(r.Context(), id)
	if err != nil {
		statusError(w, r, err)
		return
	}
	returnData(w, donations)
}

func (s *API) reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := s.base.Reconcile(r.Context())
	if err != nil {
		statusError(w, r, err)
		return
	}
	returnData(w, report)
}
