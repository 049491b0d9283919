package api

import (
	"net/http"

	"github.com/givemart/givemart"
)

func (s *API) recordDonations(w http.ResponseWriter, r *http.Request) {
	var args struct {
		Donations []*givemart.DonationInput `json:"donations"`
	}
	if err := parseJSONBody(r, &args); err != nil {
		err.WriteError(w)
		return
	}

	donations, err := s.base.RecordDonations(r.Context(), args.Donations)
	if err != nil {
		statusError(w, r, err)
		return
	}
	returnData(w, donations)
}

func (s *API) getDonation(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		errorData(w, "Invalid donation ID", 400)
		return
	}
	donation, err := s.base.Donation(r.Context(), id)
	if err != nil {
		statusError(w, r, err)
		return
	}
	returnData(w, donation)
}
