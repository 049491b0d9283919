package api

import (
	"net/http"
	"time"

	"github.com/givemart/givemart"
	"github.com/givemart/givemart/internal/auth"
	"github.com/givemart/givemart/sudoapi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/schema"
)

var decoder *schema.Decoder

// API serves the JSON endpoints used by the admin dashboard and by the
// checkout side of the marketplace.
type API struct {
	base *sudoapi.BaseAPI
	auth *auth.Authorizer
}

// New declares a new API instance
func New(base *sudoapi.BaseAPI, authorizer *auth.Authorizer) *API {
	return &API{base, authorizer}
}

func (s *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(CountQueries)
	r.Use(s.SetupSession)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		returnData(w, "pong")
	})
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		returnData(w, givemart.Version)
	})

	r.With(s.MustHaveScope(auth.ScopeDonationsRecord)).Post("/donations", s.recordDonations)
	r.With(s.MustHaveScope(auth.ScopePayoutsRead)).Get("/donations/{id}", s.getDonation)

	r.Route("/payouts", func(r chi.Router) {
		r.With(s.MustHaveScope(auth.ScopePayoutsRead)).Get("/", s.payouts)
		r.With(s.MustHaveScope(auth.ScopePayoutsRead)).Get("/pending", s.pendingPayouts)
		r.With(s.MustHaveScope(auth.ScopePayoutsManage)).Post("/", s.createPayout)

		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.MustHaveScope(auth.ScopePayoutsRead))
			r.Get("/", s.payout)
			r.Get("/donations", s.payoutDonations)
		})
	})

	r.With(s.MustHaveScope(auth.ScopePayoutsRead)).Get("/reconcile", s.reconcile)
	r.With(s.MustHaveScope(auth.ScopePayoutsManage)).Get("/audit_logs", s.auditLogs)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorData(w, "Endpoint not found", 404)
	})
	return r
}

func init() {
	decoder = schema.NewDecoder()
	decoder.SetAliasTag("json")
	decoder.IgnoreUnknownKeys(true)
}
