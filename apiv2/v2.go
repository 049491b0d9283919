// Package apiv2 exposes the read side of the ledger as a documented OpenAPI service.
package apiv2

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/givemart/givemart"
	"github.com/givemart/givemart/internal/auth"
	"github.com/givemart/givemart/sudoapi"
	"github.com/go-chi/chi/v5"
)

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

	config := huma.DefaultConfig("givemart ledger", givemart.Version)
	config.Servers = []*huma.Server{{URL: "/v2"}}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}
	api := humachi.New(r, config)
	api.UseMiddleware(s.setupSession)

	huma.Register(api, huma.Operation{
		OperationID: "list-payouts",
		Method:      http.MethodGet,
		Path:        "/payouts",
		Summary:     "List recorded payouts, newest first",
		Tags:        []string{"payouts"},
		Security:    []map[string][]string{{"bearer": {auth.ScopePayoutsRead}}},
	}, s.listPayouts)

	huma.Register(api, huma.Operation{
		OperationID: "list-pending",
		Method:      http.MethodGet,
		Path:        "/payouts/pending",
		Summary:     "Pending donations grouped by nonprofit",
		Tags:        []string{"payouts"},
		Security:    []map[string][]string{{"bearer": {auth.ScopePayoutsRead}}},
	}, s.listPending)

	huma.Register(api, huma.Operation{
		OperationID: "get-payout",
		Method:      http.MethodGet,
		Path:        "/payouts/{id}",
		Summary:     "Get a payout",
		Tags:        []string{"payouts"},
		Security:    []map[string][]string{{"bearer": {auth.ScopePayoutsRead}}},
	}, s.getPayout)

	return r
}

func (s *API) setupSession(ctx huma.Context, next func(huma.Context)) {
	h := ctx.Header("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		next(ctx)
		return
	}
	claims, err := s.auth.Verify(strings.TrimSpace(token))
	if err != nil {
		next(ctx)
		return
	}
	next(huma.WithContext(ctx, auth.ContextWithClaims(ctx.Context(), claims)))
}

func requireScope(ctx context.Context, scope string) error {
	claims := auth.ClaimsContext(ctx)
	if claims == nil {
		return huma.Error401Unauthorized("You must be authenticated to do this")
	}
	if !claims.HasScope(scope) {
		return huma.Error403Forbidden("Your token does not allow this action")
	}
	return nil
}

func humaError(err error) error {
	var serr *givemart.StatusError
	if errors.As(err, &serr) {
		return huma.NewError(serr.Code, serr.Text)
	}
	return huma.Error500InternalServerError(givemart.ErrUnknownError.Text)
}

type PayoutsInput struct {
	NonprofitID int    `query:"nonprofit_id" minimum:"0" doc:"Only payouts of this nonprofit"`
	Status      string `query:"status" enum:"pending,paid,failed" doc:"Only payouts in this status"`
	Page        int    `query:"page" minimum:"0" default:"1"`
	PageSize    int    `query:"page_size" minimum:"0" maximum:"1000"`
}

type PayoutsOutput struct {
	Body *givemart.PayoutPage
}

func (s *API) listPayouts(ctx context.Context, input *PayoutsInput) (*PayoutsOutput, error) {
	if err := requireScope(ctx, auth.ScopePayoutsRead); err != nil {
		return nil, err
	}
	filter := givemart.PayoutFilter{Status: givemart.PayoutStatus(input.Status)}
	if input.NonprofitID > 0 {
		filter.NonprofitID = &input.NonprofitID
	}
	page, err := s.base.Payouts(ctx, filter, input.Page, input.PageSize)
	if err != nil {
		return nil, humaError(err)
	}
	return &PayoutsOutput{Body: page}, nil
}

type PendingInput struct {
	NonprofitID int `query:"nonprofit_id" minimum:"0" doc:"Only this nonprofit"`
}

type PendingOutput struct {
	Body []*givemart.PendingNonprofitSummary
}

func (s *API) listPending(ctx context.Context, input *PendingInput) (*PendingOutput, error) {
	if err := requireScope(ctx, auth.ScopePayoutsRead); err != nil {
		return nil, err
	}
	var nonprofitID *int
	if input.NonprofitID > 0 {
		nonprofitID = &input.NonprofitID
	}
	summaries, err := s.base.PendingByNonprofit(ctx, nonprofitID)
	if err != nil {
		return nil, humaError(err)
	}
	return &PendingOutput{Body: summaries}, nil
}

type PayoutInput struct {
	ID int `path:"id" minimum:"1"`
}

type PayoutOutput struct {
	Body *givemart.NonprofitPayout
}

func (s *API) getPayout(ctx context.Context, input *PayoutInput) (*PayoutOutput, error) {
	if err := requireScope(ctx, auth.ScopePayoutsRead); err != nil {
		return nil, err
	}
	payout, err := s.base.Payout(ctx, input.ID)
	if err != nil {
		return nil, humaError(err)
	}
	return &PayoutOutput{Body: payout}, nil
}
