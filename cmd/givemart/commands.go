package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/givemart/givemart"
	"github.com/givemart/givemart/db"
	"github.com/givemart/givemart/internal/auth"
	"github.com/givemart/givemart/internal/config"
	"github.com/givemart/givemart/sudoapi"
	"github.com/givemart/givemart/sudoapi/flags"
)

// withBase runs fn over a ledger that is fully flushed and closed afterwards.
func withBase(ctx context.Context, fn func(base *sudoapi.BaseAPI) error) (err error) {
	base, err := sudoapi.InitializeBaseAPI(ctx, *memoryStore)
	if err != nil {
		return err
	}
	defer func() {
		base.FlushAuditLogs(context.WithoutCancel(ctx))
		err = errors.Join(err, base.Close())
	}()
	return fn(base)
}

func runMigrate(ctx context.Context, _ []string) error {
	conn, err := db.NewPSQL(ctx, config.Common.DBDSN, db.Options{
		LogQueries: flags.LogDBQueries.Value(),
		Trace:      flags.OtelEnabled.Value(),
	})
	if err != nil {
		return fmt.Errorf("couldn't connect to DB: %w", err)
	}
	defer conn.Close()
	if err := conn.RunMigrations(ctx); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Migrations applied")
	return nil
}

func runPending(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pending", flag.ExitOnError)
	nonprofitID := fs.Int("nonprofit", 0, "Only show this nonprofit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var filter *int
	if *nonprofitID != 0 {
		filter = nonprofitID
	}

	return withBase(ctx, func(base *sudoapi.BaseAPI) error {
		summaries, err := base.PendingByNonprofit(ctx, filter)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("Nothing is pending.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NONPROFIT\tOWED\tDONATIONS\tSELLER\tBUYER\tPLATFORM\tOLDEST")
		for _, sum := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				nonprofitLabel(sum.NonprofitID, sum.Nonprofit),
				sum.TotalAmount.StringFixed(givemart.AmountPlaces),
				humanize.Comma(int64(sum.DonationCount)),
				sum.SellerContributionAmount.StringFixed(givemart.AmountPlaces),
				sum.BuyerDirectAmount.StringFixed(givemart.AmountPlaces),
				sum.PlatformRevenueAmount.StringFixed(givemart.AmountPlaces),
				humanize.Time(sum.OldestPending),
			)
		}
		return w.Flush()
	})
}

func runPayout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("payout", flag.ExitOnError)
	nonprofitID := fs.Int("nonprofit", 0, "Nonprofit being paid")
	rawIDs := fs.String("ids", "", "Comma separated donation IDs to settle")
	all := fs.Bool("all", false, "Settle every donation currently pending for the nonprofit")
	method := fs.String("method", "", "How the money was sent (ACH, check, ...)")
	notes := fs.String("notes", "", "Free-form notes stored with the payout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rawIDs != "" && *all {
		return errors.New("-ids and -all are mutually exclusive")
	}

	return withBase(ctx, func(base *sudoapi.BaseAPI) error {
		req := givemart.PayoutRequest{
			NonprofitID: *nonprofitID,
			Method:      *method,
			Notes:       *notes,
		}
		if *all {
			summaries, err := base.PendingByNonprofit(ctx, nonprofitID)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				return fmt.Errorf("nonprofit #%d has nothing pending", *nonprofitID)
			}
			req = summaries[0].PayoutRequest(*method, *notes)
		} else {
			ids, err := parseIDs(*rawIDs)
			if err != nil {
				return err
			}
			req.DonationIDs = ids
		}

		payout, err := base.CreatePayout(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded payout #%d (%s): %s for %s donations to %s\n",
			payout.ID, payout.Reference,
			payout.Amount.StringFixed(givemart.AmountPlaces),
			humanize.Comma(int64(payout.DonationCount)),
			nonprofitLabel(payout.NonprofitID, payout.Nonprofit),
		)
		return nil
	})
}

func runReconcile(ctx context.Context, _ []string) error {
	return withBase(ctx, func(base *sudoapi.BaseAPI) error {
		report, err := base.Reconcile(ctx)
		if err != nil {
			return err
		}
		if report.OK() {
			fmt.Printf("All %s payouts match their donations.\n", humanize.Comma(int64(report.PayoutsChecked)))
			return nil
		}
		for _, d := range report.Discrepancies {
			fmt.Printf("[%s] %s\n", d.Kind, d.Detail)
		}
		return fmt.Errorf("found %d discrepancies", len(report.Discrepancies))
	})
}

func runToken(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	subject := fs.String("subject", "", "Operator the token is issued to")
	scopes := fs.String("scopes", auth.ScopePayoutsRead, "Comma separated scopes")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("-subject is required")
	}

	authorizer, err := newAuthorizer()
	if err != nil {
		return err
	}
	token, err := authorizer.Issue(*subject, strings.Split(*scopes, ","), *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runFlags(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("flags", flag.ExitOnError)
	set := fs.String("set", "", "Flag assignment, as name=value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *set != "" {
		name, raw, ok := strings.Cut(*set, "=")
		if !ok {
			return errors.New("-set expects name=value")
		}
		if err := config.SetFlag(ctx, name, raw); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FLAG\tVALUE\tDESCRIPTION")
	for _, info := range config.Flags() {
		fmt.Fprintf(w, "%s\t%v\t%s\n", info.Name, info.Value, info.Description)
	}
	return w.Flush()
}

func parseIDs(raw string) ([]int, error) {
	var ids []int
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid donation ID %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func nonprofitLabel(id int, np *givemart.NonprofitBrief) string {
	if np == nil || np.Name == "" {
		return "#" + strconv.Itoa(id)
	}
	return fmt.Sprintf("%s (#%d)", np.Name, id)
}
