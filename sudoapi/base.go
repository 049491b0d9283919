package sudoapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Yiling-J/theine-go"
	"github.com/givemart/givemart"
	"github.com/givemart/givemart/db"
	"github.com/givemart/givemart/db/memdb"
	"github.com/givemart/givemart/email"
	"github.com/givemart/givemart/integrations/kafka"
	"github.com/givemart/givemart/internal/config"
	"github.com/givemart/givemart/sudoapi/flags"
)

// Store is everything the ledger service needs from persistence. Both the
// PostgreSQL store and the in-memory one satisfy it.
type Store interface {
	AddDonations(ctx context.Context, inputs []*givemart.DonationInput) ([]*givemart.Donation, error)
	Donation(ctx context.Context, id int) (*givemart.Donation, error)
	Donations(ctx context.Context, filter givemart.DonationFilter) ([]*givemart.Donation, error)
	CountDonations(ctx context.Context, filter givemart.DonationFilter) (int, error)

	Payout(ctx context.Context, id int) (*givemart.NonprofitPayout, error)
	Payouts(ctx context.Context, filter givemart.PayoutFilter) ([]*givemart.NonprofitPayout, error)
	CountPayouts(ctx context.Context, filter givemart.PayoutFilter) (int, error)
	WithPayoutTx(ctx context.Context, fn func(tx givemart.PayoutTx) error) error

	PayoutTotals(ctx context.Context) ([]*givemart.PayoutTotals, error)
	SuspectDonations(ctx context.Context) ([]*givemart.Donation, error)

	Nonprofit(ctx context.Context, id int) (*givemart.NonprofitBrief, error)
	AddNonprofit(ctx context.Context, np *givemart.NonprofitBrief) error

	CreateAuditLog(ctx context.Context, msg string, author *string, system bool) (int, error)
	AuditLogs(ctx context.Context, limit, offset int) ([]*givemart.AuditLog, error)
	AuditLogCount(ctx context.Context) (int, error)

	Close() error
}

var (
	_ Store = &db.DB{}
	_ Store = &memdb.DB{}
)

type BaseAPI struct {
	db        Store
	mailer    givemart.Mailer
	publisher givemart.EventPublisher

	nonprofitCache *theine.LoadingCache[int, *givemart.NonprofitBrief]

	logChan chan *logEntry

	// background tracks best-effort work started after a payout commits.
	background sync.WaitGroup

	now func() time.Time
}

func (s *BaseAPI) Start(ctx context.Context) {
	go s.ingestAuditLogs(ctx)
	if interval := flags.ReconcileIntervalMinutes.Value(); interval > 0 {
		go s.reconcileJob(ctx, time.Duration(interval)*time.Minute)
	}
}

func (s *BaseAPI) Close() error {
	s.background.Wait()

	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("couldn't close event publisher: %w", err))
		}
	}
	s.nonprofitCache.Close()
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("couldn't close DB: %w", err))
	}
	return errors.Join(errs...)
}

// Store gives access to the underlying store, for seeding and operator tools.
func (s *BaseAPI) Store() Store {
	return s.db
}

// GetBaseAPI builds the service over an existing store. mailer and publisher may be nil.
func GetBaseAPI(store Store, mailer givemart.Mailer, publisher givemart.EventPublisher) (*BaseAPI, error) {
	base := &BaseAPI{
		db:        store,
		mailer:    mailer,
		publisher: publisher,

		logChan: make(chan *logEntry, 50),

		now: time.Now,
	}
	npCache, err := theine.NewBuilder[int, *givemart.NonprofitBrief](1000).BuildWithLoader(func(ctx context.Context, id int) (theine.Loaded[*givemart.NonprofitBrief], error) {
		np, err := base.db.Nonprofit(ctx, id)
		if err != nil {
			return theine.Loaded[*givemart.NonprofitBrief]{}, err
		}
		// Misses are not cached, the catalog may add the nonprofit later.
		if np == nil {
			return theine.Loaded[*givemart.NonprofitBrief]{}, errNonprofitMissing
		}
		return theine.Loaded[*givemart.NonprofitBrief]{
			Value: np,
			Cost:  1,
			TTL:   5 * time.Minute,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not build nonprofit cache: %w", err)
	}
	base.nonprofitCache = npCache
	return base, nil
}

// InitializeBaseAPI connects to the configured PostgreSQL database, or uses
// an in-memory ledger if memory is set.
func InitializeBaseAPI(ctx context.Context, memory bool) (*BaseAPI, error) {
	var mailer givemart.Mailer
	if config.Email.Enabled {
		m, err := email.NewMailer()
		if err != nil {
			slog.WarnContext(ctx, "Couldn't initialize mailer. Make sure you entered the correct information", slog.Any("err", err))
		} else {
			mailer = m
		}
	}

	var publisher givemart.EventPublisher
	if config.Kafka.Enabled {
		publisher = kafka.NewPublisher(config.Kafka.Brokers, config.Kafka.Topic)
	}

	if memory {
		slog.WarnContext(ctx, "Using the in-memory ledger, nothing will be persisted")
		return GetBaseAPI(memdb.New(), mailer, publisher)
	}

	dbClient, err := db.NewPSQL(ctx, config.Common.DBDSN, db.Options{
		LogQueries:   flags.LogDBQueries.Value(),
		CountQueries: flags.CountDBQueries.Value(),
		Trace:        flags.OtelEnabled.Value(),
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to DB: %w", err)
	}
	slog.InfoContext(ctx, "Connected to DB")

	if flags.MigrateOnStart.Value() {
		if err := dbClient.RunMigrations(ctx); err != nil {
			dbClient.Close()
			return nil, fmt.Errorf("couldn't run migrations: %w", err)
		}
	}

	return GetBaseAPI(dbClient, mailer, publisher)
}

func InitQueryCounter(ctx context.Context) context.Context {
	return db.InitContextCounter(ctx)
}

func GetQueryCounter(ctx context.Context) int64 {
	return db.GetContextQueryCount(ctx)
}
