package main

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/flexprice/flexprice/internal/billingrun"
	"github.com/flexprice/flexprice/internal/config"
	"github.com/flexprice/flexprice/internal/dunning"
	"github.com/flexprice/flexprice/internal/dunningrun"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/eventstore"
	chstore "github.com/flexprice/flexprice/internal/eventstore/clickhouse"
	"github.com/flexprice/flexprice/internal/idempotency"
	"github.com/flexprice/flexprice/internal/invoicing"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/notify"
	"github.com/flexprice/flexprice/internal/payment"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/ratelimit"
	"github.com/flexprice/flexprice/internal/rating"
	pgrepo "github.com/flexprice/flexprice/internal/repository/postgres"
	"github.com/flexprice/flexprice/internal/scheduler"
	"github.com/flexprice/flexprice/internal/usagealerts"
	"github.com/flexprice/flexprice/internal/validator"
	"github.com/flexprice/flexprice/internal/wallet"
	"github.com/flexprice/flexprice/internal/webhook"
)

func init() {
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			validator.NewValidator,
			config.NewConfig,
			logger.NewLogger,
		),
		postgres.Module(),
		fx.Provide(
			// Repositories
			pgrepo.NewEventRepository,
			pgrepo.NewRatingEventSource,
			pgrepo.NewWalletRepository,
			pgrepo.NewCouponRepository,
			pgrepo.NewTaxResolver,
			pgrepo.NewCreditNoteRepository,
			pgrepo.NewNumberer,
			pgrepo.NewSubscriptionRepository,
			pgrepo.NewPlanRepository,
			pgrepo.NewChargeRepository,
			pgrepo.NewBillableMetricRepository,
			pgrepo.NewDunningInvoiceRepository,
			pgrepo.NewPaymentRequestRepository,
			pgrepo.NewCustomerLister,
			pgrepo.NewDunningCampaignRepository,
			pgrepo.NewSettlementRepository,
			pgrepo.NewCustomerResolver,
			pgrepo.NewWebhookRepository,
			pgrepo.NewTenantLister,
			pgrepo.NewLeaseRepository,
			pgrepo.NewBillableMetricByCodeRepository,
			pgrepo.NewUsageSource,
			pgrepo.NewUsageAlertRepository,
			pgrepo.NewInvoiceRepository,

			// Interface adapters; fx matches providers by their declared
			// return type, so each of these narrows a concrete repository
			// down to the boundary interface one consumer package expects.
			provideRatingEventSource,
			provideWalletRepository,
			provideWalletPublisher,
			provideInvoicingCouponRepository,
			provideInvoicingWalletRepository,
			provideInvoicingTaxResolver,
			provideInvoicingCreditNoteRepository,
			provideInvoicingNumberer,
			provideBillingRunSubscriptionRepository,
			provideBillingRunPlanRepository,
			provideBillingRunChargeRepository,
			provideBillingRunBillableMetricRepository,
			provideDunningInvoiceRepository,
			provideDunningPaymentRequestRepository,
			provideDunningNotifier,
			providePaymentCustomerResolver,
			providePaymentSettlementRepository,
			provideWebhookRepository,
			provideWebhookNotifier,
			provideUsageAlertUsageSource,
			provideUsageAlertRepository,
			provideUsageAlertPublisher,
			provideEventStoreRepository,
			provideColumnarMirror,
			provideSchedulerTenantLister,
			provideSchedulerLeaseRepository,
			provideDunningRunCustomerLister,
			provideDunningRunCampaignRepository,
			provideDunningRunPaymentRequestLister,
			provideInvoicingInvoiceRepository,
			provideBillingRunInvoiceRepository,
			provideBillingRunWalletSettler,
			provideBillingRunPublisher,

			// Domain services
			provideRateLimiter,
			idempotency.NewGenerator,
			rating.NewService,
			provideInvoicingAssembler,
			wallet.NewService,
			dunning.NewController,
			providePaymentStripeAdapter,
			providePaymentRegistry,
			payment.NewProcessor,
			provideWebhookDispatcher,
			usagealerts.NewEvaluator,
			eventstore.NewService,

			// Orchestrators
			billingrun.New,
			dunningrun.New,

			// Scheduler
			provideScheduler,
		),
		fx.Invoke(registerScheduledTasks),
	)
	app.Run()
}

func provideRatingEventSource(s *pgrepo.RatingEventSource) rating.EventSource { return s }

func provideWalletRepository(r *pgrepo.WalletRepository) wallet.Repository { return r }

func provideWalletPublisher(d *webhook.Dispatcher) wallet.Publisher {
	return notify.NewWalletPublisher(d)
}

func provideInvoicingCouponRepository(r *pgrepo.CouponRepository) invoicing.CouponRepository {
	return r
}

func provideInvoicingWalletRepository(r *pgrepo.WalletRepository) invoicing.WalletRepository {
	return r
}

func provideInvoicingTaxResolver(r *pgrepo.TaxResolver) invoicing.TaxResolver { return r }

func provideInvoicingCreditNoteRepository(r *pgrepo.CreditNoteRepository) invoicing.CreditNoteRepository {
	return r
}

func provideInvoicingNumberer(r *pgrepo.Numberer) invoicing.Numberer { return r }

func provideInvoicingInvoiceRepository(r *pgrepo.InvoiceRepository) invoicing.InvoiceRepository {
	return r
}

func provideBillingRunInvoiceRepository(r *pgrepo.InvoiceRepository) billingrun.InvoiceRepository {
	return r
}

func provideBillingRunWalletSettler(s *wallet.Service) invoicing.WalletSettler { return s }

func provideBillingRunPublisher(d *webhook.Dispatcher) billingrun.Publisher {
	return notify.NewInvoicePublisher(d)
}

func provideBillingRunSubscriptionRepository(r *pgrepo.SubscriptionRepository) billingrun.SubscriptionRepository {
	return r
}

func provideBillingRunPlanRepository(r *pgrepo.PlanRepository) billingrun.PlanRepository { return r }

func provideBillingRunChargeRepository(r *pgrepo.ChargeRepository) billingrun.ChargeRepository {
	return r
}

func provideBillingRunBillableMetricRepository(r *pgrepo.BillableMetricRepository) billingrun.BillableMetricRepository {
	return r
}

func provideDunningInvoiceRepository(r *pgrepo.DunningInvoiceRepository) dunning.InvoiceRepository {
	return r
}

func provideDunningPaymentRequestRepository(r *pgrepo.PaymentRequestRepository) dunning.PaymentRequestRepository {
	return r
}

func provideDunningNotifier(l *logger.Logger) dunning.Notifier { return notify.NewDunningNotifier(l) }

func providePaymentCustomerResolver(r *pgrepo.CustomerResolver) payment.CustomerResolver { return r }

func providePaymentSettlementRepository(r *pgrepo.SettlementRepository) payment.SettlementRepository {
	return r
}

func provideWebhookRepository(r *pgrepo.WebhookRepository) webhook.Repository { return r }

func provideWebhookNotifier(l *logger.Logger) webhook.Notifier { return notify.NewWebhookNotifier(l) }

func provideUsageAlertUsageSource(s *pgrepo.UsageSource) usagealerts.UsageSource { return s }

func provideUsageAlertRepository(r *pgrepo.UsageAlertRepository) usagealerts.Repository { return r }

func provideUsageAlertPublisher(d *webhook.Dispatcher) usagealerts.Publisher {
	return notify.NewUsageAlertPublisher(d)
}

func provideEventStoreRepository(r *pgrepo.EventRepository) eventstore.Repository { return r }

// provideColumnarMirror returns nil when ClickHouse isn't configured: the
// relational store stays authoritative. Service.IngestBatch/Find both
// already treat a nil mirror that way (spec §4.1).
func provideColumnarMirror(cfg *config.Configuration, lc fx.Lifecycle, l *logger.Logger) (eventstore.ColumnarMirror, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	store, err := chstore.New(cfg)
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to connect to clickhouse").Mark(ierr.ErrTransient)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			l.Infow("closing clickhouse connection")
			return store.Close()
		},
	})
	return store, nil
}

func provideSchedulerTenantLister(r *pgrepo.TenantLister) scheduler.TenantLister { return r }

func provideSchedulerLeaseRepository(r *pgrepo.LeaseRepository) scheduler.LeaseRepository { return r }

func provideDunningRunCustomerLister(r *pgrepo.CustomerLister) dunningrun.CustomerLister { return r }

func provideDunningRunCampaignRepository(r *pgrepo.DunningCampaignRepository) dunningrun.CampaignRepository {
	return r
}

func provideDunningRunPaymentRequestLister(r *pgrepo.PaymentRequestRepository) dunningrun.PaymentRequestLister {
	return r
}

func provideRateLimiter(cfg *config.Configuration) (*ratelimit.Limiter, error) {
	window, err := time.ParseDuration(cfg.RateLimit.Window)
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("invalid rate limit window").Mark(ierr.ErrValidation)
	}
	return ratelimit.New(cfg.RateLimit.EventsPerMinute, window), nil
}

func provideInvoicingAssembler(
	coupons invoicing.CouponRepository,
	wallets invoicing.WalletRepository,
	taxes invoicing.TaxResolver,
	creditNotes invoicing.CreditNoteRepository,
	numberer invoicing.Numberer,
	invoices invoicing.InvoiceRepository,
	cfg *config.Configuration,
	l *logger.Logger,
) *invoicing.Assembler {
	return invoicing.NewAssembler(coupons, wallets, taxes, creditNotes, numberer, invoices,
		cfg.Billing.InvoiceNumberPrefix, cfg.Billing.DefaultGracePeriodDays, cfg.Billing.DefaultNetPaymentTermDays, l)
}

func providePaymentStripeAdapter(cfg *config.Configuration, l *logger.Logger) *payment.StripeAdapter {
	return payment.NewStripeAdapter(cfg.Providers.StripeSecretKey, l)
}

// providePaymentRegistry wires the Stripe adapter as both the only
// configured provider and the registry's fallback; further provider
// adapters (GoCardless, Adyen) join this variadic list as they are built.
func providePaymentRegistry(stripe *payment.StripeAdapter) *payment.Registry {
	return payment.NewRegistry(stripe.Name(), stripe)
}

func provideWebhookDispatcher(repo webhook.Repository, notifier webhook.Notifier, cfg *config.Configuration, l *logger.Logger) (*webhook.Dispatcher, error) {
	deliveryTimeout, err := time.ParseDuration(cfg.Webhook.DeliveryTimeout)
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("invalid webhook delivery timeout").Mark(ierr.ErrValidation)
	}
	baseBackoff, err := time.ParseDuration(cfg.Webhook.BaseBackoff)
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("invalid webhook base backoff").Mark(ierr.ErrValidation)
	}
	return webhook.NewDispatcher(repo, notifier, deliveryTimeout, baseBackoff, cfg.Webhook.MaxRetries, cfg.Webhook.Workers, l), nil
}

func provideScheduler(tenants scheduler.TenantLister, leases scheduler.LeaseRepository, cfg *config.Configuration, l *logger.Logger) *scheduler.Scheduler {
	return scheduler.New(tenants, leases, cfg.Scheduler.Workers, l)
}

// redeliverBatchSize sizes each webhook_retry tick's batch relative to
// delivery worker concurrency, so a tick keeps all workers saturated
// without scanning an unbounded due-set on a single run.
const redeliverBatchSize = 10

// registerScheduledTasks wires the scheduler's four periodic tasks (spec
// §4.10) to their configured cron cadences and starts the scheduler on fx
// startup, draining in-flight tenant runs on shutdown.
func registerScheduledTasks(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	s *scheduler.Scheduler,
	orchestrator *billingrun.Orchestrator,
	dunningRunner *dunningrun.Runner,
	dispatcher *webhook.Dispatcher,
	l *logger.Logger,
) error {
	if !cfg.Scheduler.Enabled {
		return nil
	}

	if err := s.Register(cfg.Scheduler.PeriodicInvoicingCron, scheduler.TaskPeriodicInvoicing, func(ctx context.Context, tenantID string) error {
		return orchestrator.RunPeriodicInvoicing(ctx, tenantID, time.Now())
	}); err != nil {
		return ierr.WithError(err).WithMessage("failed to register periodic invoicing task").Mark(ierr.ErrValidation)
	}
	if err := s.Register(cfg.Scheduler.TrialExpiryCron, scheduler.TaskTrialExpiry, func(ctx context.Context, tenantID string) error {
		return orchestrator.RunTrialExpiry(ctx, tenantID, time.Now())
	}); err != nil {
		return ierr.WithError(err).WithMessage("failed to register trial expiry task").Mark(ierr.ErrValidation)
	}
	if err := s.Register(cfg.Scheduler.DunningTickCron, scheduler.TaskDunningTick, func(ctx context.Context, tenantID string) error {
		return dunningRunner.Tick(ctx, tenantID, time.Now())
	}); err != nil {
		return ierr.WithError(err).WithMessage("failed to register dunning tick task").Mark(ierr.ErrValidation)
	}
	if err := s.RegisterGlobal(cfg.Scheduler.WebhookRetryCron, scheduler.TaskWebhookRetry, func(ctx context.Context) error {
		return dispatcher.RedeliverDue(ctx, time.Now(), cfg.Webhook.Workers*redeliverBatchSize)
	}); err != nil {
		return ierr.WithError(err).WithMessage("failed to register webhook retry task").Mark(ierr.ErrValidation)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			l.Infow("starting scheduler", "workers", cfg.Scheduler.Workers)
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			l.Infow("stopping scheduler")
			<-s.Stop().Done()
			return nil
		},
	})
	return nil
}
