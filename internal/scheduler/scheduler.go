// Package scheduler drives the four periodic tasks of spec §4.10 on cron
// cadences, fanning each tick out across tenants with bounded concurrency
// and a persisted lease so a double-run (e.g. two process instances firing
// the same minute) cannot duplicate work.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/pool"

	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/logger"
)

// TaskName identifies one of the four periodic tasks, used as part of a
// lease's composite key.
type TaskName string

const (
	TaskPeriodicInvoicing TaskName = "periodic_invoicing"
	TaskTrialExpiry       TaskName = "trial_expiry"
	TaskDunningTick       TaskName = "dunning_tick"
	TaskWebhookRetry      TaskName = "webhook_retry"
)

// TenantLister supplies the tenants a cron tick fans out across.
type TenantLister interface {
	ListActiveTenants(ctx context.Context) ([]string, error)
}

// LeaseRepository guards a (tenant, task, period) triple so the same
// scheduled period is never processed twice, even across overlapping
// process instances. Period is the run's canonical timestamp truncated to
// the minute.
type LeaseRepository interface {
	Acquire(ctx context.Context, tenantID string, task TaskName, period time.Time) (bool, error)
}

// Task is one periodic unit of work for a single tenant.
type Task func(ctx context.Context, tenantID string) error

// Scheduler wires cron cadences to per-tenant fan-out.
type Scheduler struct {
	cron        *cron.Cron
	tenants     TenantLister
	leases      LeaseRepository
	concurrency int
	logger      *logger.Logger
}

// New builds a Scheduler. Call Register for each of the four tasks, then Start.
func New(tenants TenantLister, leases LeaseRepository, concurrency int, logger *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		tenants:     tenants,
		leases:      leases,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Register schedules task under name at the given standard 5-field cron
// spec, fanning each tick out across every active tenant.
func (s *Scheduler) Register(spec string, name TaskName, task Task) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runTick(context.Background(), name, task)
	})
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to register scheduled task").WithReportableDetails(map[string]any{"task": string(name), "spec": spec}).Mark(ierr.ErrValidation)
	}
	return nil
}

func (s *Scheduler) runTick(ctx context.Context, name TaskName, task Task) {
	now := time.Now()
	period := now.Truncate(time.Minute)

	tenants, err := s.tenants.ListActiveTenants(ctx)
	if err != nil {
		s.logger.Errorw("scheduler failed to list tenants", "task", name, "error", err)
		return
	}

	p := pool.New().WithMaxGoroutines(s.concurrency)
	for _, tenantID := range tenants {
		tenantID := tenantID
		p.Go(func() {
			acquired, err := s.leases.Acquire(ctx, tenantID, name, period)
			if err != nil {
				s.logger.Errorw("scheduler lease acquisition failed", "task", name, "tenant_id", tenantID, "error", err)
				return
			}
			if !acquired {
				return // another run already owns this (tenant, task, period)
			}
			if err := task(ctx, tenantID); err != nil {
				s.logger.Errorw("scheduled task failed", "task", name, "tenant_id", tenantID, "error", err)
			}
		})
	}
	p.Wait()
}

// globalLeaseTenant is the lease key used by RegisterGlobal tasks, which
// have no tenant to scope against but still need single-flight protection
// across overlapping process instances.
const globalLeaseTenant = "_global"

// GlobalTask is one periodic unit of work with no tenant scope.
type GlobalTask func(ctx context.Context) error

// RegisterGlobal schedules task at the given cron spec as a single
// tenant-agnostic run per tick, guarded by the same lease mechanism as
// Register so two process instances can't both redeliver the same batch.
// Used for webhook_retry (spec §4.9), whose outbox scan is not
// tenant-partitioned at the query level.
func (s *Scheduler) RegisterGlobal(spec string, name TaskName, task GlobalTask) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		period := time.Now().Truncate(time.Minute)
		acquired, err := s.leases.Acquire(ctx, globalLeaseTenant, name, period)
		if err != nil {
			s.logger.Errorw("scheduler lease acquisition failed", "task", name, "error", err)
			return
		}
		if !acquired {
			return
		}
		if err := task(ctx); err != nil {
			s.logger.Errorw("scheduled task failed", "task", name, "error", err)
		}
	})
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to register scheduled task").WithReportableDetails(map[string]any{"task": string(name), "spec": spec}).Mark(ierr.ErrValidation)
	}
	return nil
}

// Start begins running registered cron jobs. Non-blocking.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels the scheduler between subtasks (spec §5's "cancellable
// between subtasks"): in-flight per-tenant tasks finish, but no new cron
// ticks fire after this returns.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }
