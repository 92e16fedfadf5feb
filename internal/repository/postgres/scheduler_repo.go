package postgres

import (
	"context"
	"time"

	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/scheduler"
	"github.com/flexprice/flexprice/internal/types"
)

// TenantLister implements scheduler.TenantLister over the organizations table.
type TenantLister struct {
	db postgres.IClient
}

// NewTenantLister builds a TenantLister.
func NewTenantLister(db postgres.IClient) *TenantLister {
	return &TenantLister{db: db}
}

func (r *TenantLister) ListActiveTenants(ctx context.Context) ([]string, error) {
	const q = `SELECT id FROM organizations WHERE status = $1`
	var ids []string
	if err := r.db.Querier(ctx).SelectContext(ctx, &ids, q, types.StatusActive); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to list active tenants").Mark(ierr.ErrDatabase)
	}
	return ids, nil
}

// LeaseRepository implements scheduler.LeaseRepository with a unique
// constraint on (tenant_id, task, period): the first writer wins the lease;
// a later writer's insert for the same triple hits ON CONFLICT DO NOTHING,
// affects no row, and Acquire reports the period already claimed (false).
type LeaseRepository struct {
	db postgres.IClient
}

// NewLeaseRepository builds a LeaseRepository.
func NewLeaseRepository(db postgres.IClient) *LeaseRepository {
	return &LeaseRepository{db: db}
}

func (r *LeaseRepository) Acquire(ctx context.Context, tenantID string, task scheduler.TaskName, period time.Time) (bool, error) {
	const q = `
		INSERT INTO scheduler_leases (tenant_id, task, period, acquired_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, task, period) DO NOTHING`
	result, err := r.db.Querier(ctx).ExecContext(ctx, q, tenantID, string(task), period, time.Now())
	if err != nil {
		return false, ierr.WithError(err).WithMessage("failed to acquire scheduler lease").Mark(ierr.ErrDatabase)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, ierr.WithError(err).WithMessage("failed to read lease acquisition result").Mark(ierr.ErrDatabase)
	}
	return affected == 1, nil
}
