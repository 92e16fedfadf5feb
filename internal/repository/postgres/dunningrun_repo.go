package postgres

import (
	"context"
	"time"

	domaindc "github.com/flexprice/flexprice/internal/domain/dunningcampaign"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/postgres"
	"github.com/flexprice/flexprice/internal/types"
)

// CustomerLister implements dunningrun.CustomerLister.
type CustomerLister struct {
	db postgres.IClient
}

// NewCustomerLister builds a CustomerLister.
func NewCustomerLister(db postgres.IClient) *CustomerLister {
	return &CustomerLister{db: db}
}

func (r *CustomerLister) WithOverdueInvoices(ctx context.Context, tenantID string, now time.Time) ([]string, error) {
	const q = `
		SELECT DISTINCT customer_id FROM invoices
		WHERE tenant_id = $1 AND status = $2 AND due_date < $3`
	var ids []string
	if err := r.db.Querier(ctx).SelectContext(ctx, &ids, q, tenantID, types.InvoiceStatusFinalized, now); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to list customers with overdue invoices").Mark(ierr.ErrDatabase)
	}
	return ids, nil
}

// DunningCampaignRepository implements dunningrun.CampaignRepository.
type DunningCampaignRepository struct {
	db postgres.IClient
}

// NewDunningCampaignRepository builds a DunningCampaignRepository.
func NewDunningCampaignRepository(db postgres.IClient) *DunningCampaignRepository {
	return &DunningCampaignRepository{db: db}
}

// DefaultCampaign returns the tenant's single dunning campaign. A tenant is
// expected to define exactly one; the oldest row wins if more exist.
func (r *DunningCampaignRepository) DefaultCampaign(ctx context.Context, tenantID string) (*domaindc.DunningCampaign, error) {
	const q = `SELECT * FROM dunning_campaigns WHERE tenant_id = $1 ORDER BY created_at ASC LIMIT 1`
	var campaign domaindc.DunningCampaign
	if err := r.db.Querier(ctx).GetContext(ctx, &campaign, q, tenantID); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load dunning campaign").Mark(ierr.ErrNotFound)
	}
	thresholds, err := r.thresholdsFor(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	campaign.Thresholds = thresholds
	return &campaign, nil
}

func (r *DunningCampaignRepository) thresholdsFor(ctx context.Context, campaignID string) ([]domaindc.Threshold, error) {
	const q = `SELECT * FROM dunning_campaign_thresholds WHERE dunning_campaign_id = $1`
	var thresholds []domaindc.Threshold
	if err := r.db.Querier(ctx).SelectContext(ctx, &thresholds, q, campaignID); err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load dunning campaign thresholds").Mark(ierr.ErrDatabase)
	}
	return thresholds, nil
}
