// Package dunningcampaign configures the per-currency thresholds and retry
// cadence the dunning controller applies to overdue invoices.
package dunningcampaign

import (
	"github.com/shopspring/decimal"
)

// DunningCampaign is a tenant-defined dunning policy.
type DunningCampaign struct {
	ID                 string      `db:"id" json:"id"`
	TenantID           string      `db:"tenant_id" json:"tenant_id"`
	Code               string      `db:"code" json:"code"`
	Name               string      `db:"name" json:"name"`
	MaxAttempts        int         `db:"max_attempts" json:"max_attempts"`
	DaysBetweenAttempts int        `db:"days_between_attempts" json:"days_between_attempts"`
	Thresholds         []Threshold `db:"-" json:"thresholds"`
}

// Threshold is the minimum outstanding balance, per currency, that triggers
// a PaymentRequest under this campaign.
type Threshold struct {
	ID                string          `db:"id" json:"id"`
	DunningCampaignID string          `db:"dunning_campaign_id" json:"dunning_campaign_id"`
	Currency          string          `db:"currency" json:"currency"`
	AmountCents       decimal.Decimal `db:"amount_cents" json:"amount_cents"`
}

// ThresholdFor returns the threshold configured for a currency, if any.
func (d *DunningCampaign) ThresholdFor(currency string) (Threshold, bool) {
	for _, t := range d.Thresholds {
		if t.Currency == currency {
			return t, true
		}
	}
	return Threshold{}, false
}
