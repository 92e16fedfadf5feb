// Package plan defines a subscribable pricing plan and its charges.
package plan

import (
	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/types"
)

// Plan is a tenant-scoped pricing plan: a flat recurring fee plus any
// number of usage-based Charges.
type Plan struct {
	ID              string                 `db:"id" json:"id"`
	TenantID        string                 `db:"tenant_id" json:"tenant_id"`
	Code            string                 `db:"code" json:"code"`
	Name            string                 `db:"name" json:"name"`
	Interval        types.BillingInterval  `db:"interval" json:"interval"`
	AmountCents     decimal.Decimal        `db:"amount_cents" json:"amount_cents"`
	Currency        string                 `db:"currency" json:"currency"`
	TrialPeriodDays int                    `db:"trial_period_days" json:"trial_period_days"`
	types.BaseModel
}
