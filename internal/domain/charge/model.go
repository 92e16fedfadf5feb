// Package charge attaches a billable metric to a plan under one of the six
// pricing schemes.
package charge

import (
	"encoding/json"

	"github.com/flexprice/flexprice/internal/types"
)

// Charge attaches a BillableMetric to a Plan under a pricing scheme.
type Charge struct {
	ID               string            `db:"id" json:"id"`
	TenantID         string            `db:"tenant_id" json:"tenant_id"`
	PlanID           string            `db:"plan_id" json:"plan_id"`
	MetricID         string            `db:"metric_id" json:"metric_id"`
	ChargeModel      types.ChargeModel `db:"charge_model" json:"charge_model"`
	ModelParameters  json.RawMessage   `db:"model_parameters" json:"model_parameters"`
	MinAmountCents   *string           `db:"min_amount_cents" json:"min_amount_cents,omitempty"` // optional clamp, decimal string
	MaxAmountCents   *string           `db:"max_amount_cents" json:"max_amount_cents,omitempty"`
	types.BaseModel
}

// Filter selects an event subset for a Charge via one or more FilterValues.
// Filters are evaluated in insertion order; the first match wins (spec §4.2).
type Filter struct {
	ID       string        `db:"id" json:"id"`
	ChargeID string        `db:"charge_id" json:"charge_id"`
	Values   []FilterValue `db:"-" json:"values"`
}

// FilterValue references one BillableMetricFilter key and the value it must equal.
type FilterValue struct {
	ID               string `db:"id" json:"id"`
	ChargeFilterID   string `db:"charge_filter_id" json:"charge_filter_id"`
	MetricFilterKey  string `db:"metric_filter_key" json:"metric_filter_key"`
	Value            string `db:"value" json:"value"`
}
