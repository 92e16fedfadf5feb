// Package subscription links a customer to a plan under a billing schedule.
package subscription

import (
	"time"

	"github.com/flexprice/flexprice/internal/types"
)

// Subscription is a customer's active enrollment in a Plan.
type Subscription struct {
	ID                  string                     `db:"id" json:"id"`
	TenantID            string                     `db:"tenant_id" json:"tenant_id"`
	ExternalID          string                     `db:"external_id" json:"external_id"`
	CustomerID          string                     `db:"customer_id" json:"customer_id"`
	PlanID              string                     `db:"plan_id" json:"plan_id"`
	Status              types.SubscriptionStatus   `db:"status" json:"status"`
	BillingTime         types.BillingTime          `db:"billing_time" json:"billing_time"`
	TrialPeriodDays      int                       `db:"trial_period_days" json:"trial_period_days"`
	SubscriptionAt      time.Time                  `db:"subscription_at" json:"subscription_at"`
	StartedAt           *time.Time                 `db:"started_at" json:"started_at,omitempty"`
	PayInAdvance        bool                       `db:"pay_in_advance" json:"pay_in_advance"`
	PreviousPlanID      *string                    `db:"previous_plan_id" json:"previous_plan_id,omitempty"`
	OnTerminationAction types.OnTerminationAction   `db:"on_termination_action" json:"on_termination_action"`
	PausedAt            *time.Time                 `db:"paused_at" json:"paused_at,omitempty"`
	ResumedAt           *time.Time                 `db:"resumed_at" json:"resumed_at,omitempty"`
	CurrentPeriodStart  time.Time                  `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd    time.Time                  `db:"current_period_end" json:"current_period_end"`
	types.BaseModel
}

// InTrial reports whether now falls within the subscription's trial window.
func (s *Subscription) InTrial(now time.Time) bool {
	if s.TrialPeriodDays <= 0 {
		return false
	}
	trialEnd := s.SubscriptionAt.AddDate(0, 0, s.TrialPeriodDays)
	return now.Before(trialEnd)
}

// PeriodJustEnded reports whether now has passed CurrentPeriodEnd, meaning
// the scheduler's periodic_invoicing task should generate this period's invoice.
func (s *Subscription) PeriodJustEnded(now time.Time) bool {
	return s.Status == types.SubscriptionStatusActive && !now.Before(s.CurrentPeriodEnd)
}

// IsPaused reports whether the subscription is currently paused.
func (s *Subscription) IsPaused() bool {
	return s.PausedAt != nil && (s.ResumedAt == nil || s.ResumedAt.Before(*s.PausedAt))
}
