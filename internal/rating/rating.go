// Package rating turns aggregated usage into Fees: one per Charge, one for
// the subscription's flat recurring amount, and a corrective commitment fee
// when usage falls short of a minimum commit.
package rating

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexprice/flexprice/internal/aggregation"
	"github.com/flexprice/flexprice/internal/charges"
	"github.com/flexprice/flexprice/internal/domain/billablemetric"
	"github.com/flexprice/flexprice/internal/domain/charge"
	"github.com/flexprice/flexprice/internal/domain/event"
	"github.com/flexprice/flexprice/internal/domain/fee"
	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/logger"
	"github.com/flexprice/flexprice/internal/types"
)

// EventSource is the read side of the event store: it returns every event
// matching a metric code for a customer within a window, with an optional
// property filter pushed down where the store can apply it.
type EventSource interface {
	Find(ctx context.Context, code, externalCustomerID string, from, to time.Time, propertyFilters map[string][]string) ([]*event.Event, error)
}

// ChargeInput bundles a Charge with the metric and candidate filters it
// needs rated against one billing period.
type ChargeInput struct {
	Charge  *charge.Charge
	Metric  *billablemetric.BillableMetric
	Filters []charge.Filter // evaluated in slice order; first match wins (spec §4.2)
}

// Service computes Fees for a billing period.
type Service struct {
	events EventSource
	logger *logger.Logger
}

// NewService builds a rating Service over the given event source.
func NewService(events EventSource, logger *logger.Logger) *Service {
	return &Service{events: events, logger: logger}
}

// RateCharge aggregates usage for one Charge over [periodStart, periodEnd)
// and prices it through the charge's model, returning a fee_type=charge Fee.
func (s *Service) RateCharge(ctx context.Context, in ChargeInput, subscriptionID, customerID, externalCustomerID string, periodStart, periodEnd time.Time) (*fee.Fee, error) {
	if err := in.Metric.Validate(); err != nil {
		return nil, err
	}

	events, err := s.events.Find(ctx, in.Metric.Code, externalCustomerID, periodStart, periodEnd, nil)
	if err != nil {
		return nil, ierr.WithError(err).WithMessage("failed to load events for rating").Mark(ierr.ErrDatabase)
	}

	candidates := make([]aggregation.Filter, 0, len(in.Filters))
	for _, f := range in.Filters {
		values := make(map[string]string, len(f.Values))
		for _, v := range f.Values {
			values[v.MetricFilterKey] = v.Value
		}
		candidates = append(candidates, aggregation.Filter{Values: values})
	}

	selected := events
	if len(candidates) > 0 {
		selected = make([]*event.Event, 0, len(events))
		for _, e := range events {
			if _, ok := aggregation.SelectFilter(e, candidates); ok {
				selected = append(selected, e)
			}
		}
	}

	metric := aggregation.Metric{
		AggregationType:   in.Metric.AggregationType,
		FieldName:         in.Metric.FieldName,
		Rounding:          in.Metric.RoundingFunction,
		RoundingPrecision: in.Metric.RoundingPrecision,
	}
	result, err := aggregation.Aggregate(selected, metric, aggregation.Filter{})
	if err != nil {
		return nil, err
	}

	amount, err := charges.Calculate(charges.Input{
		Model:           in.Charge.ChargeModel,
		Units:           result.Value,
		TotalAmount:     result.Value,
		EventCount:      result.EventCount,
		ModelParameters: in.Charge.ModelParameters,
	})
	if err != nil {
		return nil, err
	}
	amount = clampAmount(amount, in.Charge.MinAmountCents, in.Charge.MaxAmountCents)

	f := fee.NewChargeFee(in.Charge.ID, subscriptionID, customerID, result.Value, result.EventCount, amount)
	return f, nil
}

// RateSubscriptionFee produces the flat fee_type=subscription Fee for a
// plan's recurring amount. The amount is used as given; no proration is
// applied for a partial period.
func RateSubscriptionFee(subscriptionID, customerID string, amount decimal.Decimal) *fee.Fee {
	return &fee.Fee{
		SubscriptionID:   &subscriptionID,
		CustomerID:       customerID,
		FeeType:          types.FeeTypeSubscription,
		Units:            decimal.NewFromInt(1),
		UnitAmountCents:  amount,
		AmountCents:      amount,
		TotalAmountCents: amount,
		PaymentStatus:    types.FeePaymentStatusPending,
	}
}

// RateCommitment returns a fee_type=commitment corrective Fee when the sum
// of a period's other fees falls short of commitmentAmount, topping it up
// to exactly that floor. Returns nil when no correction is needed.
func RateCommitment(subscriptionID, customerID string, commitmentID string, otherFees []*fee.Fee, commitmentAmount decimal.Decimal) *fee.Fee {
	sum := decimal.Zero
	for _, f := range otherFees {
		sum = sum.Add(f.AmountCents)
	}
	if sum.GreaterThanOrEqual(commitmentAmount) {
		return nil
	}
	shortfall := commitmentAmount.Sub(sum)
	return &fee.Fee{
		SubscriptionID:   &subscriptionID,
		CustomerID:       customerID,
		CommitmentID:     &commitmentID,
		FeeType:          types.FeeTypeCommitment,
		Units:            decimal.Zero,
		UnitAmountCents:  decimal.Zero,
		AmountCents:      shortfall,
		TotalAmountCents: shortfall,
		PaymentStatus:    types.FeePaymentStatusPending,
	}
}

func clampAmount(amount decimal.Decimal, min, max *string) decimal.Decimal {
	if min != nil {
		if m, err := decimal.NewFromString(*min); err == nil && amount.LessThan(m) {
			amount = m
		}
	}
	if max != nil {
		if m, err := decimal.NewFromString(*max); err == nil && amount.GreaterThan(m) {
			amount = m
		}
	}
	return amount
}
