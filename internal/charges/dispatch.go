package charges

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	ierr "github.com/flexprice/flexprice/internal/errors"
	"github.com/flexprice/flexprice/internal/types"
)

// Input is what the rating service hands to Calculate for one charge on one
// invoicing period: the aggregated unit count, the aggregated transaction
// total (only meaningful for the percentage models), the matching event
// count, and the charge's raw JSON model parameters.
type Input struct {
	Model          types.ChargeModel
	Units          decimal.Decimal
	TotalAmount    decimal.Decimal
	EventCount     int
	ModelParameters json.RawMessage
}

// Calculate dispatches to the pure calculator matching Model, decoding
// ModelParameters into that model's parameter struct. It never mutates
// input and never rounds; rounding is applied once, at the fee boundary, by
// the caller.
func Calculate(in Input) (decimal.Decimal, error) {
	switch in.Model {
	case types.ChargeModelStandard:
		var p StandardParams
		if err := decodeParams(in.ModelParameters, &p); err != nil {
			return decimal.Zero, err
		}
		return Standard(in.Units, p), nil

	case types.ChargeModelPackage:
		var p PackageParams
		if err := decodeParams(in.ModelParameters, &p); err != nil {
			return decimal.Zero, err
		}
		return Package(in.Units, p), nil

	case types.ChargeModelGraduated:
		var p TieredParams
		if err := decodeParams(in.ModelParameters, &p); err != nil {
			return decimal.Zero, err
		}
		if err := ValidateTiers(p.Tiers); err != nil {
			return decimal.Zero, err
		}
		return Graduated(in.Units, p), nil

	case types.ChargeModelVolume:
		var p TieredParams
		if err := decodeParams(in.ModelParameters, &p); err != nil {
			return decimal.Zero, err
		}
		if err := ValidateTiers(p.Tiers); err != nil {
			return decimal.Zero, err
		}
		return Volume(in.Units, p), nil

	case types.ChargeModelPercentage:
		var p PercentageParams
		if err := decodeParams(in.ModelParameters, &p); err != nil {
			return decimal.Zero, err
		}
		return Percentage(in.TotalAmount, in.EventCount, p), nil

	case types.ChargeModelGraduatedPercentage:
		var p GraduatedPercentageParams
		if err := decodeParams(in.ModelParameters, &p); err != nil {
			return decimal.Zero, err
		}
		return GraduatedPercentage(in.TotalAmount, p), nil

	default:
		return decimal.Zero, ierr.NewError("unknown charge model").
			WithReportableDetails(map[string]any{"charge_model": string(in.Model)}).
			Mark(ierr.ErrValidation)
	}
}

func decodeParams(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return ierr.WithError(err).
			WithMessage("invalid charge model parameters").
			Mark(ierr.ErrValidation)
	}
	return nil
}
