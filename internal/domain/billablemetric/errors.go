package billablemetric

import ierr "github.com/flexprice/flexprice/internal/errors"

var (
	errFieldNameRequired     = ierr.NewError("field_name is required for this aggregation type").Mark(ierr.ErrValidation)
	errExpressionRequired    = ierr.NewError("expression is required for custom aggregation").Mark(ierr.ErrValidation)
	errRecurringNotSupported = ierr.NewError("recurring is only valid with count, max, or latest aggregation").Mark(ierr.ErrValidation)
)
