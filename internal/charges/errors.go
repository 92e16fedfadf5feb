package charges

import ierr "github.com/flexprice/flexprice/internal/errors"

var (
	errOpenEndedTierNotLast = ierr.NewError("only the last tier may be open-ended").Mark(ierr.ErrValidation)
	errTiersNotAscending    = ierr.NewError("tiers must be strictly ascending and non-overlapping").Mark(ierr.ErrValidation)
)
