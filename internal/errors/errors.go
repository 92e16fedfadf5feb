package errors

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel error kinds from the error-handling design: business logic marks
// errors against these with ErrorBuilder.Mark(); callers classify an error
// with Is<Kind> below. Unlike the old Error.Code string matching, Mark lets
// a rich, hinted, detailed error still compare equal to a bare sentinel.
var (
	// ErrValidation: input violates schema or an invariant. Surfaced as 400.
	ErrValidation = errors.New("validation_error")

	// ErrAlreadyExists: a uniqueness constraint would be violated (duplicate
	// metric/plan code, external_id, non-ingest transaction_id). Surfaced as 409.
	ErrAlreadyExists = errors.New("uniqueness_violation")

	// ErrNotFound: resource missing within the caller's tenant scope. Surfaced as 404.
	ErrNotFound = errors.New("not_found")

	// ErrInvalidState: operation not permitted given the resource's current
	// state (e.g. finalizing a non-draft invoice). Surfaced as 400.
	ErrInvalidState = errors.New("invalid_state")

	// ErrPermissionDenied: caller's credentials don't permit the operation. Surfaced as 403.
	ErrPermissionDenied = errors.New("permission_denied")

	// ErrRateLimited: tenant exceeded its sliding-window quota. Surfaced as 429.
	ErrRateLimited = errors.New("rate_limited")

	// ErrProvider: a payment or integration adapter call failed. Carries a
	// typed cause and triggers payment-request retry scheduling.
	ErrProvider = errors.New("provider_error")

	// ErrTransient: a store/network blip; internal retries are bounded.
	ErrTransient = errors.New("transient_error")

	// ErrIntegrity: an invariant would be broken by the current transaction; it must abort.
	ErrIntegrity = errors.New("integrity_error")

	// ErrDatabase: a persistence failure not otherwise classified.
	ErrDatabase = errors.New("database_error")

	// Retained for exact-match callers that care specifically about version races.
	ErrVersionConflict = errors.New("version_conflict")
)

// HTTPStatus maps a domain error to the status code an HTTP adapter would
// return for it. The router itself is an external collaborator; this mapping
// is what such a router would consult.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool    { return errors.Is(err, ErrAlreadyExists) }
func IsValidation(err error) bool       { return errors.Is(err, ErrValidation) }
func IsInvalidState(err error) bool     { return errors.Is(err, ErrInvalidState) }
func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }
func IsRateLimited(err error) bool      { return errors.Is(err, ErrRateLimited) }
func IsProvider(err error) bool         { return errors.Is(err, ErrProvider) }
func IsTransient(err error) bool        { return errors.Is(err, ErrTransient) }
func IsIntegrity(err error) bool        { return errors.Is(err, ErrIntegrity) }
func IsVersionConflict(err error) bool  { return errors.Is(err, ErrVersionConflict) }

// As re-exports cockroachdb/errors.As so callers never need to import both
// this package and the standard errors package under conflicting names.
func As(err error, target any) bool { return errors.As(err, target) }
