package domain

import "errors"

// Sentinel errors for the matching engine's bill-boundary error
// taxonomy. The orchestrator recovers at these boundaries; none of
// them propagate past a single bill's processing.
var (
	ErrBillNotFound         = errors.New("bill not found")
	ErrBillEmpty            = errors.New("bill has no line items")
	ErrCandidateQueryFailed = errors.New("candidate query failed")
	ErrPersistFailed        = errors.New("match record persistence failed")
	ErrBillTimeout          = errors.New("bill processing deadline exceeded")
	ErrNumericOverflow      = errors.New("numeric value exceeds declared scale")

	ErrRunTimeout       = errors.New("match run deadline exceeded")
	ErrValidationFailed = errors.New("invalid batch match request")

	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTenantInactive      = errors.New("tenant is inactive")
	ErrUserInactive        = errors.New("user is inactive")
	ErrDuplicateTenantSlug = errors.New("tenant slug already in use")
	ErrDuplicateEmail      = errors.New("email already in use")
)
