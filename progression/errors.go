/*
errors.go - Centralized error types for the progression engine

PURPOSE:
  All error classes in one place. Callers branch on class, not message:
  validation errors are rejected before anything is written and are safe
  to surface to clients; conflicts are resolved by re-reading state and
  retrying; storage errors are retryable.

ERROR CATEGORIES:
  1. Validation errors - event rejected against catalog/current state
  2. Conflict errors - duplicate request id or sequence collision
  3. Storage errors - persistence failures (wrapped by stores)

USAGE:
    if progression.IsValidation(err) {
        // 409 to the client; ledger untouched
    }

SEE ALSO:
  - engine.go: Validate produces these
  - api/handlers.go: maps classes to HTTP status codes
*/
package progression

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownAchievement is returned when a grant names an achievement
	// that is not in the catalog.
	ErrUnknownAchievement = errors.New("unknown achievement")

	// ErrInvalidDelta is returned when a grant carries a delta <= 0.
	ErrInvalidDelta = errors.New("invalid delta")

	// ErrUnknownReward is returned when a redemption names a reward that is
	// not in the catalog.
	ErrUnknownReward = errors.New("unknown reward")

	// ErrRewardUnavailable is returned when the named reward exists but is
	// currently switched off.
	ErrRewardUnavailable = errors.New("reward unavailable")

	// ErrInsufficientPoints is returned when the balance does not cover the
	// reward cost at admission time.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrMissingRequestID is returned when a submission carries no
	// idempotency token. Retries cannot be deduplicated without one.
	ErrMissingRequestID = errors.New("missing request id")

	// ErrDuplicateRequestID is returned by stores when the request id was
	// already applied for this user. Expected behavior for retries.
	ErrDuplicateRequestID = errors.New("duplicate request id")

	// ErrSequenceConflict is returned when an append carries a sequence
	// number that is not the next one for the user.
	ErrSequenceConflict = errors.New("sequence conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientPointsError reports how short the balance is.
type InsufficientPointsError struct {
	Balance   int64
	Cost      int64
	Shortfall int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: balance %d, cost %d, short %d",
		e.Balance, e.Cost, e.Shortfall)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether the error is a pre-append rejection.
// Validation failures never touch the ledger.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnknownAchievement) ||
		errors.Is(err, ErrInvalidDelta) ||
		errors.Is(err, ErrUnknownReward) ||
		errors.Is(err, ErrRewardUnavailable) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrMissingRequestID)
}

// IsConflict reports whether the error is an idempotency or ordering clash,
// recoverable by re-fetching state and retrying.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateRequestID) ||
		errors.Is(err, ErrSequenceConflict)
}

// IsRetryable reports whether a retry with the same request id is safe and
// might succeed.
func IsRetryable(err error) bool {
	return err != nil && !IsValidation(err) && !errors.Is(err, ErrDuplicateRequestID)
}

// Reason returns the stable machine-readable code for an error, used in API
// responses.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownAchievement):
		return "unknown_achievement"
	case errors.Is(err, ErrInvalidDelta):
		return "invalid_delta"
	case errors.Is(err, ErrUnknownReward):
		return "unknown_reward"
	case errors.Is(err, ErrRewardUnavailable):
		return "reward_unavailable"
	case errors.Is(err, ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, ErrMissingRequestID):
		return "missing_request_id"
	case errors.Is(err, ErrDuplicateRequestID):
		return "duplicate_request_id"
	case errors.Is(err, ErrSequenceConflict):
		return "sequence_conflict"
	default:
		return "internal"
	}
}
