package core

import "errors"

// Processing outcomes for a delivered activity. Absorbed conditions
// (duplicates, degraded mirrors) never surface to the deliverer; the
// rest reject the delivery without touching already-committed state.
var (
	ErrDuplicateActivity    = errors.New("activity already processed")
	ErrActorResolutionFailed = errors.New("actor resolution failed")
	ErrRelationshipConflict = errors.New("follow relationship already exists")
	ErrMirrorFetchFailed    = errors.New("remote object fetch failed")
	ErrOwnershipMismatch    = errors.New("activity actor does not own the object")
	ErrValidationFailed     = errors.New("object validation failed")
	ErrStoreUnavailable     = errors.New("store unavailable")

	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// IsRejection reports whether err rejects the delivery itself, as
// opposed to a transient infrastructure failure worth retrying.
func IsRejection(err error) bool {
	return errors.Is(err, ErrActorResolutionFailed) ||
		errors.Is(err, ErrRelationshipConflict) ||
		errors.Is(err, ErrOwnershipMismatch) ||
		errors.Is(err, ErrValidationFailed)
}
