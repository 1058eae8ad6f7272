package catalog

import "errors"

var (
	// ErrInput marks a scraped record the engine cannot use (for
	// example, a missing name). The record is skipped and logged; the
	// run continues.
	ErrInput = errors.New("invalid input record")

	// ErrConflict marks a flag resolution whose pre-state no longer
	// matches, such as approving an already-approved flag.
	ErrConflict = errors.New("state conflict")

	// ErrIntegrity marks a parent/variant contract violation: a
	// variant under a non-parent, or a price attached to a parent.
	// Never auto-corrected.
	ErrIntegrity = errors.New("integrity violation")
)
