package review

import "leafmart.dev/catalog/internal/db"

// Operation is one operator action on a review flag.
type Operation string

const (
	OpApprove         Operation = "approve"
	OpReject          Operation = "reject"
	OpDismiss         Operation = "dismiss"
	OpClean           Operation = "clean_and_activate"
	OpDeleteProduct   Operation = "delete_flagged_product"
	OpMergeDuplicate  Operation = "merge_duplicate"
	OpRejectAutoMerge Operation = "reject_auto_merge"
)

// transitions is the full state machine: state -> allowed operation ->
// next state. Anything not listed here is rejected, which is what
// keeps a resolved flag resolved exactly once.
var transitions = map[db.FlagStatus]map[Operation]db.FlagStatus{
	db.FlagStatusPending: {
		OpApprove:        db.FlagStatusApproved,
		OpReject:         db.FlagStatusRejected,
		OpDismiss:        db.FlagStatusDismissed,
		OpClean:          db.FlagStatusCleaned,
		OpDeleteProduct:  db.FlagStatusDismissed,
		OpMergeDuplicate: db.FlagStatusMerged,
	},
	db.FlagStatusAutoMerged: {
		OpRejectAutoMerge: db.FlagStatusRejected,
		OpDismiss:         db.FlagStatusDismissed,
	},
}

// Next returns the status an operation moves a flag to, or false when
// the operation is not allowed from the current status.
func Next(status db.FlagStatus, op Operation) (db.FlagStatus, bool) {
	next, ok := transitions[status][op]
	return next, ok
}

// Terminal reports whether a flag status has no outgoing transitions.
func Terminal(status db.FlagStatus) bool {
	return len(transitions[status]) == 0
}
