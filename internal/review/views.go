package review

import (
	"fmt"

	"leafmart.dev/catalog/internal/catalog"
	"leafmart.dev/catalog/internal/db"
)

// target_product_id means different things per flag kind, so the
// manager never reads flag fields directly. Each view checks the kind
// and the fields its operations rely on, and a flag that fails its
// view is malformed input, not a state conflict.

// matchReviewView reads a match flag carrying a scraped snapshot: the
// target is the suggested (or already merged) parent.
type matchReviewView struct {
	targetID int64
	record   catalog.Record
}

func matchReview(flag *db.ReviewFlag) (*matchReviewView, error) {
	if flag.Kind != db.FlagKindMatchReview {
		return nil, fmt.Errorf("%w: expected %s flag, got %s", catalog.ErrInput, db.FlagKindMatchReview, flag.Kind)
	}
	if flag.TargetProductID == nil {
		return nil, fmt.Errorf("%w: match flag has no target product", catalog.ErrInput)
	}
	record, err := catalog.RecordFromSnapshot(flag.Snapshot)
	if err != nil {
		return nil, err
	}
	return &matchReviewView{targetID: *flag.TargetProductID, record: record}, nil
}

func (v *matchReviewView) correctedRecord(edits FieldEdits) (catalog.Record, error) {
	record := v.record
	if err := edits.applyToRecord(&record); err != nil {
		return record, err
	}
	return record, record.Validate()
}

// dataCleanupView reads a cleanup flag: the target is the
// created-but-unpublished product.
type dataCleanupView struct {
	targetID int64
	record   catalog.Record
}

func dataCleanup(flag *db.ReviewFlag) (*dataCleanupView, error) {
	if flag.Kind != db.FlagKindDataCleanup {
		return nil, fmt.Errorf("%w: expected %s flag, got %s", catalog.ErrInput, db.FlagKindDataCleanup, flag.Kind)
	}
	if flag.TargetProductID == nil {
		return nil, fmt.Errorf("%w: cleanup flag has no target product", catalog.ErrInput)
	}
	record, err := catalog.RecordFromSnapshot(flag.Snapshot)
	if err != nil {
		return nil, err
	}
	return &dataCleanupView{targetID: *flag.TargetProductID, record: record}, nil
}

// duplicatePairView reads a duplicate-scan flag naming two existing
// parents; it carries no snapshot.
type duplicatePairView struct {
	targetID    int64
	duplicateID int64
}

func duplicatePair(flag *db.ReviewFlag) (*duplicatePairView, error) {
	if flag.Kind != db.FlagKindMatchReview {
		return nil, fmt.Errorf("%w: expected %s flag, got %s", catalog.ErrInput, db.FlagKindMatchReview, flag.Kind)
	}
	if flag.TargetProductID == nil || flag.DuplicateProductID == nil {
		return nil, fmt.Errorf("%w: flag does not name a duplicate pair", catalog.ErrInput)
	}
	return &duplicatePairView{
		targetID:    *flag.TargetProductID,
		duplicateID: *flag.DuplicateProductID,
	}, nil
}

func (v *duplicatePairView) loserOf(keptProductID int64) (int64, error) {
	switch keptProductID {
	case v.targetID:
		return v.duplicateID, nil
	case v.duplicateID:
		return v.targetID, nil
	default:
		return 0, fmt.Errorf("%w: product %d is not part of this pair", catalog.ErrInput, keptProductID)
	}
}
