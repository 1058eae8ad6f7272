package review_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"leafmart.dev/catalog/internal/catalog"
	"leafmart.dev/catalog/internal/catalog/catalogtest"
	"leafmart.dev/catalog/internal/db"
	"leafmart.dev/catalog/internal/globaltime"
	"leafmart.dev/catalog/internal/review"
)

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func int64Ptr(v int64) *int64 { return &v }

func newTestManager(store *catalogtest.MemStore) *review.Manager {
	return review.NewManager(store.RunInTx, zerolog.Nop())
}

func newTestEngine(store *catalogtest.MemStore) *catalog.Engine {
	return catalog.NewEngine(store.RunInTx, catalog.NewScorer(catalog.DefaultAutoMergeThreshold), zerolog.Nop())
}

// seedDirtyProduct runs one dirty record through the engine and
// returns the created parent and its pending cleanup flag.
func seedDirtyProduct(t *testing.T, store *catalogtest.MemStore) (*db.Product, *db.ReviewFlag) {
	t.Helper()
	engine := newTestEngine(store)
	if _, err := engine.ProcessBatch(context.Background(), "disp-a", []catalog.Record{{
		Name:         "Unknown Strain XYZ <b>50% off</b>",
		Price:        floatPtr(0),
		DispensaryID: "disp-a",
	}}); err != nil {
		t.Fatalf("seed batch: %v", err)
	}

	var flag *db.ReviewFlag
	for _, f := range store.Flags {
		flag = f
	}
	if flag == nil || flag.Kind != db.FlagKindDataCleanup {
		t.Fatalf("expected a cleanup flag, got %+v", flag)
	}
	parent, err := store.ProductByID(context.Background(), *flag.TargetProductID)
	if err != nil {
		t.Fatalf("load parent: %v", err)
	}
	return parent, flag
}

func seedMatchFlag(t *testing.T, store *catalogtest.MemStore, status db.FlagStatus, targetID int64, record catalog.Record) *db.ReviewFlag {
	t.Helper()
	snapshot, err := record.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	flag := &db.ReviewFlag{
		FlagUUID:        "flag-" + string(status),
		Kind:            db.FlagKindMatchReview,
		Status:          status,
		TargetProductID: int64Ptr(targetID),
		Snapshot:        snapshot,
	}
	if err := store.CreateFlag(context.Background(), flag); err != nil {
		t.Fatalf("seed flag: %v", err)
	}
	return flag
}

func TestCleanAndActivateAppliesEdits(t *testing.T) {
	t.Parallel()

	store := catalogtest.NewMemStore()
	parent, flag := seedDirtyProduct(t, store)
	manager := newTestManager(store)

	result, err := manager.CleanAndActivate(context.Background(), flag.FlagUUID, review.FieldEdits{
		Name:  strPtr("Strain XYZ"),
		Brand: strPtr("House Farms"),
		Price: floatPtr(35),
	}, "op-1", "fixed name and price")
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if result.Status != db.FlagStatusCleaned {
		t.Fatalf("unexpected status: %s", result.Status)
	}

	updated, err := store.ProductByID(context.Background(), parent.ProductID)
	if err != nil {
		t.Fatalf("reload parent: %v", err)
	}
	if !updated.Active {
		t.Fatalf("cleaned product must be active")
	}
	if updated.Name != "Strain XYZ" {
		t.Fatalf("name edit not applied: %q", updated.Name)
	}
	if updated.Brand == nil || *updated.Brand != "House Farms" {
		t.Fatalf("brand edit not applied: %v", updated.Brand)
	}
	if updated.Category != parent.Category {
		t.Fatalf("unedited category must be unchanged")
	}

	variants, err := store.VariantsOf(context.Background(), parent.ProductID)
	if err != nil {
		t.Fatalf("variants: %v", err)
	}
	if len(variants) != 1 || !variants[0].Active {
		t.Fatalf("variant must be activated, got %+v", variants)
	}
	prices, err := store.PricesOf(context.Background(), variants[0].ProductID)
	if err != nil {
		t.Fatalf("prices: %v", err)
	}
	if len(prices) != 1 || prices[0].Amount != 35 {
		t.Fatalf("price edit not applied, got %+v", prices)
	}

	reloaded, err := store.FlagByUUID(context.Background(), flag.FlagUUID)
	if err != nil {
		t.Fatalf("reload flag: %v", err)
	}
	if reloaded.Status != db.FlagStatusCleaned || reloaded.ResolvedAt == nil {
		t.Fatalf("flag not resolved: %+v", reloaded)
	}
	if reloaded.ResolvedBy == nil || *reloaded.ResolvedBy != "op-1" {
		t.Fatalf("resolved_by not recorded: %v", reloaded.ResolvedBy)
	}
}

// No t.Parallel: the test pins the shared clock.
func TestDismissStampsResolutionTime(t *testing.T) {
	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	globaltime.Freeze(frozen)
	defer globaltime.Unfreeze()

	store := catalogtest.NewMemStore()
	flag := seedMatchFlag(t, store, db.FlagStatusPending, 1, catalog.Record{
		Name:         "Blue Dream",
		DispensaryID: "disp-a",
	})
	manager := newTestManager(store)

	if _, err := manager.Dismiss(context.Background(), flag.FlagUUID, "op-1", ""); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	reloaded, err := store.FlagByUUID(context.Background(), flag.FlagUUID)
	if err != nil {
		t.Fatalf("reload flag: %v", err)
	}
	if reloaded.ResolvedAt == nil || !reloaded.ResolvedAt.Equal(frozen) {
		t.Fatalf("expected resolved_at %v, got %v", frozen, reloaded.ResolvedAt)
	}
	if !reloaded.UpdatedAt.Equal(frozen) {
		t.Fatalf("expected updated_at %v, got %v", frozen, reloaded.UpdatedAt)
	}
}

func TestResolvingTwiceConflicts(t *testing.T) {
	t.Parallel()

	store := catalogtest.NewMemStore()
	_, flag := seedDirtyProduct(t, store)
	manager := newTestManager(store)

	if _, err := manager.Dismiss(context.Background(), flag.FlagUUID, "op-1", ""); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	_, err := manager.Dismiss(context.Background(), flag.FlagUUID, "op-2", "")
	if !errors.Is(err, catalog.ErrConflict) {
		t.Fatalf("expected conflict on second resolve, got %v", err)
	}
	_, err = manager.CleanAndActivate(context.Background(), flag.FlagUUID, review.FieldEdits{}, "op-2", "")
	if !errors.Is(err, catalog.ErrConflict) {
		t.Fatalf("expected conflict for clean on dismissed flag, got %v", err)
	}
}

func TestDeleteFlaggedProductRemovesTree(t *testing.T) {
	t.Parallel()

	store := catalogtest.NewMemStore()
	parent, flag := seedDirtyProduct(t, store)
	manager := newTestManager(store)

	result, err := manager.DeleteFlaggedProduct(context.Background(), flag.FlagUUID, "op-1", "junk listing")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if result.Status != db.FlagStatusDismissed {
		t.Fatalf("unexpected status: %s", result.Status)
	}

	if _, err := store.ProductByID(context.Background(), parent.ProductID); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("parent must be deleted, got %v", err)
	}
	if len(store.Products) != 0 || len(store.Prices) != 0 {
		t.Fatalf("product tree must be fully removed")
	}

	reloaded, err := store.FlagByUUID(context.Background(), flag.FlagUUID)
	if err != nil {
		t.Fatalf("reload flag: %v", err)
	}
	if reloaded.TargetProductID != nil {
		t.Fatalf("target_product_id must be cleared")
	}
	if reloaded.Status != db.FlagStatusDismissed {
		t.Fatalf("unexpected flag status: %s", reloaded.Status)
	}
}

func TestApproveMergesSnapshotIntoTarget(t *testing.T) {
	t.Parallel()

	store := catalogtest.NewMemStore()
	engine := newTestEngine(store)
	if _, err := engine.ProcessBatch(context.Background(), "disp-a", []catalog.Record{{
		Name:         "Blue Dream (3.5g)",
		Brand:        strPtr("Tryke"),
		Price:        floatPtr(40),
		DispensaryID: "disp-a",
	}}); err != nil {
		t.Fatalf("seed batch: %v", err)
	}

	var parent *db.Product
	for _, p := range store.Products {
		if p.IsMaster {
			parent = p
		}
	}

	record := catalog.Record{
		Name:         "Blue Dream (1g)",
		Brand:        strPtr("Tryke"),
		Price:        floatPtr(18),
		DispensaryID: "disp-b",
	}
	flag := seedMatchFlag(t, store, db.FlagStatusPending, parent.ProductID, record)
	manager := newTestManager(store)

	result, err := manager.Approve(context.Background(), flag.FlagUUID, review.FieldEdits{Price: floatPtr(20)}, "op-1", "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if result.Status != db.FlagStatusApproved {
		t.Fatalf("unexpected status: %s", result.Status)
	}

	variants, err := store.VariantsOf(context.Background(), parent.ProductID)
	if err != nil {
		t.Fatalf("variants: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("expected a new 1g variant next to the 3.5g one, got %d", len(variants))
	}
	var oneGram *db.Product
	for i := range variants {
		if variants[i].WeightLabel != nil && *variants[i].WeightLabel == "1g" {
			oneGram = &variants[i]
		}
	}
	if oneGram == nil {
		t.Fatalf("1g variant not created")
	}
	prices, err := store.PricesOf(context.Background(), oneGram.ProductID)
	if err != nil {
		t.Fatalf("prices: %v", err)
	}
	if len(prices) != 1 || prices[0].Amount != 20 || prices[0].DispensaryID != "disp-b" {
		t.Fatalf("corrected price not attached, got %+v", prices)
	}
}

func TestRejectCreatesStandaloneProduct(t *testing.T) {
	t.Parallel()

	store := catalogtest.NewMemStore()
	engine := newTestEngine(store)
	if _, err := engine.ProcessBatch(context.Background(), "disp-a", []catalog.Record{{
		Name:         "Blue Dream (3.5g)",
		Brand:        strPtr("Tryke"),
		Price:        floatPtr(40),
		DispensaryID: "disp-a",
	}}); err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	var parent *db.Product
	for _, p := range store.Products {
		if p.IsMaster {
			parent = p
		}
	}

	record := catalog.Record{
		Name:         "Blue Dream Live Resin (1g)",
		Brand:        strPtr("Other Brand"),
		Price:        floatPtr(25),
		DispensaryID: "disp-b",
	}
	flag := seedMatchFlag(t, store, db.FlagStatusPending, parent.ProductID, record)
	manager := newTestManager(store)

	result, err := manager.Reject(context.Background(), flag.FlagUUID, review.FieldEdits{}, "op-1", "different product")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if result.Status != db.FlagStatusRejected {
		t.Fatalf("unexpected status: %s", result.Status)
	}

	masters := 0
	for _, p := range store.Products {
		if p.IsMaster {
			masters++
			if p.ProductID != parent.ProductID {
				if !p.Active {
					t.Fatalf("reviewed product must be active")
				}
				if p.Name != "Blue Dream Live Resin" {
					t.Fatalf("unexpected name: %q", p.Name)
				}
			}
		}
	}
	if masters != 2 {
		t.Fatalf("expected two parents after reject, got %d", masters)
	}
}

func TestMergeDuplicateMovesEverything(t *testing.T) {
	t.Parallel()

	store := catalogtest.NewMemStore()
	engine := newTestEngine(store)
	ctx := context.Background()

	if _, err := engine.ProcessBatch(ctx, "disp-a", []catalog.Record{{
		Name:         "Wedding Cake (3.5g)",
		Brand:        strPtr("Cookies"),
		Price:        floatPtr(50),
		DispensaryID: "disp-a",
	}}); err != nil {
		t.Fatalf("seed kept: %v", err)
	}
	keptID := int64(0)
	for _, p := range store.Products {
		if p.IsMaster {
			keptID = p.ProductID
		}
	}

	loser := &db.Product{ProductUUID: "loser", Name: "Weding Cake", Brand: strPtr("Cookies"), IsMaster: true, Active: true}
	if err := store.CreateProduct(ctx, loser); err != nil {
		t.Fatalf("seed loser: %v", err)
	}
	loserVariant, err := catalog.ResolveVariant(ctx, store, loser, &catalog.Weight{Label: "3.5g", Grams: 3.5})
	if err != nil {
		t.Fatalf("loser variant: %v", err)
	}
	if _, err := catalog.AttachPrice(ctx, store, loserVariant, catalog.Record{
		Name: "Weding Cake", Price: floatPtr(48), DispensaryID: "disp-b",
	}); err != nil {
		t.Fatalf("loser price: %v", err)
	}
	store.Reviews[999] = &db.ProductReview{ReviewID: 999, ProductID: loser.ProductID, Rating: 5, Author: "user-1"}

	flag := &db.ReviewFlag{
		FlagUUID:           "dup-flag",
		Kind:               db.FlagKindMatchReview,
		Status:             db.FlagStatusPending,
		TargetProductID:    int64Ptr(keptID),
		DuplicateProductID: int64Ptr(loser.ProductID),
	}
	if err := store.CreateFlag(ctx, flag); err != nil {
		t.Fatalf("seed flag: %v", err)
	}

	manager := newTestManager(store)

	if _, err := manager.MergeDuplicate(ctx, flag.FlagUUID, 424242, "op-1", ""); !errors.Is(err, catalog.ErrInput) {
		t.Fatalf("expected input error for a product outside the pair, got %v", err)
	}

	result, err := manager.MergeDuplicate(ctx, flag.FlagUUID, keptID, "op-1", "same strain")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.Status != db.FlagStatusMerged {
		t.Fatalf("unexpected status: %s", result.Status)
	}

	reloadedLoser, err := store.ProductByID(ctx, loser.ProductID)
	if err != nil {
		t.Fatalf("reload loser: %v", err)
	}
	if reloadedLoser.Active {
		t.Fatalf("loser must be deactivated, not deleted")
	}

	keptVariants, err := store.VariantsOf(ctx, keptID)
	if err != nil {
		t.Fatalf("kept variants: %v", err)
	}
	if len(keptVariants) != 1 {
		t.Fatalf("matching weight must reuse the kept variant, got %d", len(keptVariants))
	}
	prices, err := store.PricesOf(ctx, keptVariants[0].ProductID)
	if err != nil {
		t.Fatalf("prices: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("expected both dispensary prices on the kept variant, got %+v", prices)
	}

	if leftover, err := store.PricesOf(ctx, loserVariant.ProductID); err != nil || len(leftover) != 0 {
		t.Fatalf("loser variant must have no prices left, got %v %v", leftover, err)
	}
	if store.Reviews[999].ProductID != keptID {
		t.Fatalf("review must be re-pointed at the kept product")
	}
}

func TestRejectAutoMergeUnwinds(t *testing.T) {
	t.Parallel()

	store := catalogtest.NewMemStore()
	engine := newTestEngine(store)
	ctx := context.Background()

	if _, err := engine.ProcessBatch(ctx, "disp-a", []catalog.Record{{
		Name:         "Blue Dream (3.5g)",
		Brand:        strPtr("Tryke"),
		Price:        floatPtr(40),
		DispensaryID: "disp-a",
	}}); err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	if _, err := engine.ProcessBatch(ctx, "disp-b", []catalog.Record{{
		Name:         "Blue Dream (3.5g)",
		Brand:        strPtr("Tryke"),
		Price:        floatPtr(42),
		DispensaryID: "disp-b",
	}}); err != nil {
		t.Fatalf("merge batch: %v", err)
	}

	var flag *db.ReviewFlag
	for _, f := range store.Flags {
		if f.Status == db.FlagStatusAutoMerged {
			flag = f
		}
	}
	if flag == nil {
		t.Fatalf("expected an auto_merged audit flag")
	}
	targetID := *flag.TargetProductID

	manager := newTestManager(store)
	result, err := manager.RejectAutoMerge(ctx, flag.FlagUUID, "op-1", "wrong match")
	if err != nil {
		t.Fatalf("reject auto merge: %v", err)
	}
	if result.Status != db.FlagStatusRejected {
		t.Fatalf("unexpected status: %s", result.Status)
	}

	targetVariants, err := store.VariantsOf(ctx, targetID)
	if err != nil {
		t.Fatalf("target variants: %v", err)
	}
	for _, variant := range targetVariants {
		prices, err := store.PricesOf(ctx, variant.ProductID)
		if err != nil {
			t.Fatalf("prices: %v", err)
		}
		for _, price := range prices {
			if price.DispensaryID == "disp-b" {
				t.Fatalf("merged price must be detached from the target")
			}
		}
	}

	masters := 0
	for _, p := range store.Products {
		if p.IsMaster {
			masters++
		}
	}
	if masters != 2 {
		t.Fatalf("expected the snapshot to become its own product, got %d parents", masters)
	}
}
