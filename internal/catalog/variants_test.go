package catalog_test

import (
	"context"
	"errors"
	"testing"

	"leafmart.dev/catalog/internal/catalog"
	"leafmart.dev/catalog/internal/catalog/catalogtest"
	"leafmart.dev/catalog/internal/db"
)

func seedParent(t *testing.T, store *catalogtest.MemStore, name string) *db.Product {
	t.Helper()
	parent := &db.Product{
		ProductUUID: "seed-" + name,
		Name:        name,
		IsMaster:    true,
		Active:      true,
	}
	if err := store.CreateProduct(context.Background(), parent); err != nil {
		t.Fatalf("seed parent: %v", err)
	}
	return parent
}

func TestResolveVariantIsIdempotent(t *testing.T) {
	t.Parallel()

	store := catalogtest.NewMemStore()
	parent := seedParent(t, store, "Blue Dream")
	weight := &catalog.Weight{Label: "3.5g", Grams: 3.5}

	first, err := catalog.ResolveVariant(context.Background(), store, parent, weight)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := catalog.ResolveVariant(context.Background(), store, parent, weight)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.ProductID != second.ProductID {
		t.Fatalf("expected the same variant twice, got %d and %d", first.ProductID, second.ProductID)
	}
	if second.MasterProductID == nil || *second.MasterProductID != parent.ProductID {
		t.Fatalf("variant does not point at its parent: %+v", second)
	}
}

func TestResolveVariantNilWeight(t *testing.T) {
	t.Parallel()

	store := catalogtest.NewMemStore()
	parent := seedParent(t, store, "Gelato")

	unlabeled, err := catalog.ResolveVariant(context.Background(), store, parent, nil)
	if err != nil {
		t.Fatalf("resolve unlabeled: %v", err)
	}
	if unlabeled.WeightLabel != nil {
		t.Fatalf("expected no weight label, got %q", *unlabeled.WeightLabel)
	}

	again, err := catalog.ResolveVariant(context.Background(), store, parent, nil)
	if err != nil {
		t.Fatalf("resolve unlabeled again: %v", err)
	}
	if again.ProductID != unlabeled.ProductID {
		t.Fatalf("expected the unlabeled variant to be reused")
	}
}

func TestResolveVariantRejectsNonParent(t *testing.T) {
	t.Parallel()

	store := catalogtest.NewMemStore()
	parent := seedParent(t, store, "Blue Dream")
	variant, err := catalog.ResolveVariant(context.Background(), store, parent, &catalog.Weight{Label: "1g", Grams: 1})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := catalog.ResolveVariant(context.Background(), store, variant, nil); !errors.Is(err, catalog.ErrIntegrity) {
		t.Fatalf("expected integrity violation for variant-of-variant, got %v", err)
	}
}

func TestAttachPriceRejectsParent(t *testing.T) {
	t.Parallel()

	store := catalogtest.NewMemStore()
	parent := seedParent(t, store, "Blue Dream")

	price := 45.0
	record := catalog.Record{Name: "Blue Dream", Price: &price, DispensaryID: "disp-a"}
	if _, err := catalog.AttachPrice(context.Background(), store, parent, record); !errors.Is(err, catalog.ErrIntegrity) {
		t.Fatalf("expected integrity violation for price on parent, got %v", err)
	}
}

func TestAttachPriceSkipsPricelessRecord(t *testing.T) {
	t.Parallel()

	store := catalogtest.NewMemStore()
	parent := seedParent(t, store, "Blue Dream")
	variant, err := catalog.ResolveVariant(context.Background(), store, parent, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	record := catalog.Record{Name: "Blue Dream", DispensaryID: "disp-a"}
	price, err := catalog.AttachPrice(context.Background(), store, variant, record)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if price != nil {
		t.Fatalf("expected no price row for a priceless record")
	}
}
