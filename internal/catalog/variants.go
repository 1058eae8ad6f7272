package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"leafmart.dev/catalog/internal/db"
	"leafmart.dev/catalog/internal/globaltime"
)

// ResolveVariant finds the variant of parent carrying the given weight
// label, creating it when absent. A nil weight resolves to the
// unlabeled variant, so listings without a printed size still get a
// place to hang prices. Check-before-create keeps the surrounding run
// transaction alive instead of tripping the unique index.
func ResolveVariant(ctx context.Context, st Store, parent *db.Product, weight *Weight) (*db.Product, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: resolve variant of nil parent", ErrIntegrity)
	}
	if !parent.IsMaster {
		return nil, fmt.Errorf("%w: product %d is not a parent", ErrIntegrity, parent.ProductID)
	}

	variants, err := st.VariantsOf(ctx, parent.ProductID)
	if err != nil {
		return nil, err
	}
	for i := range variants {
		if variantMatchesWeight(&variants[i], weight) {
			return &variants[i], nil
		}
	}

	now := globaltime.UTC()
	variant := db.Product{
		ProductUUID:     uuid.NewString(),
		Name:            parent.Name,
		Brand:           parent.Brand,
		Category:        parent.Category,
		THC:             parent.THC,
		CBD:             parent.CBD,
		MasterProductID: &parent.ProductID,
		Active:          parent.Active,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if weight != nil {
		label := weight.Label
		grams := weight.Grams
		variant.WeightLabel = &label
		variant.WeightGrams = &grams
	}
	if err := st.CreateProduct(ctx, &variant); err != nil {
		return nil, err
	}
	return &variant, nil
}

func variantMatchesWeight(variant *db.Product, weight *Weight) bool {
	if weight == nil {
		return variant.WeightLabel == nil
	}
	return variant.WeightLabel != nil && normalizeKey(*variant.WeightLabel) == normalizeKey(weight.Label)
}

// AttachPrice upserts a dispensary price onto a variant. Prices never
// attach to parents; a missing or non-positive amount attaches nothing.
func AttachPrice(ctx context.Context, st Store, variant *db.Product, record Record) (*db.Price, error) {
	if variant.IsMaster {
		return nil, fmt.Errorf("%w: price on parent product %d", ErrIntegrity, variant.ProductID)
	}
	if record.Price == nil || *record.Price <= 0 {
		return nil, nil
	}

	now := globaltime.UTC()
	price := db.Price{
		PriceUUID:    uuid.NewString(),
		ProductID:    variant.ProductID,
		DispensaryID: record.DispensaryID,
		Amount:       *record.Price,
		InStock:      record.InStock,
		SourceURL:    record.SourceURL,
		LastSeenAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := st.UpsertPrice(ctx, &price); err != nil {
		return nil, err
	}
	return &price, nil
}
