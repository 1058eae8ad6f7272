package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"leafmart.dev/catalog/internal/catalog"
	"leafmart.dev/catalog/internal/db"
	"leafmart.dev/catalog/internal/globaltime"
)

// FieldEdits carries operator corrections. Nil means "leave as is";
// the vocabulary is fixed, nothing outside these seven fields can be
// edited through a flag.
type FieldEdits struct {
	Name     *string  `json:"name,omitempty"`
	Brand    *string  `json:"brand,omitempty"`
	Category *string  `json:"category,omitempty"`
	THC      *float64 `json:"thc,omitempty"`
	CBD      *float64 `json:"cbd,omitempty"`
	Weight   *string  `json:"weight,omitempty"`
	Price    *float64 `json:"price,omitempty"`
}

func (e FieldEdits) applyToRecord(record *catalog.Record) error {
	if e.Name != nil {
		record.Name = *e.Name
	}
	if e.Brand != nil {
		record.Brand = e.Brand
	}
	if e.Category != nil {
		record.Category = e.Category
	}
	if e.THC != nil {
		record.THC = e.THC
	}
	if e.CBD != nil {
		record.CBD = e.CBD
	}
	if e.Weight != nil {
		if _, ok := catalog.ParseWeightLabel(*e.Weight); !ok {
			return fmt.Errorf("%w: unrecognized weight label %q", catalog.ErrInput, *e.Weight)
		}
		record.WeightText = e.Weight
	}
	if e.Price != nil {
		record.Price = e.Price
	}
	return nil
}

// Result reports the outcome of one flag operation.
type Result struct {
	FlagUUID   string        `json:"flag_uuid"`
	Status     db.FlagStatus `json:"status"`
	ProductIDs []int64       `json:"product_ids,omitempty"`
}

// Manager owns the review-flag state machine. Every operation loads
// the flag, checks the transition table against the flag's current
// status, applies the catalog effects, and commits the status change
// in the same transaction. A flag resolves exactly once.
type Manager struct {
	runTx catalog.TxRunner
	log   zerolog.Logger
}

func NewManager(runTx catalog.TxRunner, log zerolog.Logger) *Manager {
	return &Manager{runTx: runTx, log: log}
}

func (m *Manager) resolve(ctx context.Context, flagUUID string, op Operation, resolvedBy, notes string, apply func(tx catalog.Store, flag *db.ReviewFlag, result *Result) error) (*Result, error) {
	result := &Result{FlagUUID: strings.TrimSpace(flagUUID)}
	err := m.runTx(ctx, func(tx catalog.Store) error {
		flag, err := tx.FlagByUUID(ctx, flagUUID)
		if err != nil {
			return err
		}
		next, ok := Next(flag.Status, op)
		if !ok {
			return fmt.Errorf("%w: %s not allowed on %s flag", catalog.ErrConflict, op, flag.Status)
		}

		if apply != nil {
			if err := apply(tx, flag, result); err != nil {
				return err
			}
		}

		now := globaltime.UTC()
		flag.Status = next
		flag.ResolvedAt = &now
		flag.UpdatedAt = now
		if by := strings.TrimSpace(resolvedBy); by != "" {
			flag.ResolvedBy = &by
		}
		if note := strings.TrimSpace(notes); note != "" {
			flag.Notes = &note
		}
		result.Status = next
		return tx.UpdateFlag(ctx, flag)
	})
	if err != nil {
		return nil, err
	}

	m.log.Info().
		Str("flag_uuid", result.FlagUUID).
		Str("operation", string(op)).
		Str("status", string(result.Status)).
		Msg("flag resolved")
	return result, nil
}

// Approve merges a pending match flag's snapshot, after corrections,
// into the suggested target product.
func (m *Manager) Approve(ctx context.Context, flagUUID string, edits FieldEdits, resolvedBy, notes string) (*Result, error) {
	return m.resolve(ctx, flagUUID, OpApprove, resolvedBy, notes, func(tx catalog.Store, flag *db.ReviewFlag, result *Result) error {
		view, err := matchReview(flag)
		if err != nil {
			return err
		}
		record, err := view.correctedRecord(edits)
		if err != nil {
			return err
		}

		parent, err := tx.ProductByID(ctx, view.targetID)
		if err != nil {
			return err
		}
		if err := mergeRecordInto(ctx, tx, parent, record); err != nil {
			return err
		}
		result.ProductIDs = append(result.ProductIDs, parent.ProductID)
		return nil
	})
}

// Reject turns down a suggested match and creates a standalone product
// from the corrected snapshot instead.
func (m *Manager) Reject(ctx context.Context, flagUUID string, edits FieldEdits, resolvedBy, notes string) (*Result, error) {
	return m.resolve(ctx, flagUUID, OpReject, resolvedBy, notes, func(tx catalog.Store, flag *db.ReviewFlag, result *Result) error {
		view, err := matchReview(flag)
		if err != nil {
			return err
		}
		record, err := view.correctedRecord(edits)
		if err != nil {
			return err
		}

		parent, err := createProductFromRecord(ctx, tx, record)
		if err != nil {
			return err
		}
		result.ProductIDs = append(result.ProductIDs, parent.ProductID)
		return nil
	})
}

// Dismiss discards a flag with no catalog effect.
func (m *Manager) Dismiss(ctx context.Context, flagUUID, resolvedBy, notes string) (*Result, error) {
	return m.resolve(ctx, flagUUID, OpDismiss, resolvedBy, notes, nil)
}

// CleanAndActivate applies operator edits to a dirty product and
// publishes it.
func (m *Manager) CleanAndActivate(ctx context.Context, flagUUID string, edits FieldEdits, resolvedBy, notes string) (*Result, error) {
	return m.resolve(ctx, flagUUID, OpClean, resolvedBy, notes, func(tx catalog.Store, flag *db.ReviewFlag, result *Result) error {
		view, err := dataCleanup(flag)
		if err != nil {
			return err
		}

		parent, err := tx.ProductByID(ctx, view.targetID)
		if err != nil {
			return err
		}
		variants, err := tx.VariantsOf(ctx, parent.ProductID)
		if err != nil {
			return err
		}

		now := globaltime.UTC()
		applyProductEdits(parent, edits)
		parent.Active = true
		parent.UpdatedAt = now
		if err := tx.UpdateProduct(ctx, parent); err != nil {
			return err
		}
		result.ProductIDs = append(result.ProductIDs, parent.ProductID)

		for i := range variants {
			variant := &variants[i]
			applyProductEdits(variant, edits)
			if i == 0 && edits.Weight != nil {
				weight, ok := catalog.ParseWeightLabel(*edits.Weight)
				if !ok {
					return fmt.Errorf("%w: unrecognized weight label %q", catalog.ErrInput, *edits.Weight)
				}
				variant.WeightLabel = &weight.Label
				variant.WeightGrams = &weight.Grams
			}
			variant.Active = true
			variant.UpdatedAt = now
			if err := tx.UpdateProduct(ctx, variant); err != nil {
				return err
			}
			result.ProductIDs = append(result.ProductIDs, variant.ProductID)

			if i == 0 && edits.Price != nil {
				if err := upsertEditedPrice(ctx, tx, variant, view.record, *edits.Price); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// DeleteFlaggedProduct removes a junk product and everything hanging
// off it. The flag survives as the audit record, minus its target.
func (m *Manager) DeleteFlaggedProduct(ctx context.Context, flagUUID, resolvedBy, notes string) (*Result, error) {
	return m.resolve(ctx, flagUUID, OpDeleteProduct, resolvedBy, notes, func(tx catalog.Store, flag *db.ReviewFlag, result *Result) error {
		view, err := dataCleanup(flag)
		if err != nil {
			return err
		}
		if err := tx.DeleteProductTree(ctx, view.targetID); err != nil {
			return err
		}
		result.ProductIDs = append(result.ProductIDs, view.targetID)
		flag.TargetProductID = nil
		return nil
	})
}

// MergeDuplicate folds the losing product of a duplicate pair into the
// kept one: prices move variant-by-variant, reviews and watchlist
// entries re-point, and the loser is deactivated rather than deleted.
func (m *Manager) MergeDuplicate(ctx context.Context, flagUUID string, keptProductID int64, resolvedBy, notes string) (*Result, error) {
	return m.resolve(ctx, flagUUID, OpMergeDuplicate, resolvedBy, notes, func(tx catalog.Store, flag *db.ReviewFlag, result *Result) error {
		view, err := duplicatePair(flag)
		if err != nil {
			return err
		}
		loserID, err := view.loserOf(keptProductID)
		if err != nil {
			return err
		}

		kept, err := tx.ProductByID(ctx, keptProductID)
		if err != nil {
			return err
		}
		loser, err := tx.ProductByID(ctx, loserID)
		if err != nil {
			return err
		}
		if !kept.IsMaster || !loser.IsMaster {
			return fmt.Errorf("%w: duplicate merge requires two parent products", catalog.ErrIntegrity)
		}

		loserVariants, err := tx.VariantsOf(ctx, loser.ProductID)
		if err != nil {
			return err
		}
		now := globaltime.UTC()
		for i := range loserVariants {
			loserVariant := &loserVariants[i]
			var weight *catalog.Weight
			if loserVariant.WeightLabel != nil {
				if parsed, ok := catalog.ParseWeightLabel(*loserVariant.WeightLabel); ok {
					weight = parsed
				} else {
					grams := 0.0
					if loserVariant.WeightGrams != nil {
						grams = *loserVariant.WeightGrams
					}
					weight = &catalog.Weight{Label: *loserVariant.WeightLabel, Grams: grams}
				}
			}
			keptVariant, err := catalog.ResolveVariant(ctx, tx, kept, weight)
			if err != nil {
				return err
			}

			prices, err := tx.PricesOf(ctx, loserVariant.ProductID)
			if err != nil {
				return err
			}
			for _, price := range prices {
				moved := price
				moved.PriceID = 0
				moved.PriceUUID = uuid.NewString()
				moved.ProductID = keptVariant.ProductID
				moved.UpdatedAt = now
				if err := tx.UpsertPrice(ctx, &moved); err != nil {
					return err
				}
				if err := tx.DeletePrice(ctx, price.PriceID); err != nil {
					return err
				}
			}
			if err := tx.MoveProductRefs(ctx, loserVariant.ProductID, keptVariant.ProductID); err != nil {
				return err
			}

			loserVariant.Active = false
			loserVariant.UpdatedAt = now
			if err := tx.UpdateProduct(ctx, loserVariant); err != nil {
				return err
			}
		}

		if err := tx.MoveProductRefs(ctx, loser.ProductID, kept.ProductID); err != nil {
			return err
		}
		loser.Active = false
		loser.UpdatedAt = now
		if err := tx.UpdateProduct(ctx, loser); err != nil {
			return err
		}

		result.ProductIDs = append(result.ProductIDs, kept.ProductID, loser.ProductID)
		return nil
	})
}

// RejectAutoMerge unwinds a cross-source auto-merge: the price the
// engine attached to the matched parent is removed and the snapshot
// becomes its own product.
func (m *Manager) RejectAutoMerge(ctx context.Context, flagUUID, resolvedBy, notes string) (*Result, error) {
	return m.resolve(ctx, flagUUID, OpRejectAutoMerge, resolvedBy, notes, func(tx catalog.Store, flag *db.ReviewFlag, result *Result) error {
		view, err := matchReview(flag)
		if err != nil {
			return err
		}
		record := view.record

		if err := detachMergedPrice(ctx, tx, view.targetID, record); err != nil {
			return err
		}
		parent, err := createProductFromRecord(ctx, tx, record)
		if err != nil {
			return err
		}
		result.ProductIDs = append(result.ProductIDs, view.targetID, parent.ProductID)
		return nil
	})
}

// mergeRecordInto attaches a reviewed record to an existing parent.
func mergeRecordInto(ctx context.Context, tx catalog.Store, parent *db.Product, record catalog.Record) error {
	weight, _ := recordWeight(record)
	variant, err := catalog.ResolveVariant(ctx, tx, parent, weight)
	if err != nil {
		return err
	}
	_, err = catalog.AttachPrice(ctx, tx, variant, record)
	return err
}

// createProductFromRecord builds a reviewed record into an active
// parent+variant. No quality gate: a human already looked at it.
func createProductFromRecord(ctx context.Context, tx catalog.Store, record catalog.Record) (*db.Product, error) {
	weight, baseName := recordWeight(record)
	if strings.TrimSpace(baseName) == "" {
		return nil, fmt.Errorf("%w: name is empty after cleaning", catalog.ErrInput)
	}

	now := globaltime.UTC()
	parent := db.Product{
		ProductUUID: uuid.NewString(),
		Name:        baseName,
		Brand:       record.Brand,
		Category:    record.Category,
		THC:         record.THC,
		CBD:         record.CBD,
		IsMaster:    true,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.CreateProduct(ctx, &parent); err != nil {
		return nil, err
	}
	variant, err := catalog.ResolveVariant(ctx, tx, &parent, weight)
	if err != nil {
		return nil, err
	}
	if _, err := catalog.AttachPrice(ctx, tx, variant, record); err != nil {
		return nil, err
	}
	return &parent, nil
}

// recordWeight derives the variant weight for a snapshot record: an
// explicit weight_text wins, otherwise the name suffix.
func recordWeight(record catalog.Record) (*catalog.Weight, string) {
	cleaned := catalog.CleanName(record.Name)
	weight, baseName := catalog.ParseWeight(cleaned)
	if record.WeightText != nil {
		if explicit, ok := catalog.ParseWeightLabel(*record.WeightText); ok {
			return explicit, baseName
		}
	}
	return weight, baseName
}

// detachMergedPrice deletes the price an auto-merge attached: the row
// on the target's matching variant from the snapshot's dispensary.
func detachMergedPrice(ctx context.Context, tx catalog.Store, targetID int64, record catalog.Record) error {
	weight, _ := recordWeight(record)
	variants, err := tx.VariantsOf(ctx, targetID)
	if err != nil {
		return err
	}
	for i := range variants {
		variant := &variants[i]
		if !variantHasWeight(variant, weight) {
			continue
		}
		prices, err := tx.PricesOf(ctx, variant.ProductID)
		if err != nil {
			return err
		}
		for _, price := range prices {
			if price.DispensaryID == record.DispensaryID {
				return tx.DeletePrice(ctx, price.PriceID)
			}
		}
	}
	return fmt.Errorf("%w: no merged price from %s on product %d", catalog.ErrConflict, record.DispensaryID, targetID)
}

func variantHasWeight(variant *db.Product, weight *catalog.Weight) bool {
	if weight == nil {
		return variant.WeightLabel == nil
	}
	if variant.WeightLabel == nil {
		return false
	}
	left, lok := catalog.ParseWeightLabel(*variant.WeightLabel)
	if lok {
		return left.Grams == weight.Grams
	}
	return strings.EqualFold(strings.TrimSpace(*variant.WeightLabel), strings.TrimSpace(weight.Label))
}

func applyProductEdits(product *db.Product, edits FieldEdits) {
	if edits.Name != nil {
		product.Name = *edits.Name
	}
	if edits.Brand != nil {
		product.Brand = edits.Brand
	}
	if edits.Category != nil {
		product.Category = edits.Category
	}
	if edits.THC != nil {
		product.THC = edits.THC
	}
	if edits.CBD != nil {
		product.CBD = edits.CBD
	}
}

func upsertEditedPrice(ctx context.Context, tx catalog.Store, variant *db.Product, record catalog.Record, amount float64) error {
	edited := record
	edited.Price = &amount
	if strings.TrimSpace(edited.DispensaryID) == "" {
		return fmt.Errorf("%w: snapshot has no dispensary for price edit", catalog.ErrInput)
	}
	_, err := catalog.AttachPrice(ctx, tx, variant, edited)
	return err
}
