package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"leafmart.dev/catalog/internal/db"
	"leafmart.dev/catalog/internal/globaltime"
)

const (
	runStatusCompleted = "completed"
	runStatusFailed    = "failed"
)

// Engine normalizes a batch of scraped records into the product
// hierarchy. One batch runs inside one transaction: either every
// record lands or none do.
type Engine struct {
	runTx  TxRunner
	scorer *Scorer
	log    zerolog.Logger
}

func NewEngine(runTx TxRunner, scorer *Scorer, log zerolog.Logger) *Engine {
	return &Engine{runTx: runTx, scorer: scorer, log: log}
}

// RunSummary reports what one batch did.
type RunSummary struct {
	RunUUID    string `json:"run_uuid"`
	Processed  int    `json:"processed"`
	Skipped    int    `json:"skipped"`
	AutoMerged int    `json:"auto_merged"`
	Created    int    `json:"created"`
	Flagged    int    `json:"flagged"`
}

// ProcessBatch ingests one dispensary's scrape. Records that fail
// input validation are logged and skipped; any other error rolls the
// whole batch back and books a failed run row.
func (e *Engine) ProcessBatch(ctx context.Context, dispensaryID string, records []Record) (RunSummary, error) {
	startedAt := globaltime.UTC()
	summary := RunSummary{RunUUID: uuid.NewString()}

	err := e.runTx(ctx, func(tx Store) error {
		cache, err := LoadCandidateCache(ctx, tx)
		if err != nil {
			return err
		}
		e.log.Info().
			Str("dispensary_id", dispensaryID).
			Int("records", len(records)).
			Int("candidates", cache.Len()).
			Msg("starting catalog run")

		for i, record := range records {
			if strings.TrimSpace(record.DispensaryID) == "" {
				record.DispensaryID = dispensaryID
			}
			if err := e.processRecord(ctx, tx, cache, record, &summary); err != nil {
				if errors.Is(err, ErrInput) {
					summary.Skipped++
					e.log.Warn().Err(err).Int("record", i).Msg("skipping record")
					continue
				}
				return fmt.Errorf("record %d: %w", i, err)
			}
			summary.Processed++
		}

		finishedAt := globaltime.UTC()
		return tx.CreateRun(ctx, &db.ScrapeRun{
			RunUUID:      summary.RunUUID,
			DispensaryID: dispensaryID,
			Status:       runStatusCompleted,
			Processed:    summary.Processed,
			Skipped:      summary.Skipped,
			AutoMerged:   summary.AutoMerged,
			Created:      summary.Created,
			Flagged:      summary.Flagged,
			StartedAt:    startedAt,
			FinishedAt:   &finishedAt,
		})
	})
	if err != nil {
		e.bookFailedRun(ctx, summary.RunUUID, dispensaryID, startedAt, err)
		return summary, err
	}

	e.log.Info().
		Str("run_uuid", summary.RunUUID).
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("auto_merged", summary.AutoMerged).
		Int("created", summary.Created).
		Int("flagged", summary.Flagged).
		Msg("catalog run finished")
	return summary, nil
}

func (e *Engine) processRecord(ctx context.Context, tx Store, cache *CandidateCache, record Record, summary *RunSummary) error {
	if err := record.Validate(); err != nil {
		return err
	}

	cleaned := CleanName(record.Name)
	if cleaned == "" {
		return fmt.Errorf("%w: name is empty after cleaning", ErrInput)
	}
	quality := CheckQuality(record, cleaned)
	weight, baseName := ParseWeight(cleaned)

	decision := e.scorer.Decide(baseName, record.BrandValue(), record.DispensaryID, cache)
	if decision.Kind == DecisionAutoMerge {
		return e.mergeRecord(ctx, tx, record, weight, decision, summary)
	}
	return e.createProduct(ctx, tx, record, baseName, weight, quality, decision, summary)
}

func (e *Engine) mergeRecord(ctx context.Context, tx Store, record Record, weight *Weight, decision Decision, summary *RunSummary) error {
	parent, err := tx.ProductByID(ctx, decision.Match.Candidate.ProductID)
	if err != nil {
		return err
	}
	variant, err := ResolveVariant(ctx, tx, parent, weight)
	if err != nil {
		return err
	}
	if _, err := AttachPrice(ctx, tx, variant, record); err != nil {
		return err
	}
	summary.AutoMerged++

	// Cross-source merges are booked as already-resolved flags so a
	// reviewer can still unwind a bad one later.
	if decision.CrossSource {
		flag, err := buildMatchFlag(record, decision, parent.ProductID, db.FlagStatusAutoMerged, db.MatchScopeCrossSource)
		if err != nil {
			return err
		}
		if err := tx.CreateFlag(ctx, flag); err != nil {
			return err
		}
		summary.Flagged++
	}

	e.log.Debug().
		Int64("parent_id", parent.ProductID).
		Float64("score", decision.Match.Score).
		Bool("cross_source", decision.CrossSource).
		Msg("auto-merged record")
	return nil
}

func (e *Engine) createProduct(ctx context.Context, tx Store, record Record, baseName string, weight *Weight, quality QualityReport, decision Decision, summary *RunSummary) error {
	now := globaltime.UTC()
	parent := db.Product{
		ProductUUID: uuid.NewString(),
		Name:        baseName,
		Brand:       record.Brand,
		Category:    record.Category,
		THC:         record.THC,
		CBD:         record.CBD,
		IsMaster:    true,
		Active:      !quality.Dirty,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.CreateProduct(ctx, &parent); err != nil {
		return err
	}
	variant, err := ResolveVariant(ctx, tx, &parent, weight)
	if err != nil {
		return err
	}
	if _, err := AttachPrice(ctx, tx, variant, record); err != nil {
		return err
	}
	summary.Created++

	if quality.Dirty {
		flag, err := buildCleanupFlag(record, quality, decision, parent.ProductID)
		if err != nil {
			return err
		}
		if err := tx.CreateFlag(ctx, flag); err != nil {
			return err
		}
		summary.Flagged++
	}

	e.log.Debug().
		Int64("parent_id", parent.ProductID).
		Bool("dirty", quality.Dirty).
		Strs("issues", quality.Issues).
		Msg("created product")
	return nil
}

func (e *Engine) bookFailedRun(ctx context.Context, runUUID, dispensaryID string, startedAt time.Time, runErr error) {
	message := runErr.Error()
	finishedAt := globaltime.UTC()
	err := e.runTx(ctx, func(tx Store) error {
		return tx.CreateRun(ctx, &db.ScrapeRun{
			RunUUID:      runUUID,
			DispensaryID: dispensaryID,
			Status:       runStatusFailed,
			ErrorMessage: &message,
			StartedAt:    startedAt,
			FinishedAt:   &finishedAt,
		})
	})
	if err != nil {
		e.log.Error().Err(err).Str("run_uuid", runUUID).Msg("could not book failed run")
	}
}

func buildMatchFlag(record Record, decision Decision, targetID int64, status db.FlagStatus, scope db.MatchScope) (*db.ReviewFlag, error) {
	snapshot, err := record.Snapshot()
	if err != nil {
		return nil, err
	}
	now := globaltime.UTC()
	score := decision.Match.Score
	flag := &db.ReviewFlag{
		FlagUUID:        uuid.NewString(),
		Kind:            db.FlagKindMatchReview,
		Status:          status,
		ConfidenceScore: &score,
		MatchScope:      &scope,
		TargetProductID: &targetID,
		Snapshot:        snapshot,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if status != db.FlagStatusPending {
		flag.ResolvedAt = &now
	}
	return flag, nil
}

func buildCleanupFlag(record Record, quality QualityReport, decision Decision, targetID int64) (*db.ReviewFlag, error) {
	snapshot, err := record.Snapshot()
	if err != nil {
		return nil, err
	}
	tags, err := json.Marshal(quality.Issues)
	if err != nil {
		return nil, fmt.Errorf("marshal issue tags: %w", err)
	}
	now := globaltime.UTC()
	flag := &db.ReviewFlag{
		FlagUUID:        uuid.NewString(),
		Kind:            db.FlagKindDataCleanup,
		Status:          db.FlagStatusPending,
		TargetProductID: &targetID,
		IssueTags:       tags,
		Snapshot:        snapshot,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if decision.Match != nil {
		score := decision.Match.Score
		flag.ConfidenceScore = &score
	}
	return flag, nil
}

// ScanDuplicates compares every pair of parent products and opens a
// pending review flag for each pair scoring at or above the merge
// threshold. Pairs that already have an open flag are left alone, so
// the scan is safe to rerun.
func (e *Engine) ScanDuplicates(ctx context.Context) (int, error) {
	flagged := 0
	err := e.runTx(ctx, func(tx Store) error {
		cache, err := LoadCandidateCache(ctx, tx)
		if err != nil {
			return err
		}

		for i := 0; i < len(cache.candidates); i++ {
			for j := i + 1; j < len(cache.candidates); j++ {
				left := &cache.candidates[i]
				right := &cache.candidates[j]

				nameScore := nameSimilarity(left.nameKey, right.nameKey)
				brandScore := brandSimilarity(left.brandKey, right.brandKey)
				score := nameWeight*nameScore + brandWeight*brandScore
				if score < e.scorer.threshold {
					continue
				}

				open, err := tx.HasOpenDuplicateFlag(ctx, left.ProductID, right.ProductID)
				if err != nil {
					return err
				}
				if open {
					continue
				}

				if err := tx.CreateFlag(ctx, duplicateFlag(left, right, score)); err != nil {
					return err
				}
				flagged++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.log.Info().Int("flagged", flagged).Msg("duplicate scan finished")
	return flagged, nil
}

func duplicateFlag(left, right *Candidate, score float64) *db.ReviewFlag {
	scope := pairScope(left, right)
	now := globaltime.UTC()
	return &db.ReviewFlag{
		FlagUUID:           uuid.NewString(),
		Kind:               db.FlagKindMatchReview,
		Status:             db.FlagStatusPending,
		ConfidenceScore:    &score,
		MatchScope:         &scope,
		TargetProductID:    &left.ProductID,
		DuplicateProductID: &right.ProductID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// pairScope classifies a duplicate pair by where its prices come from.
// Two parents priced by disjoint dispensary sets are the shape parallel
// runs of different sources leave behind; everything else, unpriced
// parents included, is a same-source duplicate.
func pairScope(left, right *Candidate) db.MatchScope {
	if left.PriceCount > 0 && right.PriceCount > 0 && !sharesDispensary(left, right) {
		return db.MatchScopeCrossSource
	}
	return db.MatchScopeSameSource
}

func sharesDispensary(left, right *Candidate) bool {
	for dispensary := range left.dispensaries {
		if _, ok := right.dispensaries[dispensary]; ok {
			return true
		}
	}
	return false
}
