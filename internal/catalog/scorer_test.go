package catalog

import (
	"testing"

	"leafmart.dev/catalog/internal/db"
)

func testCache(parents []db.Product, stats map[int64]db.PriceStats) *CandidateCache {
	return NewCandidateCache(parents, stats)
}

func TestScorerAutoMergesCloseName(t *testing.T) {
	t.Parallel()

	cache := testCache([]db.Product{
		{ProductID: 1, Name: "Blue Dream", Brand: strPtr("Tryke"), IsMaster: true, Active: true},
	}, map[int64]db.PriceStats{
		1: {Count: 2, Dispensaries: []string{"disp-a"}},
	})

	scorer := NewScorer(DefaultAutoMergeThreshold)
	decision := scorer.Decide("Blu Dream", "Tryke", "disp-a", cache)
	if decision.Kind != DecisionAutoMerge {
		t.Fatalf("expected auto-merge, got %s (score %f)", decision.Kind, decision.Match.Score)
	}
	if decision.Match.Score < 0.90 {
		t.Fatalf("expected score >= 0.90, got %f", decision.Match.Score)
	}
	if decision.CrossSource {
		t.Fatalf("matched parent already has a price from this dispensary")
	}
}

func TestScorerNewProductBelowThreshold(t *testing.T) {
	t.Parallel()

	cache := testCache([]db.Product{
		{ProductID: 1, Name: "Blue Dream", Brand: strPtr("Tryke"), IsMaster: true, Active: true},
	}, nil)

	scorer := NewScorer(DefaultAutoMergeThreshold)
	decision := scorer.Decide("Purple Punch", "Stiiizy", "disp-a", cache)
	if decision.Kind != DecisionNewProduct {
		t.Fatalf("expected new product, got %s", decision.Kind)
	}
	if decision.Match == nil {
		t.Fatalf("expected the best sub-threshold match to be reported")
	}
}

func TestScorerEmptyCache(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(DefaultAutoMergeThreshold)
	decision := scorer.Decide("Blue Dream", "Tryke", "disp-a", testCache(nil, nil))
	if decision.Kind != DecisionNewProduct || decision.Match != nil {
		t.Fatalf("empty cache must produce a new product with no match, got %+v", decision)
	}
}

func TestBestTieBreaksOnPriceCountThenID(t *testing.T) {
	t.Parallel()

	cache := testCache([]db.Product{
		{ProductID: 1, Name: "Blue Dream", Brand: strPtr("Tryke"), IsMaster: true, Active: true},
		{ProductID: 2, Name: "Blue Dream", Brand: strPtr("Tryke"), IsMaster: true, Active: true},
	}, map[int64]db.PriceStats{
		2: {Count: 3, Dispensaries: []string{"disp-a"}},
	})

	best := cache.Best("Blue Dream", "Tryke")
	if best.Candidate.ProductID != 2 {
		t.Fatalf("expected the candidate with more prices to win, got %d", best.Candidate.ProductID)
	}

	even := testCache([]db.Product{
		{ProductID: 7, Name: "Gelato", IsMaster: true, Active: true},
		{ProductID: 9, Name: "Gelato", IsMaster: true, Active: true},
	}, nil)
	best = even.Best("Gelato", "")
	if best.Candidate.ProductID != 7 {
		t.Fatalf("expected the lower id on a full tie, got %d", best.Candidate.ProductID)
	}
}

func TestScorerCrossSourceDetection(t *testing.T) {
	t.Parallel()

	cache := testCache([]db.Product{
		{ProductID: 1, Name: "Blue Dream", Brand: strPtr("Tryke"), IsMaster: true, Active: true},
	}, map[int64]db.PriceStats{
		1: {Count: 1, Dispensaries: []string{"disp-a"}},
	})

	scorer := NewScorer(DefaultAutoMergeThreshold)
	decision := scorer.Decide("Blue Dream", "Tryke", "disp-b", cache)
	if decision.Kind != DecisionAutoMerge {
		t.Fatalf("expected auto-merge, got %s", decision.Kind)
	}
	if !decision.CrossSource {
		t.Fatalf("expected cross-source merge for a new dispensary")
	}
}
