package catalog

import (
	"context"
	"sort"

	"leafmart.dev/catalog/internal/db"
)

const (
	// Name similarity dominates; brand is a corrective. Potency is
	// deliberately excluded so missing lab data never sinks a match.
	nameWeight  = 0.75
	brandWeight = 0.25

	// DefaultAutoMergeThreshold is the score at or above which a
	// record merges into an existing parent without review.
	DefaultAutoMergeThreshold = 0.90
)

// Candidate is one parent product inside a run's cache snapshot.
type Candidate struct {
	ProductID  int64
	Name       string
	Brand      string
	PriceCount int

	nameKey      string
	brandKey     string
	dispensaries map[string]struct{}
}

// HasPriceFrom reports whether any of the candidate's variants already
// carries a price from the given dispensary.
func (c *Candidate) HasPriceFrom(dispensaryID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.dispensaries[dispensaryID]
	return ok
}

// CandidateCache is a per-run, read-only snapshot of all parent
// products. Loaded once before a run and reused for every record;
// never mutated in place, so concurrent runs hold independent
// instances.
type CandidateCache struct {
	candidates []Candidate
}

// NewCandidateCache builds a snapshot from parent rows and their
// per-parent price stats.
func NewCandidateCache(parents []db.Product, stats map[int64]db.PriceStats) *CandidateCache {
	candidates := make([]Candidate, 0, len(parents))
	for _, parent := range parents {
		brand := ""
		if parent.Brand != nil {
			brand = *parent.Brand
		}

		candidate := Candidate{
			ProductID: parent.ProductID,
			Name:      parent.Name,
			Brand:     brand,
			nameKey:   normalizeKey(parent.Name),
			brandKey:  normalizeKey(brand),
		}
		if stat, ok := stats[parent.ProductID]; ok {
			candidate.PriceCount = stat.Count
			candidate.dispensaries = make(map[string]struct{}, len(stat.Dispensaries))
			for _, dispensary := range stat.Dispensaries {
				candidate.dispensaries[dispensary] = struct{}{}
			}
		}
		candidates = append(candidates, candidate)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ProductID < candidates[j].ProductID
	})
	return &CandidateCache{candidates: candidates}
}

// LoadCandidateCache warms a cache snapshot from the store.
func LoadCandidateCache(ctx context.Context, st Store) (*CandidateCache, error) {
	parents, err := st.MasterProducts(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := st.MasterPriceStats(ctx)
	if err != nil {
		return nil, err
	}
	return NewCandidateCache(parents, stats), nil
}

func (c *CandidateCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.candidates)
}

// Match is the best-scoring candidate for one record.
type Match struct {
	Candidate  *Candidate
	Score      float64
	NameScore  float64
	BrandScore float64
}

// Best returns the candidate with the maximum combined score, or nil
// for an empty cache. Ties resolve deterministically: more existing
// prices wins, then the lower product id (candidates are id-ordered,
// so strict greater-than comparisons encode both rules).
func (c *CandidateCache) Best(name, brand string) *Match {
	if c == nil || len(c.candidates) == 0 {
		return nil
	}

	nameKey := normalizeKey(name)
	brandKey := normalizeKey(brand)

	var best *Match
	for i := range c.candidates {
		candidate := &c.candidates[i]
		nameScore := nameSimilarity(nameKey, candidate.nameKey)
		brandScore := brandSimilarity(brandKey, candidate.brandKey)
		score := nameWeight*nameScore + brandWeight*brandScore

		switch {
		case best == nil,
			score > best.Score,
			score == best.Score && candidate.PriceCount > best.Candidate.PriceCount:
			best = &Match{
				Candidate:  candidate,
				Score:      score,
				NameScore:  nameScore,
				BrandScore: brandScore,
			}
		}
	}
	return best
}

type DecisionKind string

const (
	DecisionAutoMerge  DecisionKind = "auto_merge"
	DecisionNewProduct DecisionKind = "new_product"
)

// Decision routes one scraped record. There is no third bucket: every
// record either merges or becomes a new product.
type Decision struct {
	Kind DecisionKind

	// Match is the winning candidate on auto-merge, or the best (but
	// sub-threshold) candidate on new-product; nil when the cache was
	// empty.
	Match *Match

	// CrossSource is set on auto-merge when the matched parent has
	// prices but none from the record's dispensary.
	CrossSource bool
}

// Scorer applies the two-tier threshold model to cache matches.
type Scorer struct {
	threshold float64
}

func NewScorer(threshold float64) *Scorer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultAutoMergeThreshold
	}
	return &Scorer{threshold: threshold}
}

// Decide scores one record against the cache snapshot.
func (s *Scorer) Decide(name, brand, dispensaryID string, cache *CandidateCache) Decision {
	best := cache.Best(name, brand)
	if best == nil || best.Score < s.threshold {
		return Decision{Kind: DecisionNewProduct, Match: best}
	}

	crossSource := best.Candidate.PriceCount > 0 && !best.Candidate.HasPriceFrom(dispensaryID)
	return Decision{
		Kind:        DecisionAutoMerge,
		Match:       best,
		CrossSource: crossSource,
	}
}
