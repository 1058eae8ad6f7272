// Package catalogtest provides an in-memory store fake for engine and
// review manager tests.
package catalogtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"leafmart.dev/catalog/internal/catalog"
	"leafmart.dev/catalog/internal/db"
)

// MemStore implements catalog.Store over maps. Not a transaction in
// any real sense: RunInTx hands the store straight to fn, which is
// enough for logic tests.
type MemStore struct {
	mu     sync.Mutex
	nextID int64

	Products  map[int64]*db.Product
	Prices    map[int64]*db.Price
	Flags     map[int64]*db.ReviewFlag
	Reviews   map[int64]*db.ProductReview
	Watchlist map[int64]*db.WatchlistEntry
	Runs      []db.ScrapeRun
}

func NewMemStore() *MemStore {
	return &MemStore{
		Products:  make(map[int64]*db.Product),
		Prices:    make(map[int64]*db.Price),
		Flags:     make(map[int64]*db.ReviewFlag),
		Reviews:   make(map[int64]*db.ProductReview),
		Watchlist: make(map[int64]*db.WatchlistEntry),
	}
}

var _ catalog.Store = (*MemStore)(nil)

// RunInTx satisfies catalog.TxRunner as a method value.
func (m *MemStore) RunInTx(_ context.Context, fn func(tx catalog.Store) error) error {
	return fn(m)
}

func (m *MemStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemStore) MasterProducts(context.Context) ([]db.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var parents []db.Product
	for _, p := range m.Products {
		if p.IsMaster {
			parents = append(parents, *p)
		}
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i].ProductID < parents[j].ProductID })
	return parents, nil
}

func (m *MemStore) MasterPriceStats(context.Context) (map[int64]db.PriceStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[int64]db.PriceStats)
	for _, price := range m.Prices {
		variant, ok := m.Products[price.ProductID]
		if !ok || variant.MasterProductID == nil {
			continue
		}
		entry := stats[*variant.MasterProductID]
		entry.Count++
		entry.Dispensaries = append(entry.Dispensaries, price.DispensaryID)
		stats[*variant.MasterProductID] = entry
	}
	return stats, nil
}

func (m *MemStore) ProductByID(_ context.Context, id int64) (*db.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	product, ok := m.Products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, db.ErrNotFound)
	}
	clone := *product
	return &clone, nil
}

func (m *MemStore) VariantsOf(_ context.Context, masterID int64) ([]db.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var variants []db.Product
	for _, p := range m.Products {
		if p.MasterProductID != nil && *p.MasterProductID == masterID {
			variants = append(variants, *p)
		}
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i].ProductID < variants[j].ProductID })
	return variants, nil
}

func (m *MemStore) CreateProduct(_ context.Context, product *db.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	product.ProductID = m.id()
	clone := *product
	m.Products[product.ProductID] = &clone
	return nil
}

func (m *MemStore) UpdateProduct(_ context.Context, product *db.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Products[product.ProductID]; !ok {
		return fmt.Errorf("product %d: %w", product.ProductID, db.ErrNotFound)
	}
	clone := *product
	m.Products[product.ProductID] = &clone
	return nil
}

func (m *MemStore) DeleteProductTree(_ context.Context, masterID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := map[int64]struct{}{masterID: {}}
	for id, p := range m.Products {
		if p.MasterProductID != nil && *p.MasterProductID == masterID {
			ids[id] = struct{}{}
		}
	}
	for id, price := range m.Prices {
		if _, ok := ids[price.ProductID]; ok {
			delete(m.Prices, id)
		}
	}
	for id, review := range m.Reviews {
		if _, ok := ids[review.ProductID]; ok {
			delete(m.Reviews, id)
		}
	}
	for id, entry := range m.Watchlist {
		if _, ok := ids[entry.ProductID]; ok {
			delete(m.Watchlist, id)
		}
	}
	for id := range ids {
		delete(m.Products, id)
	}
	return nil
}

func (m *MemStore) PricesOf(_ context.Context, productID int64) ([]db.Price, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var prices []db.Price
	for _, price := range m.Prices {
		if price.ProductID == productID {
			prices = append(prices, *price)
		}
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].PriceID < prices[j].PriceID })
	return prices, nil
}

func (m *MemStore) UpsertPrice(_ context.Context, price *db.Price) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.Prices {
		if existing.ProductID == price.ProductID && existing.DispensaryID == price.DispensaryID {
			existing.Amount = price.Amount
			existing.InStock = price.InStock
			existing.SourceURL = price.SourceURL
			existing.LastSeenAt = price.LastSeenAt
			existing.UpdatedAt = price.UpdatedAt
			*price = *existing
			return nil
		}
	}

	price.PriceID = m.id()
	clone := *price
	m.Prices[price.PriceID] = &clone
	return nil
}

func (m *MemStore) DeletePrice(_ context.Context, priceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Prices, priceID)
	return nil
}

func (m *MemStore) MoveProductRefs(_ context.Context, fromProductID, toProductID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, review := range m.Reviews {
		if review.ProductID == fromProductID {
			review.ProductID = toProductID
		}
	}
	for _, entry := range m.Watchlist {
		if entry.ProductID == fromProductID {
			entry.ProductID = toProductID
		}
	}
	return nil
}

func (m *MemStore) CreateFlag(_ context.Context, flag *db.ReviewFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	flag.FlagID = m.id()
	clone := *flag
	m.Flags[flag.FlagID] = &clone
	return nil
}

func (m *MemStore) FlagByUUID(_ context.Context, flagUUID string) (*db.ReviewFlag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, flag := range m.Flags {
		if flag.FlagUUID == strings.TrimSpace(flagUUID) {
			clone := *flag
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("flag %s: %w", flagUUID, db.ErrNotFound)
}

func (m *MemStore) UpdateFlag(_ context.Context, flag *db.ReviewFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Flags[flag.FlagID]; !ok {
		return fmt.Errorf("flag %d: %w", flag.FlagID, db.ErrNotFound)
	}
	clone := *flag
	m.Flags[flag.FlagID] = &clone
	return nil
}

func (m *MemStore) ListFlags(_ context.Context, filter db.FlagFilter) ([]db.ReviewFlag, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var flags []db.ReviewFlag
	for _, flag := range m.Flags {
		if filter.Kind != "" && string(flag.Kind) != filter.Kind {
			continue
		}
		if filter.Status != "" && string(flag.Status) != filter.Status {
			continue
		}
		flags = append(flags, *flag)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].FlagID > flags[j].FlagID })
	return flags, int64(len(flags)), nil
}

func (m *MemStore) FlagCounts(context.Context) ([]db.FlagCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byKey := make(map[string]*db.FlagCount)
	for _, flag := range m.Flags {
		key := string(flag.Kind) + "/" + string(flag.Status)
		if _, ok := byKey[key]; !ok {
			byKey[key] = &db.FlagCount{Kind: flag.Kind, Status: flag.Status}
		}
		byKey[key].Count++
	}

	counts := make([]db.FlagCount, 0, len(byKey))
	for _, count := range byKey {
		counts = append(counts, *count)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Kind != counts[j].Kind {
			return counts[i].Kind < counts[j].Kind
		}
		return counts[i].Status < counts[j].Status
	})
	return counts, nil
}

func (m *MemStore) CatalogCounts(context.Context) (*db.CatalogCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := &db.CatalogCounts{Prices: int64(len(m.Prices))}
	for _, product := range m.Products {
		if product.IsMaster {
			counts.Parents++
			if product.Active {
				counts.ActiveParents++
			}
		} else {
			counts.Variants++
		}
	}
	return counts, nil
}

func (m *MemStore) HasOpenDuplicateFlag(_ context.Context, productID, duplicateID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, flag := range m.Flags {
		if flag.Status != db.FlagStatusPending || flag.TargetProductID == nil || flag.DuplicateProductID == nil {
			continue
		}
		target, duplicate := *flag.TargetProductID, *flag.DuplicateProductID
		if (target == productID && duplicate == duplicateID) || (target == duplicateID && duplicate == productID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) CreateRun(_ context.Context, run *db.ScrapeRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run.RunID = m.id()
	m.Runs = append(m.Runs, *run)
	return nil
}
