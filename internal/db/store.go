package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// FlagFilter narrows ListFlags results; zero values mean "any".
type FlagFilter struct {
	Kind     string
	Status   string
	Page     int
	PageSize int
}

// Store is the gorm-backed persistence layer for the catalog engine
// and the review manager.
type Store struct {
	gdb *gorm.DB
}

func NewStore(pool *Pool) *Store {
	if pool == nil {
		return &Store{}
	}
	return &Store{gdb: pool.gdb}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s == nil || s.gdb == nil {
		return fmt.Errorf("store is not initialized")
	}
	return s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{gdb: tx})
	})
}

// MasterProducts returns every parent product, inactive ones included:
// a dirty listing parked behind a cleanup flag must keep matching its
// own parent on the next scrape instead of spawning a sibling.
func (s *Store) MasterProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := s.gdb.WithContext(ctx).
		Where("is_master = ?", true).
		Order("product_id").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("query master products: %w", err)
	}
	return products, nil
}

func (s *Store) MasterPriceStats(ctx context.Context) (map[int64]PriceStats, error) {
	rows, err := s.gdb.WithContext(ctx).
		Table("catalog.prices pr").
		Select("v.master_product_id AS master_id, pr.dispensary_id, COUNT(*) AS price_count").
		Joins("JOIN catalog.products v ON v.product_id = pr.product_id").
		Where("v.master_product_id IS NOT NULL").
		Group("v.master_product_id, pr.dispensary_id").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("query master price stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[int64]PriceStats)
	for rows.Next() {
		var masterID int64
		var dispensaryID string
		var priceCount int
		if err := rows.Scan(&masterID, &dispensaryID, &priceCount); err != nil {
			return nil, fmt.Errorf("scan master price stats: %w", err)
		}
		entry := stats[masterID]
		entry.Count += priceCount
		entry.Dispensaries = append(entry.Dispensaries, dispensaryID)
		stats[masterID] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate master price stats: %w", err)
	}
	return stats, nil
}

func (s *Store) ProductByID(ctx context.Context, id int64) (*Product, error) {
	var product Product
	err := s.gdb.WithContext(ctx).First(&product, "product_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query product %d: %w", id, err)
	}
	return &product, nil
}

func (s *Store) VariantsOf(ctx context.Context, masterID int64) ([]Product, error) {
	var variants []Product
	err := s.gdb.WithContext(ctx).
		Where("master_product_id = ?", masterID).
		Order("product_id").
		Find(&variants).Error
	if err != nil {
		return nil, fmt.Errorf("query variants of product %d: %w", masterID, err)
	}
	return variants, nil
}

func (s *Store) CreateProduct(ctx context.Context, product *Product) error {
	if err := s.gdb.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("insert product %q: %w", product.Name, err)
	}
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, product *Product) error {
	if err := s.gdb.WithContext(ctx).Save(product).Error; err != nil {
		return fmt.Errorf("update product %d: %w", product.ProductID, err)
	}
	return nil
}

// DeleteProductTree removes a parent, its variants, and every price,
// review, and watchlist row hanging off any of them.
func (s *Store) DeleteProductTree(ctx context.Context, masterID int64) error {
	variants, err := s.VariantsOf(ctx, masterID)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(variants)+1)
	ids = append(ids, masterID)
	for _, v := range variants {
		ids = append(ids, v.ProductID)
	}

	gdb := s.gdb.WithContext(ctx)
	if err := gdb.Where("product_id IN ?", ids).Delete(&Price{}).Error; err != nil {
		return fmt.Errorf("delete prices of product %d: %w", masterID, err)
	}
	if err := gdb.Where("product_id IN ?", ids).Delete(&ProductReview{}).Error; err != nil {
		return fmt.Errorf("delete reviews of product %d: %w", masterID, err)
	}
	if err := gdb.Where("product_id IN ?", ids).Delete(&WatchlistEntry{}).Error; err != nil {
		return fmt.Errorf("delete watchlist entries of product %d: %w", masterID, err)
	}
	if err := gdb.Where("product_id IN ?", ids).Delete(&Product{}).Error; err != nil {
		return fmt.Errorf("delete product tree %d: %w", masterID, err)
	}
	return nil
}

func (s *Store) PricesOf(ctx context.Context, productID int64) ([]Price, error) {
	var prices []Price
	err := s.gdb.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("price_id").
		Find(&prices).Error
	if err != nil {
		return nil, fmt.Errorf("query prices of product %d: %w", productID, err)
	}
	return prices, nil
}

// UpsertPrice updates the existing (variant, dispensary) row or
// creates one. Check-before-create: the caller owns the commit
// boundary, so a conflict-catch would abort the whole run.
func (s *Store) UpsertPrice(ctx context.Context, price *Price) error {
	var existing Price
	err := s.gdb.WithContext(ctx).
		Where("product_id = ? AND dispensary_id = ?", price.ProductID, price.DispensaryID).
		First(&existing).Error
	switch {
	case err == nil:
		existing.Amount = price.Amount
		existing.InStock = price.InStock
		existing.SourceURL = price.SourceURL
		existing.LastSeenAt = price.LastSeenAt
		existing.UpdatedAt = price.UpdatedAt
		if err := s.gdb.WithContext(ctx).Save(&existing).Error; err != nil {
			return fmt.Errorf("update price %d: %w", existing.PriceID, err)
		}
		*price = existing
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.gdb.WithContext(ctx).Create(price).Error; err != nil {
			return fmt.Errorf("insert price for product %d: %w", price.ProductID, err)
		}
		return nil
	default:
		return fmt.Errorf("query price for product %d: %w", price.ProductID, err)
	}
}

func (s *Store) DeletePrice(ctx context.Context, priceID int64) error {
	if err := s.gdb.WithContext(ctx).Delete(&Price{}, "price_id = ?", priceID).Error; err != nil {
		return fmt.Errorf("delete price %d: %w", priceID, err)
	}
	return nil
}

// MoveProductRefs re-points review and watchlist rows from one product
// to another. Prices are variant-scoped and move through the resolver,
// not here.
func (s *Store) MoveProductRefs(ctx context.Context, fromProductID, toProductID int64) error {
	gdb := s.gdb.WithContext(ctx)
	if err := gdb.Model(&ProductReview{}).
		Where("product_id = ?", fromProductID).
		Update("product_id", toProductID).Error; err != nil {
		return fmt.Errorf("move reviews %d -> %d: %w", fromProductID, toProductID, err)
	}
	if err := gdb.Model(&WatchlistEntry{}).
		Where("product_id = ?", fromProductID).
		Update("product_id", toProductID).Error; err != nil {
		return fmt.Errorf("move watchlist entries %d -> %d: %w", fromProductID, toProductID, err)
	}
	return nil
}

func (s *Store) CreateFlag(ctx context.Context, flag *ReviewFlag) error {
	if err := s.gdb.WithContext(ctx).Create(flag).Error; err != nil {
		return fmt.Errorf("insert review flag: %w", err)
	}
	return nil
}

func (s *Store) FlagByUUID(ctx context.Context, flagUUID string) (*ReviewFlag, error) {
	var flag ReviewFlag
	err := s.gdb.WithContext(ctx).First(&flag, "flag_uuid = ?", strings.TrimSpace(flagUUID)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("flag %s: %w", flagUUID, ErrNotFound)
		}
		return nil, fmt.Errorf("query flag %s: %w", flagUUID, err)
	}
	return &flag, nil
}

func (s *Store) UpdateFlag(ctx context.Context, flag *ReviewFlag) error {
	if err := s.gdb.WithContext(ctx).Save(flag).Error; err != nil {
		return fmt.Errorf("update flag %d: %w", flag.FlagID, err)
	}
	return nil
}

func (s *Store) ListFlags(ctx context.Context, filter FlagFilter) ([]ReviewFlag, int64, error) {
	query := s.gdb.WithContext(ctx).Model(&ReviewFlag{})
	if strings.TrimSpace(filter.Kind) != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if strings.TrimSpace(filter.Status) != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count flags: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 25
	}

	var flags []ReviewFlag
	err := query.
		Order("created_at DESC, flag_id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&flags).Error
	if err != nil {
		return nil, 0, fmt.Errorf("query flags: %w", err)
	}
	return flags, total, nil
}

func (s *Store) FlagCounts(ctx context.Context) ([]FlagCount, error) {
	var counts []FlagCount
	err := s.gdb.WithContext(ctx).
		Model(&ReviewFlag{}).
		Select("kind, status, COUNT(*) AS count").
		Group("kind, status").
		Order("kind, status").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("query flag counts: %w", err)
	}
	return counts, nil
}

func (s *Store) CatalogCounts(ctx context.Context) (*CatalogCounts, error) {
	counts := &CatalogCounts{}
	gdb := s.gdb.WithContext(ctx)

	if err := gdb.Model(&Product{}).
		Where("is_master = ?", true).
		Count(&counts.Parents).Error; err != nil {
		return nil, fmt.Errorf("count parent products: %w", err)
	}
	if err := gdb.Model(&Product{}).
		Where("is_master = ? AND active = ?", true, true).
		Count(&counts.ActiveParents).Error; err != nil {
		return nil, fmt.Errorf("count active parents: %w", err)
	}
	if err := gdb.Model(&Product{}).
		Where("is_master = ?", false).
		Count(&counts.Variants).Error; err != nil {
		return nil, fmt.Errorf("count variants: %w", err)
	}
	if err := gdb.Model(&Price{}).Count(&counts.Prices).Error; err != nil {
		return nil, fmt.Errorf("count prices: %w", err)
	}
	return counts, nil
}

func (s *Store) HasOpenDuplicateFlag(ctx context.Context, productID, duplicateID int64) (bool, error) {
	var count int64
	err := s.gdb.WithContext(ctx).
		Model(&ReviewFlag{}).
		Where("status = ?", FlagStatusPending).
		Where(
			"(target_product_id = ? AND duplicate_product_id = ?) OR (target_product_id = ? AND duplicate_product_id = ?)",
			productID, duplicateID, duplicateID, productID,
		).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("query open duplicate flags: %w", err)
	}
	return count > 0, nil
}

func (s *Store) CreateRun(ctx context.Context, run *ScrapeRun) error {
	if err := s.gdb.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("insert scrape run: %w", err)
	}
	return nil
}
