package db

import (
	"encoding/json"
	"time"
)

// Flag kinds, statuses, and match scopes stored on catalog.review_flags.
type FlagKind string

const (
	FlagKindMatchReview FlagKind = "match_review"
	FlagKindDataCleanup FlagKind = "data_cleanup"
)

type FlagStatus string

const (
	FlagStatusPending    FlagStatus = "pending"
	FlagStatusApproved   FlagStatus = "approved"
	FlagStatusRejected   FlagStatus = "rejected"
	FlagStatusDismissed  FlagStatus = "dismissed"
	FlagStatusCleaned    FlagStatus = "cleaned"
	FlagStatusAutoMerged FlagStatus = "auto_merged"
	FlagStatusMerged     FlagStatus = "merged"
)

type MatchScope string

const (
	MatchScopeSameSource  MatchScope = "same_source"
	MatchScopeCrossSource MatchScope = "cross_source"
)

// Product maps catalog.products. A row is either a parent (is_master,
// no weight) or a variant (master_product_id set, weight fields set).
// Variants nest exactly one level: a variant's parent is always a parent.
type Product struct {
	ProductID       int64     `gorm:"column:product_id;primaryKey;autoIncrement"`
	ProductUUID     string    `gorm:"column:product_uuid;type:uuid;not null;unique"`
	Name            string    `gorm:"column:name;type:text;not null"`
	Brand           *string   `gorm:"column:brand;type:text"`
	Category        *string   `gorm:"column:category;type:text"`
	THC             *float64  `gorm:"column:thc;type:double precision"`
	CBD             *float64  `gorm:"column:cbd;type:double precision"`
	IsMaster        bool      `gorm:"column:is_master;type:boolean;not null;default:false"`
	MasterProductID *int64    `gorm:"column:master_product_id;type:bigint"`
	WeightLabel     *string   `gorm:"column:weight_label;type:text"`
	WeightGrams     *float64  `gorm:"column:weight_grams;type:double precision"`
	Active          bool      `gorm:"column:active;type:boolean;not null;default:true"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamptz;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (Product) TableName() string { return "catalog.products" }

// Price maps catalog.prices. Always attaches to a variant, never a
// parent; unique per (variant, dispensary).
type Price struct {
	PriceID      int64     `gorm:"column:price_id;primaryKey;autoIncrement"`
	PriceUUID    string    `gorm:"column:price_uuid;type:uuid;not null;unique"`
	ProductID    int64     `gorm:"column:product_id;type:bigint;not null;index"`
	DispensaryID string    `gorm:"column:dispensary_id;type:text;not null"`
	Amount       float64   `gorm:"column:amount;type:double precision;not null"`
	InStock      bool      `gorm:"column:in_stock;type:boolean;not null;default:true"`
	SourceURL    *string   `gorm:"column:source_url;type:text"`
	LastSeenAt   time.Time `gorm:"column:last_seen_at;type:timestamptz;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (Price) TableName() string { return "catalog.prices" }

// ReviewFlag maps catalog.review_flags. target_product_id means the
// suggested match for match_review flags and the created-but-inactive
// product for data_cleanup flags; duplicate_product_id is only set on
// same-source duplicate flags.
type ReviewFlag struct {
	FlagID             int64           `gorm:"column:flag_id;primaryKey;autoIncrement"`
	FlagUUID           string          `gorm:"column:flag_uuid;type:uuid;not null;unique"`
	Kind               FlagKind        `gorm:"column:kind;type:text;not null"`
	Status             FlagStatus      `gorm:"column:status;type:text;not null;default:pending"`
	ConfidenceScore    *float64        `gorm:"column:confidence_score;type:double precision"`
	MatchScope         *MatchScope     `gorm:"column:match_scope;type:text"`
	TargetProductID    *int64          `gorm:"column:target_product_id;type:bigint"`
	DuplicateProductID *int64          `gorm:"column:duplicate_product_id;type:bigint"`
	IssueTags          json.RawMessage `gorm:"column:issue_tags;type:jsonb"`
	Snapshot           json.RawMessage `gorm:"column:snapshot;type:jsonb"`
	Notes              *string         `gorm:"column:notes;type:text"`
	ResolvedBy         *string         `gorm:"column:resolved_by;type:text"`
	ResolvedAt         *time.Time      `gorm:"column:resolved_at;type:timestamptz"`
	CreatedAt          time.Time       `gorm:"column:created_at;type:timestamptz;not null"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;type:timestamptz;not null"`
}

func (ReviewFlag) TableName() string { return "catalog.review_flags" }

// ProductReview maps catalog.product_reviews (user-facing reviews,
// re-pointed when duplicate products merge).
type ProductReview struct {
	ReviewID  int64     `gorm:"column:review_id;primaryKey;autoIncrement"`
	ProductID int64     `gorm:"column:product_id;type:bigint;not null;index"`
	Rating    int16     `gorm:"column:rating;type:smallint;not null"`
	Body      *string   `gorm:"column:body;type:text"`
	Author    string    `gorm:"column:author;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null"`
}

func (ProductReview) TableName() string { return "catalog.product_reviews" }

// WatchlistEntry maps catalog.watchlist_entries.
type WatchlistEntry struct {
	EntryID   int64     `gorm:"column:entry_id;primaryKey;autoIncrement"`
	ProductID int64     `gorm:"column:product_id;type:bigint;not null;index"`
	UserRef   string    `gorm:"column:user_ref;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null"`
}

func (WatchlistEntry) TableName() string { return "catalog.watchlist_entries" }

// ScrapeRun maps catalog.scrape_runs, one bookkeeping row per engine run.
type ScrapeRun struct {
	RunID        int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID      string     `gorm:"column:run_uuid;type:uuid;not null;unique"`
	DispensaryID string     `gorm:"column:dispensary_id;type:text;not null"`
	Status       string     `gorm:"column:status;type:text;not null;default:running"`
	Processed    int        `gorm:"column:processed;type:integer;not null;default:0"`
	Skipped      int        `gorm:"column:skipped;type:integer;not null;default:0"`
	AutoMerged   int        `gorm:"column:auto_merged;type:integer;not null;default:0"`
	Created      int        `gorm:"column:created;type:integer;not null;default:0"`
	Flagged      int        `gorm:"column:flagged;type:integer;not null;default:0"`
	ErrorMessage *string    `gorm:"column:error_message;type:text"`
	StartedAt    time.Time  `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt   *time.Time `gorm:"column:finished_at;type:timestamptz"`
}

func (ScrapeRun) TableName() string { return "catalog.scrape_runs" }

// FlagCount is a dashboard aggregate row, not a table.
type FlagCount struct {
	Kind   FlagKind   `json:"kind"`
	Status FlagStatus `json:"status"`
	Count  int64      `json:"count"`
}

// CatalogCounts is a dashboard aggregate, not a table.
type CatalogCounts struct {
	Parents       int64 `json:"parents"`
	ActiveParents int64 `json:"active_parents"`
	Variants      int64 `json:"variants"`
	Prices        int64 `json:"prices"`
}

// PriceStats summarizes the prices hanging off one parent's variants.
type PriceStats struct {
	Count        int
	Dispensaries []string
}

func autoMigrateModels() []any {
	return []any{
		&Product{},
		&Price{},
		&ReviewFlag{},
		&ProductReview{},
		&WatchlistEntry{},
		&ScrapeRun{},
	}
}
