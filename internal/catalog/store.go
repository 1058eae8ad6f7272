package catalog

import (
	"context"

	"leafmart.dev/catalog/internal/db"
)

// Store is the persistence surface the engine and the review manager
// work against. *db.Store satisfies it; tests use an in-memory fake.
type Store interface {
	MasterProducts(ctx context.Context) ([]db.Product, error)
	MasterPriceStats(ctx context.Context) (map[int64]db.PriceStats, error)
	ProductByID(ctx context.Context, id int64) (*db.Product, error)
	VariantsOf(ctx context.Context, masterID int64) ([]db.Product, error)
	CreateProduct(ctx context.Context, product *db.Product) error
	UpdateProduct(ctx context.Context, product *db.Product) error
	DeleteProductTree(ctx context.Context, masterID int64) error

	PricesOf(ctx context.Context, productID int64) ([]db.Price, error)
	UpsertPrice(ctx context.Context, price *db.Price) error
	DeletePrice(ctx context.Context, priceID int64) error
	MoveProductRefs(ctx context.Context, fromProductID, toProductID int64) error

	CreateFlag(ctx context.Context, flag *db.ReviewFlag) error
	FlagByUUID(ctx context.Context, flagUUID string) (*db.ReviewFlag, error)
	UpdateFlag(ctx context.Context, flag *db.ReviewFlag) error
	ListFlags(ctx context.Context, filter db.FlagFilter) ([]db.ReviewFlag, int64, error)
	FlagCounts(ctx context.Context) ([]db.FlagCount, error)
	CatalogCounts(ctx context.Context) (*db.CatalogCounts, error)
	HasOpenDuplicateFlag(ctx context.Context, productID, duplicateID int64) (bool, error)

	CreateRun(ctx context.Context, run *db.ScrapeRun) error
}

// TxRunner opens one transaction and hands its Store to fn. The
// transaction commits when fn returns nil and rolls back otherwise.
// The concrete runner wraps db.Store.WithTx; tests substitute a
// pass-through.
type TxRunner func(ctx context.Context, fn func(tx Store) error) error
