package repository

import (
	"context"

	"gorm.io/gorm"

	"prestadash/internal/model"
)

// PriceHistoryRepository is the append-only price log of products.
type PriceHistoryRepository interface {
	Append(ctx context.Context, entry *model.PriceHistory) error
	// AppendBatch inserts entries in chunks of 100; an empty slice is a no-op.
	AppendBatch(ctx context.Context, entries []model.PriceHistory) error
	// ListByProduct returns the product's history oldest first.
	ListByProduct(ctx context.Context, productID int64) ([]model.PriceHistory, error)
	CountByProduct(ctx context.Context, productID int64) (int64, error)

	DeleteByProduct(ctx context.Context, productID int64) (int64, error)
	DeleteBySite(ctx context.Context, siteID int64) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

type priceHistoryRepo struct {
	db *gorm.DB
}

// NewPriceHistoryRepository creates the gorm-backed price history repository.
func NewPriceHistoryRepository(db *gorm.DB) PriceHistoryRepository {
	return &priceHistoryRepo{db: db}
}

func (r *priceHistoryRepo) Append(ctx context.Context, entry *model.PriceHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *priceHistoryRepo) AppendBatch(ctx context.Context, entries []model.PriceHistory) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(entries, 100).Error
}

func (r *priceHistoryRepo) ListByProduct(ctx context.Context, productID int64) ([]model.PriceHistory, error) {
	var entries []model.PriceHistory
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("date ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *priceHistoryRepo) CountByProduct(ctx context.Context, productID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.PriceHistory{}).Where("product_id = ?", productID).Count(&n).Error
	return n, err
}

func (r *priceHistoryRepo) DeleteByProduct(ctx context.Context, productID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&model.PriceHistory{})
	return res.RowsAffected, res.Error
}

func (r *priceHistoryRepo) DeleteBySite(ctx context.Context, siteID int64) (int64, error) {
	db := r.db.WithContext(ctx)
	sub := db.Model(&model.Product{}).Select("id").Where("site_id = ?", siteID)
	res := db.Where("product_id IN (?)", sub).Delete(&model.PriceHistory{})
	return res.RowsAffected, res.Error
}

func (r *priceHistoryRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx)
	sub := db.Model(&model.Product{}).Select("id")
	res := db.Where("product_id NOT IN (?)", sub).Delete(&model.PriceHistory{})
	return res.RowsAffected, res.Error
}
