package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"prestadash/internal/model"
)

// ==================== Interface ====================

// StockAlertRepository persists low / out of stock alerts.
type StockAlertRepository interface {
	// Create inserts an alert; an empty Status becomes active.
	Create(ctx context.Context, alert *model.StockAlert) error
	GetByID(ctx context.Context, id int64) (*model.StockAlert, error)
	// List pages alerts newest first and returns the unpaged total.
	List(ctx context.Context, filter AlertFilter) ([]model.StockAlert, int64, error)
	// ListByProduct returns every alert of a product in creation order.
	ListByProduct(ctx context.Context, productID int64) ([]model.StockAlert, error)
	// Resolve marks one alert resolved at the given time.
	Resolve(ctx context.Context, id int64, at time.Time) error

	// --- deletes, each returns the number of rows removed ---
	DeleteByProduct(ctx context.Context, productID int64) (int64, error)
	// DeleteBySite removes alerts of products that still belong to siteID,
	// so it must run before the products themselves are deleted.
	DeleteBySite(ctx context.Context, siteID int64) (int64, error)
	// DeleteOrphans removes alerts whose product no longer exists.
	DeleteOrphans(ctx context.Context) (int64, error)
}

// ==================== Filter ====================

// AlertFilter narrows List. Zero values mean "any"; Page starts at 1 and
// PageSize defaults to 50.
type AlertFilter struct {
	SiteID    int64
	ProductID int64
	Status    string
	AlertType string
	Page      int
	PageSize  int
}

// ==================== Implementation ====================

type stockAlertRepo struct {
	db *gorm.DB
}

// NewStockAlertRepository creates the gorm-backed alert repository.
func NewStockAlertRepository(db *gorm.DB) StockAlertRepository {
	return &stockAlertRepo{db: db}
}

func (r *stockAlertRepo) Create(ctx context.Context, alert *model.StockAlert) error {
	if alert.Status == "" {
		alert.Status = model.AlertStatusActive
	}
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *stockAlertRepo) GetByID(ctx context.Context, id int64) (*model.StockAlert, error) {
	var alert model.StockAlert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *stockAlertRepo) List(ctx context.Context, filter AlertFilter) ([]model.StockAlert, int64, error) {
	var alerts []model.StockAlert
	var total int64

	db := r.db.WithContext(ctx)
	query := db.Model(&model.StockAlert{})
	if filter.SiteID > 0 {
		sub := db.Model(&model.Product{}).Select("id").Where("site_id = ?", filter.SiteID)
		query = query.Where("product_id IN (?)", sub)
	}
	if filter.ProductID > 0 {
		query = query.Where("product_id = ?", filter.ProductID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AlertType != "" {
		query = query.Where("alert_type = ?", filter.AlertType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	offset := (filter.Page - 1) * filter.PageSize

	err := query.Order("created_at DESC, id DESC").Limit(filter.PageSize).Offset(offset).Find(&alerts).Error
	return alerts, total, err
}

func (r *stockAlertRepo) ListByProduct(ctx context.Context, productID int64) ([]model.StockAlert, error) {
	var alerts []model.StockAlert
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("id ASC").Find(&alerts).Error
	return alerts, err
}

func (r *stockAlertRepo) Resolve(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.StockAlert{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.AlertStatusResolved,
			"resolved_at": at,
		}).Error
}

func (r *stockAlertRepo) DeleteByProduct(ctx context.Context, productID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&model.StockAlert{})
	return res.RowsAffected, res.Error
}

func (r *stockAlertRepo) DeleteBySite(ctx context.Context, siteID int64) (int64, error) {
	db := r.db.WithContext(ctx)
	sub := db.Model(&model.Product{}).Select("id").Where("site_id = ?", siteID)
	res := db.Where("product_id IN (?)", sub).Delete(&model.StockAlert{})
	return res.RowsAffected, res.Error
}

func (r *stockAlertRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	db := r.db.WithContext(ctx)
	sub := db.Model(&model.Product{}).Select("id")
	res := db.Where("product_id NOT IN (?)", sub).Delete(&model.StockAlert{})
	return res.RowsAffected, res.Error
}
