package repository

import (
	"context"

	"gorm.io/gorm"

	"prestadash/internal/model"
)

// ModuleLogRepository stores the per-site activity log.
type ModuleLogRepository interface {
	Create(ctx context.Context, log *model.ModuleLog) error
	// List pages entries newest first and returns the unpaged total.
	List(ctx context.Context, filter LogFilter) ([]model.ModuleLog, int64, error)
	DeleteBySite(ctx context.Context, siteID int64) (int64, error)
}

// LogFilter narrows List the same way AlertFilter does.
type LogFilter struct {
	SiteID   int64
	Type     string
	Status   string
	Page     int
	PageSize int
}

type moduleLogRepo struct {
	db *gorm.DB
}

// NewModuleLogRepository creates the gorm-backed module log repository.
func NewModuleLogRepository(db *gorm.DB) ModuleLogRepository {
	return &moduleLogRepo{db: db}
}

func (r *moduleLogRepo) Create(ctx context.Context, log *model.ModuleLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *moduleLogRepo) List(ctx context.Context, filter LogFilter) ([]model.ModuleLog, int64, error) {
	var logs []model.ModuleLog
	var total int64

	query := r.db.WithContext(ctx).Model(&model.ModuleLog{})
	if filter.SiteID > 0 {
		query = query.Where("site_id = ?", filter.SiteID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
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

	err := query.Order("created_at DESC, id DESC").Limit(filter.PageSize).Offset(offset).Find(&logs).Error
	return logs, total, err
}

func (r *moduleLogRepo) DeleteBySite(ctx context.Context, siteID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("site_id = ?", siteID).Delete(&model.ModuleLog{})
	return res.RowsAffected, res.Error
}
