package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"prestadash/internal/model"
)

// ==================== Interface ====================

// SiteRepository persists connected stores.
type SiteRepository interface {
	Create(ctx context.Context, site *model.Site) error
	GetByID(ctx context.Context, id int64) (*model.Site, error)
	Update(ctx context.Context, site *model.Site) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	Delete(ctx context.Context, id int64) error

	List(ctx context.Context, filter SiteFilter) ([]model.Site, int64, error)
	ListByStatus(ctx context.Context, status string) ([]model.Site, error)

	// FindByAPIKey returns at most limit sites sharing the key.
	FindByAPIKey(ctx context.Context, apiKey string, limit int) ([]model.Site, error)

	// Sync bookkeeping
	AcquireSync(ctx context.Context, id int64, now, staleBefore time.Time) (bool, error)
	ReleaseSync(ctx context.Context, id int64) error
	StampSync(ctx context.Context, id int64, status string, at time.Time) error
	UpdateStatus(ctx context.Context, id int64, status string) error
	ClearLastSync(ctx context.Context, id int64) error
}

// ==================== Filter ====================

// SiteFilter 0 / "" means "no filter".
type SiteFilter struct {
	OwnerID  int64
	Status   string
	Keyword  string
	Page     int
	PageSize int
}

// ==================== Implementation ====================

type siteRepo struct {
	db *gorm.DB
}

// NewSiteRepository creates the gorm-backed site repository.
func NewSiteRepository(db *gorm.DB) SiteRepository {
	return &siteRepo{db: db}
}

func (r *siteRepo) Create(ctx context.Context, site *model.Site) error {
	if site.Status == "" {
		site.Status = model.SiteStatusDisconnected
	}
	if site.SyncState == "" {
		site.SyncState = model.SyncStateIdle
	}
	return r.db.WithContext(ctx).Create(site).Error
}

func (r *siteRepo) GetByID(ctx context.Context, id int64) (*model.Site, error) {
	var site model.Site
	if err := r.db.WithContext(ctx).First(&site, id).Error; err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *siteRepo) Update(ctx context.Context, site *model.Site) error {
	return r.db.WithContext(ctx).Save(site).Error
}

func (r *siteRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Site{}).Where("id = ?", id).Updates(fields).Error
}

func (r *siteRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Site{}, id).Error
}

func (r *siteRepo) List(ctx context.Context, filter SiteFilter) ([]model.Site, int64, error) {
	var sites []model.Site
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Site{})
	if filter.OwnerID > 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		query = query.Where("name LIKE ? OR url LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	err := query.Order("id ASC").Limit(filter.PageSize).Offset(offset).Find(&sites).Error
	return sites, total, err
}

func (r *siteRepo) ListByStatus(ctx context.Context, status string) ([]model.Site, error) {
	var sites []model.Site
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("id ASC").Find(&sites).Error
	return sites, err
}

func (r *siteRepo) FindByAPIKey(ctx context.Context, apiKey string, limit int) ([]model.Site, error) {
	if limit <= 0 {
		limit = 1
	}
	var sites []model.Site
	err := r.db.WithContext(ctx).
		Where("api_key = ?", apiKey).
		Order("id ASC").
		Limit(limit).
		Find(&sites).Error
	return sites, err
}

// AcquireSync swaps sync_state idle -> syncing in a single conditional UPDATE.
// A syncing token started before staleBefore is treated as abandoned.
func (r *siteRepo) AcquireSync(ctx context.Context, id int64, now, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Site{}).
		Where("id = ?", id).
		Where("sync_state <> ? OR sync_started_at IS NULL OR sync_started_at < ?", model.SyncStateSyncing, staleBefore).
		Updates(map[string]interface{}{
			"sync_state":      model.SyncStateSyncing,
			"sync_started_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *siteRepo) ReleaseSync(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Site{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_state":      model.SyncStateIdle,
			"sync_started_at": nil,
		}).Error
}

func (r *siteRepo) StampSync(ctx context.Context, id int64, status string, at time.Time) error {
	return r.UpdateFields(ctx, id, map[string]interface{}{
		"status":    status,
		"last_sync": at,
	})
}

func (r *siteRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.UpdateFields(ctx, id, map[string]interface{}{"status": status})
}

func (r *siteRepo) ClearLastSync(ctx context.Context, id int64) error {
	return r.UpdateFields(ctx, id, map[string]interface{}{"last_sync": nil})
}
