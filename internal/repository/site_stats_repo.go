package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"prestadash/internal/model"
)

// SiteStatsRepository keeps one statistics snapshot per site.
type SiteStatsRepository interface {
	// Upsert inserts or overwrites the snapshot keyed by SiteID.
	Upsert(ctx context.Context, stats *model.SiteStats) error
	GetBySite(ctx context.Context, siteID int64) (*model.SiteStats, error)
	Zero(ctx context.Context, siteID int64, at time.Time) error
	DeleteBySite(ctx context.Context, siteID int64) error
}

type siteStatsRepo struct {
	db *gorm.DB
}

// NewSiteStatsRepository creates the gorm-backed stats repository.
func NewSiteStatsRepository(db *gorm.DB) SiteStatsRepository {
	return &siteStatsRepo{db: db}
}

func (r *siteStatsRepo) Upsert(ctx context.Context, stats *model.SiteStats) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "site_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_customers",
				"total_orders",
				"total_revenue",
				"total_products",
				"total_categories",
				"last_update",
				"updated_at",
			}),
		}).
		Create(stats).Error
}

func (r *siteStatsRepo) GetBySite(ctx context.Context, siteID int64) (*model.SiteStats, error) {
	var stats model.SiteStats
	if err := r.db.WithContext(ctx).Where("site_id = ?", siteID).First(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *siteStatsRepo) Zero(ctx context.Context, siteID int64, at time.Time) error {
	return r.Upsert(ctx, &model.SiteStats{
		SiteID:       siteID,
		TotalRevenue: "0",
		LastUpdate:   at,
	})
}

func (r *siteStatsRepo) DeleteBySite(ctx context.Context, siteID int64) error {
	return r.db.WithContext(ctx).Where("site_id = ?", siteID).Delete(&model.SiteStats{}).Error
}
