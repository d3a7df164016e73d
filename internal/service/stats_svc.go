package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"prestadash/internal/model"
	"prestadash/internal/repository"
	"prestadash/pkg/presta"
)

// StatsService pulls the aggregate counters of a store.
type StatsService struct {
	uow    *repository.SyncUnitOfWork
	client StoreClient
	logger *zap.Logger
	now    func() time.Time
}

// NewStatsService wires the stats fetcher over the shared unit of work.
func NewStatsService(uow *repository.SyncUnitOfWork, client StoreClient, logger *zap.Logger) *StatsService {
	return &StatsService{
		uow:    uow,
		client: client,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// FetchStats fetches the counters and upserts the site's single stats row.
// Revenue is kept as exact decimal text.
func (s *StatsService) FetchStats(ctx context.Context, siteID int64) (*model.SiteStats, error) {
	site, err := s.uow.Sites.GetByID(ctx, siteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}

	// 1. remote counters
	payload, err := s.client.Stats(ctx, TargetFor(site))
	if err != nil {
		s.fail(ctx, siteID, err)
		return nil, fmt.Errorf("fetch stats: %w", err)
	}

	// 2. revenue must parse as a decimal; an empty value counts as zero
	revenue, err := CanonicalDecimal(payload.TotalRevenue.String())
	if err != nil {
		err = &presta.MalformedResponseError{Reason: "total_revenue is not a decimal", Err: err}
		s.fail(ctx, siteID, err)
		return nil, err
	}
	if revenue == "" {
		revenue = "0"
	}

	// 3. upsert, then reread so the caller sees the stored row id
	stats := &model.SiteStats{
		SiteID:          siteID,
		TotalCustomers:  payload.TotalCustomers.Int64(),
		TotalOrders:     payload.TotalOrders.Int64(),
		TotalRevenue:    revenue,
		TotalProducts:   payload.TotalProducts.Int64(),
		TotalCategories: payload.TotalCategories.Int64(),
		LastUpdate:      s.now(),
	}
	if err := s.uow.Stats.Upsert(ctx, stats); err != nil {
		return nil, fmt.Errorf("save stats: %w", err)
	}

	saved, err := s.uow.Stats.GetBySite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	s.log(ctx, siteID, model.LogStatusSuccess, "statistics updated")
	s.logger.Info("site stats fetched",
		zap.Int64("site_id", siteID),
		zap.Int64("orders", saved.TotalOrders),
		zap.String("revenue", saved.TotalRevenue))
	return saved, nil
}

// GetStats returns the stored snapshot, zeroed when never fetched.
func (s *StatsService) GetStats(ctx context.Context, siteID int64) (*model.SiteStats, error) {
	stats, err := s.uow.Stats.GetBySite(ctx, siteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.SiteStats{SiteID: siteID, TotalRevenue: "0"}, nil
		}
		return nil, err
	}
	return stats, nil
}

// fail records a failed fetch in both the zap log and the module log.
func (s *StatsService) fail(ctx context.Context, siteID int64, err error) {
	s.logger.Warn("fetch stats failed", zap.Int64("site_id", siteID), zap.Error(err))
	s.log(ctx, siteID, model.LogStatusError, err.Error())
}

func (s *StatsService) log(ctx context.Context, siteID int64, status, message string) {
	entry := newLog(siteID, model.LogTypeStats, status, message, nil)
	if err := s.uow.Logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("write module log failed", zap.Int64("site_id", siteID), zap.Error(err))
	}
}
