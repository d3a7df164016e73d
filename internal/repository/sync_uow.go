package repository

import (
	"context"

	"gorm.io/gorm"
)

// SyncUnitOfWork groups the repositories touched by a reconciliation or a
// reset so they can share one transaction.
type SyncUnitOfWork struct {
	db           *gorm.DB
	Sites        SiteRepository
	Products     ProductRepository
	PriceHistory PriceHistoryRepository
	Alerts       StockAlertRepository
	Stats        SiteStatsRepository
	Logs         ModuleLogRepository
}

// NewSyncUnitOfWork creates the unit of work over db.
func NewSyncUnitOfWork(db *gorm.DB) *SyncUnitOfWork {
	return newSyncUnitOfWork(db)
}

func newSyncUnitOfWork(db *gorm.DB) *SyncUnitOfWork {
	return &SyncUnitOfWork{
		db:           db,
		Sites:        NewSiteRepository(db),
		Products:     NewProductRepository(db),
		PriceHistory: NewPriceHistoryRepository(db),
		Alerts:       NewStockAlertRepository(db),
		Stats:        NewSiteStatsRepository(db),
		Logs:         NewModuleLogRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single transaction.
// Returning an error from fn rolls everything back.
func (u *SyncUnitOfWork) Transaction(ctx context.Context, fn func(uow *SyncUnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newSyncUnitOfWork(tx))
	})
}
