package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"prestadash/internal/model"
	"prestadash/internal/repository"
)

// remote timeline date layouts, interpreted as UTC when zone-less
var priceDateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// PriceHistoryService merges a store's price timeline into local history.
type PriceHistoryService struct {
	uow    *repository.SyncUnitOfWork
	client StoreClient
	logger *zap.Logger
}

func NewPriceHistoryService(uow *repository.SyncUnitOfWork, client StoreClient, logger *zap.Logger) *PriceHistoryService {
	return &PriceHistoryService{uow: uow, client: client, logger: logger}
}

// priceKey identifies a price point: whole seconds plus canonical price.
type priceKey struct {
	unix  int64
	price string
}

// RefreshPriceHistory inserts the remote price_changes entries not already
// recorded for the product and returns how many were added.
func (s *PriceHistoryService) RefreshPriceHistory(ctx context.Context, productID int64) (int, error) {
	// 1. product and its store
	product, err := s.uow.Products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrProductNotFound
		}
		return 0, err
	}
	if product.PrestaID <= 0 {
		return 0, ErrNoRemoteID
	}

	site, err := s.uow.Sites.GetByID(ctx, product.SiteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrSiteNotFound
		}
		return 0, err
	}

	// 2. remote timeline
	resp, err := s.client.PriceHistory(ctx, TargetFor(site), product.PrestaID)
	if err != nil {
		s.log(ctx, site.ID, model.LogStatusError, err.Error(), nil)
		return 0, fmt.Errorf("fetch price history: %w", err)
	}

	// 3. index what is already recorded
	existing, err := s.uow.PriceHistory.ListByProduct(ctx, product.ID)
	if err != nil {
		return 0, err
	}
	seen := make(map[priceKey]struct{}, len(existing))
	for _, e := range existing {
		if price, err := CanonicalDecimal(e.Price); err == nil {
			seen[priceKey{unix: e.Date.Unix(), price: price}] = struct{}{}
		}
	}

	log := s.logger.With(zap.Int64("product_id", product.ID), zap.Int64("presta_id", product.PrestaID))

	// 4. keep readable, unseen points; duplicates inside the response collapse too
	var fresh []model.PriceHistory
	for i, change := range resp.History.PriceChanges {
		date, ok := parsePriceDate(change.Date.String())
		if !ok {
			log.Warn("skip price change with unreadable date", zap.Int("index", i), zap.String("date", change.Date.String()))
			continue
		}
		price, err := CanonicalDecimal(change.NewPrice.String())
		if err != nil || price == "" {
			log.Warn("skip price change without a decimal price", zap.Int("index", i), zap.String("price", change.NewPrice.String()))
			continue
		}

		key := priceKey{unix: date.Unix(), price: price}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		fresh = append(fresh, model.PriceHistory{
			ProductID: product.ID,
			Price:     price,
			Date:      date,
			Type:      remotePriceType(change.Type.String()),
		})
	}

	// 5. one insert for the whole batch
	if len(fresh) > 0 {
		err = s.uow.Transaction(ctx, func(tx *repository.SyncUnitOfWork) error {
			return tx.PriceHistory.AppendBatch(ctx, fresh)
		})
		if err != nil {
			return 0, fmt.Errorf("save price history: %w", err)
		}
	}

	s.log(ctx, site.ID, model.LogStatusSuccess,
		fmt.Sprintf("%d price point(s) added", len(fresh)),
		map[string]interface{}{"product_id": product.ID, "added": len(fresh), "remote": len(resp.History.PriceChanges)})
	log.Info("price history refreshed", zap.Int("added", len(fresh)))
	return len(fresh), nil
}

func (s *PriceHistoryService) log(ctx context.Context, siteID int64, status, message string, details map[string]interface{}) {
	entry := newLog(siteID, model.LogTypePriceHistory, status, message, details)
	if err := s.uow.Logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("write module log failed", zap.Int64("site_id", siteID), zap.Error(err))
	}
}

// parsePriceDate tries each layout in order and truncates to whole seconds.
func parsePriceDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range priceDateLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC().Truncate(time.Second), true
		}
	}
	return time.Time{}, false
}

// remotePriceType keeps known type tags and maps anything else to "change".
func remotePriceType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if model.IsPriceType(t) {
		return t
	}
	return model.PriceTypeChange
}
