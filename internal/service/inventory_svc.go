package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"prestadash/internal/api/dto"
	"prestadash/internal/model"
	"prestadash/internal/repository"
)

// InventoryService is the read side of synced data plus the manual actions
// on it (product delete, alert resolution).
type InventoryService struct {
	uow    *repository.SyncUnitOfWork
	logger *zap.Logger
	now    func() time.Time
}

func NewInventoryService(uow *repository.SyncUnitOfWork, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		uow:    uow,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *InventoryService) ListProducts(ctx context.Context, req *dto.ListProductsReq) ([]model.Product, int64, error) {
	filter := repository.ProductFilter{
		SiteID:   req.SiteID,
		LowStock: req.LowStock,
		Keyword:  req.Keyword,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	switch req.Attributes {
	case "true":
		v := true
		filter.IsAttribute = &v
	case "false":
		v := false
		filter.IsAttribute = &v
	}
	return s.uow.Products.List(ctx, filter)
}

// GetProduct returns the product with its variants, price log and alerts.
func (s *InventoryService) GetProduct(ctx context.Context, id int64) (*dto.ProductDetailResp, error) {
	product, err := s.getProduct(ctx, s.uow, id)
	if err != nil {
		return nil, err
	}

	history, err := s.uow.PriceHistory.ListByProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	alerts, err := s.uow.Alerts.ListByProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &dto.ProductDetailResp{
		Product:      *product,
		PriceHistory: history,
		Alerts:       alerts,
	}
	if !product.IsAttribute {
		if detail.Variants, err = s.uow.Products.ListChildren(ctx, id); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// DeleteProduct removes the product, its variants and every row pointing
// at them.
func (s *InventoryService) DeleteProduct(ctx context.Context, id int64) error {
	return s.uow.Transaction(ctx, func(tx *repository.SyncUnitOfWork) error {
		product, err := s.getProduct(ctx, tx, id)
		if err != nil {
			return err
		}

		ids := []int64{product.ID}
		if !product.IsAttribute {
			children, err := tx.Products.ListChildren(ctx, product.ID)
			if err != nil {
				return err
			}
			for _, c := range children {
				ids = append(ids, c.ID)
			}
		}

		for _, pid := range ids {
			if _, err := tx.Alerts.DeleteByProduct(ctx, pid); err != nil {
				return fmt.Errorf("delete alerts of %d: %w", pid, err)
			}
			if _, err := tx.PriceHistory.DeleteByProduct(ctx, pid); err != nil {
				return fmt.Errorf("delete price history of %d: %w", pid, err)
			}
			if err := tx.Products.Delete(ctx, pid); err != nil {
				return fmt.Errorf("delete product %d: %w", pid, err)
			}
		}
		s.logger.Info("product deleted", zap.Int64("product_id", id), zap.Int("rows", len(ids)))
		return nil
	})
}

func (s *InventoryService) ListAlerts(ctx context.Context, req *dto.ListAlertsReq) ([]model.StockAlert, int64, error) {
	return s.uow.Alerts.List(ctx, repository.AlertFilter{
		SiteID:    req.SiteID,
		ProductID: req.ProductID,
		Status:    req.Status,
		AlertType: req.AlertType,
		Page:      req.Page,
		PageSize:  req.PageSize,
	})
}

// ResolveAlert is the manual acknowledgement of an alert. Resolving twice
// keeps the first resolution time.
func (s *InventoryService) ResolveAlert(ctx context.Context, id int64) (*model.StockAlert, error) {
	alert, err := s.uow.Alerts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	if alert.Status == model.AlertStatusResolved {
		return alert, nil
	}

	if err := s.uow.Alerts.Resolve(ctx, id, s.now()); err != nil {
		return nil, err
	}
	return s.uow.Alerts.GetByID(ctx, id)
}

func (s *InventoryService) getProduct(ctx context.Context, uow *repository.SyncUnitOfWork, id int64) (*model.Product, error) {
	product, err := uow.Products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}
