package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prestadash/internal/events"
	"prestadash/internal/model"
	"prestadash/internal/repository"
)

// Record outcomes
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"

	ActionCreated = "created"
	ActionUpdated = "updated"
)

// RecordResult is the outcome of reconciling one record of a batch.
type RecordResult struct {
	Index       int    `json:"index"`
	RemoteID    int64  `json:"remote_id,omitempty"`
	AttributeID int64  `json:"attribute_id,omitempty"`
	Outcome     string `json:"outcome"`
	Action      string `json:"action,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// BatchResult summarises one SyncAllProducts call.
type BatchResult struct {
	RunID   string
	Results []RecordResult

	Synced        int
	Created       int
	Updated       int
	Skipped       int
	Failed        int
	AlertsCreated int

	StartedAt  time.Time
	FinishedAt time.Time
}

func (b *BatchResult) add(r RecordResult) {
	b.Results = append(b.Results, r)
	switch r.Outcome {
	case OutcomeOK:
		b.Synced++
		if r.Action == ActionCreated {
			b.Created++
		} else {
			b.Updated++
		}
	case OutcomeSkipped:
		b.Skipped++
	case OutcomeFailed:
		b.Failed++
	}
}

// SyncService is the reconciliation engine: it merges remote product records
// into local products, price history and stock alerts.
type SyncService struct {
	uow       *repository.SyncUnitOfWork
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewSyncService creates the reconciliation engine.
func NewSyncService(uow *repository.SyncUnitOfWork, publisher events.Publisher, logger *zap.Logger) *SyncService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &SyncService{
		uow:       uow,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ==================== Batch driver ====================

// SyncAllProducts reconciles raws strictly in order. A malformed or failing
// record does not stop the batch; cancellation of ctx does. The site is
// stamped with last_sync and a status of connected, or error when any record
// failed.
func (s *SyncService) SyncAllProducts(ctx context.Context, site *model.Site, raws []json.RawMessage) (*BatchResult, error) {
	items := make([]batchItem, 0, len(raws))
	for _, raw := range raws {
		rec, err := ParseRecord(raw)
		items = append(items, batchItem{rec: rec, err: err})
	}
	return s.run(ctx, site, items)
}

// SyncRecords is SyncAllProducts for records validated beforehand.
func (s *SyncService) SyncRecords(ctx context.Context, site *model.Site, records []Record) (*BatchResult, error) {
	items := make([]batchItem, 0, len(records))
	for _, rec := range records {
		items = append(items, batchItem{rec: rec})
	}
	return s.run(ctx, site, items)
}

type batchItem struct {
	rec Record
	err error
}

func (s *SyncService) run(ctx context.Context, site *model.Site, items []batchItem) (*BatchResult, error) {
	batch := &BatchResult{
		RunID:     uuid.NewString(),
		Results:   make([]RecordResult, 0, len(items)),
		StartedAt: s.now(),
	}
	log := s.logger.With(zap.Int64("site_id", site.ID), zap.String("run_id", batch.RunID))

	var created []events.StockAlertEvent
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			s.stamp(ctx, site.ID, model.SiteStatusError)
			s.publish(ctx, log, created)
			return batch, fmt.Errorf("sync aborted at record %d: %w", i, err)
		}

		if item.err != nil {
			log.Warn("rejected product record", zap.Int("index", i), zap.Error(item.err))
			batch.add(RecordResult{Index: i, Outcome: OutcomeFailed, Reason: item.err.Error()})
			continue
		}

		res, alerts := s.reconcileLogged(ctx, log, site.ID, item.rec)
		res.Index = i
		batch.add(res)
		created = append(created, alerts...)
	}

	batch.AlertsCreated = len(created)
	batch.FinishedAt = s.now()

	status := model.SiteStatusConnected
	if batch.Failed > 0 {
		status = model.SiteStatusError
	}
	if err := s.uow.Sites.StampSync(context.WithoutCancel(ctx), site.ID, status, batch.FinishedAt); err != nil {
		return batch, fmt.Errorf("stamp site: %w", err)
	}
	s.publish(ctx, log, created)

	log.Info("product batch reconciled",
		zap.Int("records", len(items)),
		zap.Int("synced", batch.Synced),
		zap.Int("skipped", batch.Skipped),
		zap.Int("failed", batch.Failed),
		zap.Int("alerts", batch.AlertsCreated))
	return batch, nil
}

// publish runs after the alerts are committed; delivery failures are only logged.
func (s *SyncService) publish(ctx context.Context, log *zap.Logger, created []events.StockAlertEvent) {
	if len(created) == 0 {
		return
	}
	if err := s.publisher.PublishStockAlerts(context.WithoutCancel(ctx), created); err != nil {
		log.Warn("publish stock alerts failed", zap.Int("count", len(created)), zap.Error(err))
	}
}

func (s *SyncService) reconcileLogged(ctx context.Context, log *zap.Logger, siteID int64, rec Record) (RecordResult, []events.StockAlertEvent) {
	res := RecordResult{RemoteID: rec.RemoteID()}
	if attr, ok := rec.(*AttributeRecord); ok {
		res.AttributeID = attr.AttributeID
	}

	outcome, err := s.Reconcile(ctx, siteID, rec)
	if err != nil {
		log.Error("reconcile record failed",
			zap.Int64("presta_id", res.RemoteID),
			zap.Int64("attribute_id", res.AttributeID),
			zap.Error(err))
		res.Outcome = OutcomeFailed
		res.Reason = err.Error()
		return res, nil
	}

	res.Outcome = outcome.Outcome
	res.Action = outcome.Action
	res.Reason = outcome.Reason
	if outcome.Outcome == OutcomeSkipped {
		log.Info("attribute deferred",
			zap.Int64("presta_id", res.RemoteID),
			zap.Int64("attribute_id", res.AttributeID),
			zap.String("reason", outcome.Reason))
	}
	return res, outcome.Alerts
}

func (s *SyncService) stamp(ctx context.Context, siteID int64, status string) {
	if err := s.uow.Sites.StampSync(context.WithoutCancel(ctx), siteID, status, s.now()); err != nil {
		s.logger.Error("stamp site failed", zap.Int64("site_id", siteID), zap.Error(err))
	}
}

// ==================== Single record ====================

// Outcome is what reconciling one record did.
type Outcome struct {
	Outcome string
	Action  string
	Reason  string
	Alerts  []events.StockAlertEvent
}

// Reconcile applies one record inside its own transaction.
func (s *SyncService) Reconcile(ctx context.Context, siteID int64, rec Record) (Outcome, error) {
	var out Outcome
	err := s.uow.Transaction(ctx, func(tx *repository.SyncUnitOfWork) error {
		var err error
		switch r := rec.(type) {
		case *PrincipalRecord:
			out, err = s.reconcilePrincipal(ctx, tx, siteID, r)
		case *AttributeRecord:
			out, err = s.reconcileAttribute(ctx, tx, siteID, r)
		default:
			err = fmt.Errorf("%w: unsupported record type %T", ErrInvalidRecord, rec)
		}
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// 1. find by remote id / reference among principals
// 2. existing: price row, name / reference, quantity + alert on change
// 3. missing: create, initial price row, alert on initial quantity
func (s *SyncService) reconcilePrincipal(ctx context.Context, tx *repository.SyncUnitOfWork, siteID int64, rec *PrincipalRecord) (Outcome, error) {
	now := s.now()

	product, err := tx.Products.FindPrincipal(ctx, siteID, rec.ID, rec.Reference)
	if err != nil {
		return Outcome{}, fmt.Errorf("find product %d: %w", rec.ID, err)
	}

	if product != nil {
		if err := s.appendPrice(ctx, tx, product.ID, rec.Price, model.PriceTypeSync, now); err != nil {
			return Outcome{}, err
		}

		fields := map[string]interface{}{
			"status": rec.Status,
		}
		if rec.Name != "" {
			fields["name"] = rec.Name
		}
		if rec.Reference != "" {
			fields["reference"] = rec.Reference
		}
		quantityChanged := product.Quantity != rec.Quantity
		if quantityChanged {
			fields["quantity"] = rec.Quantity
			fields["last_update"] = now
		}
		if err := tx.Products.UpdateFields(ctx, product.ID, fields); err != nil {
			return Outcome{}, fmt.Errorf("update product %d: %w", product.ID, err)
		}
		if rec.Name != "" {
			product.Name = rec.Name
		}
		if rec.Reference != "" {
			product.Reference = rec.Reference
		}
		product.Quantity = rec.Quantity

		out := Outcome{Outcome: OutcomeOK, Action: ActionUpdated}
		if quantityChanged {
			out.Alerts, err = s.evaluateAlert(ctx, tx, product, now)
			if err != nil {
				return Outcome{}, err
			}
		}
		return out, nil
	}

	product = &model.Product{
		SiteID:      siteID,
		PrestaID:    rec.ID,
		Name:        rec.Name,
		Reference:   rec.Reference,
		Quantity:    rec.Quantity,
		MinQuantity: model.DefaultMinQuantity,
		ProductType: rec.ProductType,
		Status:      rec.Status,
		Condition:   rec.Condition,
		LastUpdate:  now,
	}
	if err := tx.Products.Create(ctx, product); err != nil {
		return Outcome{}, fmt.Errorf("create product %d: %w", rec.ID, err)
	}
	if err := s.appendPrice(ctx, tx, product.ID, rec.Price, model.PriceTypeSync, now); err != nil {
		return Outcome{}, err
	}

	alerts, err := s.evaluateAlert(ctx, tx, product, now)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Outcome: OutcomeOK, Action: ActionCreated, Alerts: alerts}, nil
}

// Attributes are never created before their parent: a missing parent skips
// the record until a later sync. No alerts are evaluated for attributes.
func (s *SyncService) reconcileAttribute(ctx context.Context, tx *repository.SyncUnitOfWork, siteID int64, rec *AttributeRecord) (Outcome, error) {
	now := s.now()

	if rec.ParentID <= 0 {
		return Outcome{
			Outcome: OutcomeSkipped,
			Reason:  fmt.Sprintf("attribute %d has no parent product", rec.AttributeID),
		}, nil
	}

	parent, err := tx.Products.FindPrincipalByPrestaID(ctx, siteID, rec.ParentID)
	if err != nil {
		return Outcome{}, fmt.Errorf("find parent %d: %w", rec.ParentID, err)
	}
	if parent == nil {
		return Outcome{
			Outcome: OutcomeSkipped,
			Reason:  fmt.Sprintf("parent product %d not synced yet", rec.ParentID),
		}, nil
	}

	name := attributeName(parent.Name, rec)

	existing, err := tx.Products.FindAttribute(ctx, siteID, rec.AttributeID, parent.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("find attribute %d: %w", rec.AttributeID, err)
	}

	if existing != nil {
		fields := map[string]interface{}{
			"name":        name,
			"reference":   rec.Reference,
			"quantity":    rec.Quantity,
			"last_update": now,
		}
		if err := tx.Products.UpdateFields(ctx, existing.ID, fields); err != nil {
			return Outcome{}, fmt.Errorf("update attribute %d: %w", existing.ID, err)
		}
		if err := s.appendPrice(ctx, tx, existing.ID, rec.Price, model.PriceTypeAttribute, now); err != nil {
			return Outcome{}, err
		}
		return Outcome{Outcome: OutcomeOK, Action: ActionUpdated}, nil
	}

	parentID := parent.ID
	product := &model.Product{
		SiteID:      siteID,
		PrestaID:    rec.ID,
		AttributeID: rec.AttributeID,
		ParentID:    &parentID,
		IsAttribute: true,
		Name:        name,
		Reference:   rec.Reference,
		Quantity:    rec.Quantity,
		MinQuantity: model.DefaultMinQuantity,
		ProductType: model.ProductTypeAttribute,
		Status:      parent.Status,
		Condition:   parent.Condition,
		LastUpdate:  now,
	}
	if err := tx.Products.Create(ctx, product); err != nil {
		return Outcome{}, fmt.Errorf("create attribute %d: %w", rec.AttributeID, err)
	}
	if err := s.appendPrice(ctx, tx, product.ID, rec.Price, model.PriceTypeAttribute, now); err != nil {
		return Outcome{}, err
	}
	return Outcome{Outcome: OutcomeOK, Action: ActionCreated}, nil
}

func (s *SyncService) appendPrice(ctx context.Context, tx *repository.SyncUnitOfWork, productID int64, price, priceType string, at time.Time) error {
	if price == "" {
		return nil
	}
	entry := &model.PriceHistory{
		ProductID: productID,
		Price:     price,
		Date:      at,
		Type:      priceType,
	}
	if err := tx.PriceHistory.Append(ctx, entry); err != nil {
		return fmt.Errorf("append price for product %d: %w", productID, err)
	}
	return nil
}

// evaluateAlert creates at most one alert for the product's current quantity.
func (s *SyncService) evaluateAlert(ctx context.Context, tx *repository.SyncUnitOfWork, product *model.Product, at time.Time) ([]events.StockAlertEvent, error) {
	alertType := AlertTypeFor(product.Quantity)
	if alertType == "" {
		return nil, nil
	}

	alert := &model.StockAlert{
		ProductID: product.ID,
		AlertType: alertType,
		Status:    model.AlertStatusActive,
		CreatedAt: at,
	}
	if err := tx.Alerts.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("create alert for product %d: %w", product.ID, err)
	}

	return []events.StockAlertEvent{{
		AlertID:   alert.ID,
		SiteID:    product.SiteID,
		ProductID: product.ID,
		PrestaID:  product.PrestaID,
		Reference: product.Reference,
		Name:      product.Name,
		AlertType: alertType,
		Quantity:  product.Quantity,
		CreatedAt: at,
	}}, nil
}

// AlertTypeFor maps a quantity to the alert band it falls in, or "".
// Negative stock (back orders) counts as out of stock.
func AlertTypeFor(quantity int) string {
	switch {
	case quantity <= 0:
		return model.AlertTypeOutOfStock
	case quantity <= model.LowStockThreshold:
		return model.AlertTypeLowStock
	}
	return ""
}

func attributeName(parentName string, rec *AttributeRecord) string {
	switch {
	case rec.Declinaisons != "" && parentName != "":
		return parentName + " " + rec.Declinaisons
	case rec.Declinaisons != "":
		return rec.Declinaisons
	case rec.Name != "":
		return rec.Name
	}
	return parentName
}
