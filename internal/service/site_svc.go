package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"prestadash/internal/api/dto"
	"prestadash/internal/model"
	"prestadash/internal/repository"
	"prestadash/pkg/presta"
)

// ==================== Dependencies ====================

// StoreClient is the part of the remote store client the services use.
type StoreClient interface {
	Ping(ctx context.Context, target presta.Target) (*presta.PingResp, error)
	Products(ctx context.Context, target presta.Target) ([]json.RawMessage, error)
	ProductsWithAttributes(ctx context.Context, target presta.Target) ([]json.RawMessage, error)
	Stats(ctx context.Context, target presta.Target) (*presta.StatsPayload, error)
	PriceHistory(ctx context.Context, target presta.Target, idProduct int64) (*presta.PriceHistoryResp, error)
}

// SiteOptions tunes the lifecycle manager.
type SiteOptions struct {
	// also pull products_with_attributes during Sync
	SyncAttributes bool
	// a syncing token older than this may be taken over
	StaleLockAfter time.Duration
}

// DefaultSiteOptions returns the production defaults.
func DefaultSiteOptions() SiteOptions {
	return SiteOptions{
		SyncAttributes: true,
		StaleLockAfter: 30 * time.Minute,
	}
}

// ConnectionResult is the answer of TestConnection.
type ConnectionResult struct {
	Success bool
	Message string
}

// OrphanSweepResult counts the rows removed by SweepOrphans.
type OrphanSweepResult struct {
	PriceHistory int64
	Alerts       int64
}

// ==================== Service ====================

// SiteService owns the lifecycle of a connected store: status, connection
// tests, syncs, resets and the per-site sync guard.
type SiteService struct {
	uow    *repository.SyncUnitOfWork
	client StoreClient
	sync   *SyncService
	opts   SiteOptions
	logger *zap.Logger
	now    func() time.Time
}

// NewSiteService creates the site lifecycle manager.
func NewSiteService(
	uow *repository.SyncUnitOfWork,
	client StoreClient,
	sync *SyncService,
	opts SiteOptions,
	logger *zap.Logger,
) *SiteService {
	if opts.StaleLockAfter <= 0 {
		opts.StaleLockAfter = DefaultSiteOptions().StaleLockAfter
	}
	return &SiteService{
		uow:    uow,
		client: client,
		sync:   sync,
		opts:   opts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// TargetFor describes how the remote client reaches site.
func TargetFor(site *model.Site) presta.Target {
	return presta.Target{
		URL:          site.URL,
		APIKey:       site.APIKey,
		BasicUser:    site.HTTPAuthUser,
		BasicPass:    site.HTTPAuthPassword,
		BasicEnabled: site.HasBasicAuth(),
	}
}

// ==================== CRUD ====================

// CreateSite registers a store. It starts disconnected and idle.
func (s *SiteService) CreateSite(ctx context.Context, req *dto.CreateSiteReq) (*model.Site, error) {
	site := &model.Site{
		OwnerID:          req.OwnerID,
		Name:             strings.TrimSpace(req.Name),
		URL:              strings.TrimRight(strings.TrimSpace(req.URL), "/"),
		APIKey:           strings.TrimSpace(req.APIKey),
		HTTPAuthEnabled:  req.HTTPAuthEnabled,
		HTTPAuthUser:     req.HTTPAuthUser,
		HTTPAuthPassword: req.HTTPAuthPassword,
		Status:           model.SiteStatusDisconnected,
		SyncState:        model.SyncStateIdle,
	}
	if site.Name == "" {
		site.Name = site.URL
	}
	if err := s.uow.Sites.Create(ctx, site); err != nil {
		return nil, fmt.Errorf("create site: %w", err)
	}
	s.logger.Info("site created", zap.Int64("site_id", site.ID), zap.Int64("owner_id", site.OwnerID))
	return site, nil
}

// GetSite returns ErrSiteNotFound for unknown ids.
func (s *SiteService) GetSite(ctx context.Context, id int64) (*model.Site, error) {
	site, err := s.uow.Sites.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}
	return site, nil
}

func (s *SiteService) ListSites(ctx context.Context, req *dto.ListSitesReq) ([]model.Site, int64, error) {
	return s.uow.Sites.List(ctx, repository.SiteFilter{
		OwnerID:  req.OwnerID,
		Status:   req.Status,
		Keyword:  req.Keyword,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
}

// UpdateSite applies the non-nil fields. Changing how the store is reached
// drops the site back to disconnected until the next connection test.
func (s *SiteService) UpdateSite(ctx context.Context, id int64, req *dto.UpdateSiteReq) (*model.Site, error) {
	site, err := s.GetSite(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	reach := false
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.URL != nil {
		fields["url"] = strings.TrimRight(strings.TrimSpace(*req.URL), "/")
		reach = true
	}
	if req.APIKey != nil {
		fields["api_key"] = strings.TrimSpace(*req.APIKey)
		reach = true
	}
	if req.HTTPAuthEnabled != nil {
		fields["http_auth_enabled"] = *req.HTTPAuthEnabled
		reach = true
	}
	if req.HTTPAuthUser != nil {
		fields["http_auth_user"] = *req.HTTPAuthUser
		reach = true
	}
	if req.HTTPAuthPassword != nil {
		fields["http_auth_password"] = *req.HTTPAuthPassword
		reach = true
	}
	if reach {
		fields["status"] = model.SiteStatusDisconnected
	}
	if len(fields) == 0 {
		return site, nil
	}

	if err := s.uow.Sites.UpdateFields(ctx, id, fields); err != nil {
		return nil, fmt.Errorf("update site: %w", err)
	}
	return s.GetSite(ctx, id)
}

// DeleteSite removes the site and everything that belongs to it.
func (s *SiteService) DeleteSite(ctx context.Context, id int64) error {
	if _, err := s.GetSite(ctx, id); err != nil {
		return err
	}

	return s.withSyncGuard(ctx, id, func() error {
		return s.uow.Transaction(ctx, func(tx *repository.SyncUnitOfWork) error {
			if err := wipeSiteData(ctx, tx, id); err != nil {
				return err
			}
			if _, err := tx.Logs.DeleteBySite(ctx, id); err != nil {
				return fmt.Errorf("delete logs: %w", err)
			}
			if err := tx.Stats.DeleteBySite(ctx, id); err != nil {
				return fmt.Errorf("delete stats: %w", err)
			}
			return tx.Sites.Delete(ctx, id)
		})
	})
}

// ==================== Connection ====================

// TestConnection pings the store and records the outcome as site status:
// connected on success, disconnected when the store answered with a clean
// failure, error on transport or unexpected failures. Remote failures are
// reported in the result; the error return is for local failures only.
func (s *SiteService) TestConnection(ctx context.Context, siteID int64) (ConnectionResult, error) {
	site, err := s.GetSite(ctx, siteID)
	if err != nil {
		return ConnectionResult{}, err
	}

	ping, pingErr := s.client.Ping(ctx, TargetFor(site))

	var (
		result ConnectionResult
		status string
		fields = map[string]interface{}{}
	)
	switch {
	case pingErr == nil:
		status = model.SiteStatusConnected
		result = ConnectionResult{Success: true, Message: "connection successful"}
		if v := ping.Version.String(); v != "" {
			fields["presta_version"] = v
			result.Message = fmt.Sprintf("connection successful (PrestaShop %s)", v)
		}
	case presta.IsCleanFailure(pingErr):
		status = model.SiteStatusDisconnected
		result = ConnectionResult{Message: pingErr.Error()}
	default:
		status = model.SiteStatusError
		result = ConnectionResult{Message: pingErr.Error()}
	}
	fields["status"] = status

	if err := s.uow.Sites.UpdateFields(ctx, siteID, fields); err != nil {
		s.logger.Error("update site status failed", zap.Int64("site_id", siteID), zap.Error(err))
	}

	logStatus := model.LogStatusSuccess
	if !result.Success {
		logStatus = model.LogStatusError
	}
	s.writeLog(ctx, siteID, model.LogTypeConnection, logStatus, result.Message, map[string]interface{}{
		"status": status,
	})

	s.logger.Info("connection tested",
		zap.Int64("site_id", siteID),
		zap.Bool("success", result.Success),
		zap.String("status", status))
	return result, nil
}

// ==================== Sync ====================

// Sync pulls the full product list of the store and reconciles it.
// Principal records are applied before attribute records.
func (s *SiteService) Sync(ctx context.Context, siteID int64) (*BatchResult, error) {
	site, err := s.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	var result *BatchResult
	err = s.withSyncGuard(ctx, siteID, func() error {
		raws, err := s.fetchProducts(ctx, site)
		if err != nil {
			if errors.Is(err, ErrNoProducts) {
				s.writeLog(ctx, siteID, model.LogTypeSync, model.LogStatusWarning, err.Error(), nil)
				return err
			}
			s.markError(ctx, siteID)
			s.writeLog(ctx, siteID, model.LogTypeSync, model.LogStatusError, err.Error(), nil)
			return err
		}

		result, err = s.sync.SyncAllProducts(ctx, site, raws)
		s.logBatch(ctx, siteID, model.LogTypeSync, result, err)
		return err
	})
	return result, err
}

func (s *SiteService) fetchProducts(ctx context.Context, site *model.Site) ([]json.RawMessage, error) {
	target := TargetFor(site)

	raws, err := s.client.Products(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	if s.opts.SyncAttributes {
		attrs, err := s.client.ProductsWithAttributes(ctx, target)
		switch {
		case err == nil:
			raws = append(raws, attrs...)
		case presta.IsNotFound(err):
			// older module versions have no attribute action
			s.logger.Info("store has no attribute endpoint", zap.Int64("site_id", site.ID))
		default:
			return nil, fmt.Errorf("fetch attributes: %w", err)
		}
	}

	if len(raws) == 0 {
		return nil, ErrNoProducts
	}
	return raws, nil
}

// ==================== Webhook ====================

// ResolveAPIKey finds the single site owning apiKey.
func (s *SiteService) ResolveAPIKey(ctx context.Context, apiKey string) (*model.Site, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrUnknownAPIKey
	}
	sites, err := s.uow.Sites.FindByAPIKey(ctx, apiKey, 2)
	if err != nil {
		return nil, err
	}
	switch len(sites) {
	case 0:
		return nil, ErrUnknownAPIKey
	case 1:
		return &sites[0], nil
	}
	return nil, ErrAmbiguousAPIKey
}

// IngestWebhook applies records pushed by the store. The whole payload is
// validated first; an invalid record rejects the push without touching the
// site.
func (s *SiteService) IngestWebhook(ctx context.Context, apiKey string, raws []json.RawMessage) (*model.Site, *BatchResult, error) {
	site, err := s.ResolveAPIKey(ctx, apiKey)
	if err != nil {
		return nil, nil, err
	}

	records, failures := ParseRecords(raws)
	if len(failures) > 0 {
		perr := &InvalidPayloadError{Failures: failures}
		s.writeLog(ctx, site.ID, model.LogTypeWebhook, model.LogStatusWarning, perr.Error(), nil)
		return site, nil, perr
	}

	var result *BatchResult
	err = s.withSyncGuard(ctx, site.ID, func() error {
		var err error
		result, err = s.sync.SyncRecords(ctx, site, records)
		s.logBatch(ctx, site.ID, model.LogTypeWebhook, result, err)
		return err
	})
	return site, result, err
}

// ==================== Reset ====================

// ResetSiteData wipes everything synced for the site in one transaction:
// alerts, price history, products, orphans, then logs. Stats are zeroed and
// last_sync cleared.
func (s *SiteService) ResetSiteData(ctx context.Context, siteID int64) error {
	if _, err := s.GetSite(ctx, siteID); err != nil {
		return err
	}

	return s.withSyncGuard(ctx, siteID, func() error {
		now := s.now()
		err := s.uow.Transaction(ctx, func(tx *repository.SyncUnitOfWork) error {
			if err := wipeSiteData(ctx, tx, siteID); err != nil {
				return err
			}
			if _, err := tx.Logs.DeleteBySite(ctx, siteID); err != nil {
				return fmt.Errorf("delete logs: %w", err)
			}
			if err := tx.Stats.Zero(ctx, siteID, now); err != nil {
				return fmt.Errorf("zero stats: %w", err)
			}
			if err := tx.Sites.ClearLastSync(ctx, siteID); err != nil {
				return fmt.Errorf("clear last sync: %w", err)
			}
			return tx.Logs.Create(ctx, newLog(siteID, model.LogTypeReset, model.LogStatusSuccess, "site data reset", nil))
		})
		if err != nil {
			s.logger.Error("reset site failed", zap.Int64("site_id", siteID), zap.Error(err))
			return err
		}
		s.logger.Info("site data reset", zap.Int64("site_id", siteID))
		return nil
	})
}

// wipeSiteData deletes the products of a site and the rows that reference
// them. Dependents go first; nothing relies on database cascades.
func wipeSiteData(ctx context.Context, tx *repository.SyncUnitOfWork, siteID int64) error {
	if _, err := tx.Alerts.DeleteBySite(ctx, siteID); err != nil {
		return fmt.Errorf("delete alerts: %w", err)
	}
	if _, err := tx.PriceHistory.DeleteBySite(ctx, siteID); err != nil {
		return fmt.Errorf("delete price history: %w", err)
	}
	if _, err := tx.Products.DeleteBySite(ctx, siteID); err != nil {
		return fmt.Errorf("delete products: %w", err)
	}
	if _, err := sweepOrphans(ctx, tx); err != nil {
		return err
	}
	return nil
}

// SweepOrphans deletes price history and alert rows whose product is gone.
func (s *SiteService) SweepOrphans(ctx context.Context) (OrphanSweepResult, error) {
	var result OrphanSweepResult
	err := s.uow.Transaction(ctx, func(tx *repository.SyncUnitOfWork) error {
		var err error
		result, err = sweepOrphans(ctx, tx)
		return err
	})
	if err != nil {
		return OrphanSweepResult{}, err
	}
	if result.PriceHistory > 0 || result.Alerts > 0 {
		s.logger.Info("orphans swept",
			zap.Int64("price_history", result.PriceHistory),
			zap.Int64("alerts", result.Alerts))
	}
	return result, nil
}

func sweepOrphans(ctx context.Context, tx *repository.SyncUnitOfWork) (OrphanSweepResult, error) {
	prices, err := tx.PriceHistory.DeleteOrphans(ctx)
	if err != nil {
		return OrphanSweepResult{}, fmt.Errorf("delete orphan price history: %w", err)
	}
	alerts, err := tx.Alerts.DeleteOrphans(ctx)
	if err != nil {
		return OrphanSweepResult{}, fmt.Errorf("delete orphan alerts: %w", err)
	}
	return OrphanSweepResult{PriceHistory: prices, Alerts: alerts}, nil
}

// ==================== Logs ====================

func (s *SiteService) ListLogs(ctx context.Context, siteID int64, req *dto.ListLogsReq) ([]model.ModuleLog, int64, error) {
	if _, err := s.GetSite(ctx, siteID); err != nil {
		return nil, 0, err
	}
	return s.uow.Logs.List(ctx, repository.LogFilter{
		SiteID:   siteID,
		Type:     req.Type,
		Status:   req.Status,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
}

func (s *SiteService) ClearLogs(ctx context.Context, siteID int64) (int64, error) {
	if _, err := s.GetSite(ctx, siteID); err != nil {
		return 0, err
	}
	return s.uow.Logs.DeleteBySite(ctx, siteID)
}

// ==================== Helpers ====================

// ListConnected returns the sites eligible for periodic syncs.
func (s *SiteService) ListConnected(ctx context.Context) ([]model.Site, error) {
	return s.uow.Sites.ListByStatus(ctx, model.SiteStatusConnected)
}

func (s *SiteService) markError(ctx context.Context, siteID int64) {
	if err := s.uow.Sites.UpdateStatus(context.WithoutCancel(ctx), siteID, model.SiteStatusError); err != nil {
		s.logger.Error("mark site error failed", zap.Int64("site_id", siteID), zap.Error(err))
	}
}

func (s *SiteService) logBatch(ctx context.Context, siteID int64, logType string, result *BatchResult, err error) {
	if result == nil {
		s.writeLog(ctx, siteID, logType, model.LogStatusError, err.Error(), nil)
		return
	}

	status := model.LogStatusSuccess
	msg := fmt.Sprintf("%d product(s) synced, %d skipped, %d failed", result.Synced, result.Skipped, result.Failed)
	switch {
	case err != nil:
		status = model.LogStatusError
		msg = err.Error()
	case result.Failed > 0:
		status = model.LogStatusWarning
	}

	details := map[string]interface{}{
		"run_id":  result.RunID,
		"synced":  result.Synced,
		"created": result.Created,
		"updated": result.Updated,
		"skipped": result.Skipped,
		"failed":  result.Failed,
		"alerts":  result.AlertsCreated,
	}
	var failures []RecordResult
	for _, r := range result.Results {
		if r.Outcome == OutcomeFailed {
			failures = append(failures, r)
		}
	}
	if len(failures) > 0 {
		details["failures"] = failures
	}
	s.writeLog(ctx, siteID, logType, status, msg, details)
}

func (s *SiteService) writeLog(ctx context.Context, siteID int64, logType, status, message string, details map[string]interface{}) {
	if err := s.uow.Logs.Create(context.WithoutCancel(ctx), newLog(siteID, logType, status, message, details)); err != nil {
		s.logger.Warn("write module log failed", zap.Int64("site_id", siteID), zap.Error(err))
	}
}

func newLog(siteID int64, logType, status, message string, details map[string]interface{}) *model.ModuleLog {
	entry := &model.ModuleLog{
		SiteID:  siteID,
		Type:    logType,
		Status:  status,
		Message: message,
	}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = datatypes.JSON(raw)
		}
	}
	return entry
}
