package task

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"prestadash/internal/model"
	"prestadash/internal/service"
)

// ==================== SiteSyncTask ====================

// SiteSyncer is the part of the site lifecycle manager the sync task drives.
type SiteSyncer interface {
	ListConnected(ctx context.Context) ([]model.Site, error)
	Sync(ctx context.Context, siteID int64) (*service.BatchResult, error)
}

// SyncRunSummary counts the outcome of one pass over the connected sites.
type SyncRunSummary struct {
	Sites   int
	Synced  int
	Skipped int
	Failed  int
}

// SiteSyncTask periodically pulls every connected site. Sites run in
// parallel up to the concurrency limit; one site is never synced twice at
// once because the lifecycle manager guards it.
type SiteSyncTask struct {
	syncer SiteSyncer
	logger *zap.Logger
	cron   *cron.Cron
	spec   string

	concurrencyLimit int
	runTimeout       time.Duration
	running          atomic.Bool
}

func NewSiteSyncTask(syncer SiteSyncer, spec string, logger *zap.Logger) *SiteSyncTask {
	return &SiteSyncTask{
		syncer:           syncer,
		logger:           logger.Named("site_sync_task"),
		cron:             cron.New(cron.WithSeconds()),
		spec:             spec,
		concurrencyLimit: 4,
		runTimeout:       2 * time.Hour,
	}
}

// SetConcurrency sets how many sites are synced in parallel.
func (t *SiteSyncTask) SetConcurrency(limit int) {
	if limit < 1 {
		limit = 1
	}
	t.concurrencyLimit = limit
}

// Start schedules the task; an empty spec disables it.
func (t *SiteSyncTask) Start() error {
	if t.spec == "" {
		t.logger.Info("periodic sync disabled")
		return nil
	}

	if _, err := t.cron.AddFunc(t.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.runTimeout)
		defer cancel()
		t.SyncAllNow(ctx)
	}); err != nil {
		return err
	}

	t.cron.Start()
	t.logger.Info("started", zap.String("spec", t.spec), zap.Int("concurrency", t.concurrencyLimit))
	return nil
}

// Stop waits for a running pass to finish.
func (t *SiteSyncTask) Stop() {
	<-t.cron.Stop().Done()
	t.logger.Info("stopped")
}

// SyncAllNow runs one pass immediately. A pass that starts while another is
// still running is dropped.
func (t *SiteSyncTask) SyncAllNow(ctx context.Context) SyncRunSummary {
	var summary SyncRunSummary
	if !t.running.CompareAndSwap(false, true) {
		t.logger.Warn("previous pass still running, skipping")
		return summary
	}
	defer t.running.Store(false)

	sites, err := t.syncer.ListConnected(ctx)
	if err != nil {
		t.logger.Error("list connected sites failed", zap.Error(err))
		return summary
	}
	summary.Sites = len(sites)
	if len(sites) == 0 {
		return summary
	}

	var synced, skipped, failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrencyLimit)

	for i := range sites {
		site := sites[i]
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			log := t.logger.With(zap.Int64("site_id", site.ID), zap.String("site", site.Name))

			res, err := t.syncer.Sync(gctx, site.ID)
			switch {
			case errors.Is(err, service.ErrSyncInProgress), errors.Is(err, service.ErrNoProducts):
				log.Info("site skipped", zap.Error(err))
				skipped.Add(1)
			case err != nil:
				// one site failing never stops the others
				log.Warn("site sync failed", zap.Error(err))
				failed.Add(1)
			default:
				log.Info("site synced",
					zap.Int("synced", res.Synced),
					zap.Int("failed", res.Failed),
					zap.Int("alerts", res.AlertsCreated),
				)
				synced.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Synced = int(synced.Load())
	summary.Skipped = int(skipped.Load())
	summary.Failed = int(failed.Load())

	t.logger.Info("pass finished",
		zap.Int("sites", summary.Sites),
		zap.Int("synced", summary.Synced),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary
}
