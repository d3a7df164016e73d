package task

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"prestadash/internal/service"
)

// OrphanSweeper removes rows whose product no longer exists.
type OrphanSweeper interface {
	SweepOrphans(ctx context.Context) (service.OrphanSweepResult, error)
}

// OrphanSweepTask runs the orphan sweep on a schedule.
type OrphanSweepTask struct {
	sweeper OrphanSweeper
	logger  *zap.Logger
	cron    *cron.Cron
	spec    string
}

func NewOrphanSweepTask(sweeper OrphanSweeper, spec string, logger *zap.Logger) *OrphanSweepTask {
	return &OrphanSweepTask{
		sweeper: sweeper,
		logger:  logger.Named("orphan_sweep_task"),
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
	}
}

func (t *OrphanSweepTask) Start() error {
	if t.spec == "" {
		t.logger.Info("orphan sweep disabled")
		return nil
	}

	if _, err := t.cron.AddFunc(t.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		_, _ = t.SweepNow(ctx)
	}); err != nil {
		return err
	}

	t.cron.Start()
	t.logger.Info("started", zap.String("spec", t.spec))
	return nil
}

func (t *OrphanSweepTask) Stop() {
	<-t.cron.Stop().Done()
	t.logger.Info("stopped")
}

// SweepNow runs the sweep once.
func (t *OrphanSweepTask) SweepNow(ctx context.Context) (service.OrphanSweepResult, error) {
	res, err := t.sweeper.SweepOrphans(ctx)
	if err != nil {
		t.logger.Error("orphan sweep failed", zap.Error(err))
		return res, err
	}
	t.logger.Info("orphan sweep done",
		zap.Int64("price_history", res.PriceHistory),
		zap.Int64("alerts", res.Alerts),
	)
	return res, nil
}
