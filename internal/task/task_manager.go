package task

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ==================== TaskManager ====================

// TaskManager owns the scheduled jobs: periodic site sync and orphan sweep.
type TaskManager struct {
	syncTask  *SiteSyncTask
	sweepTask *OrphanSweepTask
	logger    *zap.Logger
}

// TaskManagerDeps are the services the tasks drive.
type TaskManagerDeps struct {
	Syncer  SiteSyncer
	Sweeper OrphanSweeper
}

// TaskManagerConfig schedules; an empty cron spec disables the task.
type TaskManagerConfig struct {
	SyncCron        string
	SyncConcurrency int
	OrphanSweepCron string
}

// DefaultConfig keeps periodic sync off and sweeps orphans nightly.
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		SyncCron:        "",
		SyncConcurrency: 4,
		OrphanSweepCron: "0 30 3 * * *",
	}
}

func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig, logger *zap.Logger) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tm := &TaskManager{logger: logger.Named("task_manager")}

	if deps.Syncer != nil {
		tm.syncTask = NewSiteSyncTask(deps.Syncer, cfg.SyncCron, logger)
		tm.syncTask.SetConcurrency(cfg.SyncConcurrency)
	}
	if deps.Sweeper != nil {
		tm.sweepTask = NewOrphanSweepTask(deps.Sweeper, cfg.OrphanSweepCron, logger)
	}

	return tm
}

// ==================== Lifecycle ====================

// Start schedules every enabled task. A bad cron spec stops startup.
func (tm *TaskManager) Start() error {
	if tm.syncTask != nil {
		if err := tm.syncTask.Start(); err != nil {
			return fmt.Errorf("site sync task: %w", err)
		}
	}
	if tm.sweepTask != nil {
		if err := tm.sweepTask.Start(); err != nil {
			tm.Stop()
			return fmt.Errorf("orphan sweep task: %w", err)
		}
	}
	tm.logger.Info("tasks started")
	return nil
}

// Stop waits for running jobs.
func (tm *TaskManager) Stop() {
	if tm.syncTask != nil {
		tm.syncTask.Stop()
	}
	if tm.sweepTask != nil {
		tm.sweepTask.Stop()
	}
	tm.logger.Info("tasks stopped")
}

// ==================== Manual triggers ====================

func (tm *TaskManager) TriggerSyncAll(ctx context.Context) (SyncRunSummary, error) {
	if tm.syncTask == nil {
		return SyncRunSummary{}, ErrTaskDisabled
	}
	return tm.syncTask.SyncAllNow(ctx), nil
}

func (tm *TaskManager) TriggerOrphanSweep(ctx context.Context) error {
	if tm.sweepTask == nil {
		return ErrTaskDisabled
	}
	_, err := tm.sweepTask.SweepNow(ctx)
	return err
}

// Status reports which tasks are configured.
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"site_sync":    tm.syncTask != nil && tm.syncTask.spec != "",
		"orphan_sweep": tm.sweepTask != nil && tm.sweepTask.spec != "",
	}
}

// ==================== Errors ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
