package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"prestadash/internal/model"
	"prestadash/internal/service"
)

// ==================== Mocks ====================

type mockSyncer struct {
	listFn func(ctx context.Context) ([]model.Site, error)
	syncFn func(ctx context.Context, siteID int64) (*service.BatchResult, error)
}

func (m *mockSyncer) ListConnected(ctx context.Context) ([]model.Site, error) {
	return m.listFn(ctx)
}

func (m *mockSyncer) Sync(ctx context.Context, siteID int64) (*service.BatchResult, error) {
	return m.syncFn(ctx, siteID)
}

type mockSweeper struct {
	calls atomic.Int32
	err   error
}

func (m *mockSweeper) SweepOrphans(ctx context.Context) (service.OrphanSweepResult, error) {
	m.calls.Add(1)
	return service.OrphanSweepResult{PriceHistory: 2, Alerts: 1}, m.err
}

func sites(ids ...int64) []model.Site {
	out := make([]model.Site, 0, len(ids))
	for _, id := range ids {
		s := model.Site{Name: "shop", Status: model.SiteStatusConnected}
		s.ID = id
		out = append(out, s)
	}
	return out
}

// ==================== SiteSyncTask ====================

func TestSiteSyncTask_SyncAllNow(t *testing.T) {
	syncer := &mockSyncer{
		listFn: func(ctx context.Context) ([]model.Site, error) {
			return sites(1, 2, 3, 4), nil
		},
		syncFn: func(ctx context.Context, siteID int64) (*service.BatchResult, error) {
			switch siteID {
			case 2:
				return nil, service.ErrSyncInProgress
			case 3:
				return nil, errors.New("store unreachable")
			}
			return &service.BatchResult{Synced: 3}, nil
		},
	}

	task := NewSiteSyncTask(syncer, "", zap.NewNop())
	summary := task.SyncAllNow(context.Background())

	assert.Equal(t, SyncRunSummary{Sites: 4, Synced: 2, Skipped: 1, Failed: 1}, summary)
}

func TestSiteSyncTask_RespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	var mu sync.Mutex
	seen := map[int64]int{}

	syncer := &mockSyncer{
		listFn: func(ctx context.Context) ([]model.Site, error) {
			return sites(1, 2, 3, 4, 5, 6), nil
		},
		syncFn: func(ctx context.Context, siteID int64) (*service.BatchResult, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)

			mu.Lock()
			seen[siteID]++
			mu.Unlock()
			return &service.BatchResult{}, nil
		},
	}

	task := NewSiteSyncTask(syncer, "", zap.NewNop())
	task.SetConcurrency(2)
	summary := task.SyncAllNow(context.Background())

	assert.Equal(t, 6, summary.Synced)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	for id := int64(1); id <= 6; id++ {
		assert.Equal(t, 1, seen[id], "site %d", id)
	}
}

func TestSiteSyncTask_OverlappingPassIsDropped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32

	syncer := &mockSyncer{
		listFn: func(ctx context.Context) ([]model.Site, error) {
			return sites(1), nil
		},
		syncFn: func(ctx context.Context, siteID int64) (*service.BatchResult, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-release
			return &service.BatchResult{}, nil
		},
	}

	task := NewSiteSyncTask(syncer, "", zap.NewNop())
	done := make(chan SyncRunSummary)
	go func() { done <- task.SyncAllNow(context.Background()) }()

	<-started
	second := task.SyncAllNow(context.Background())
	close(release)
	first := <-done

	assert.Equal(t, SyncRunSummary{}, second)
	assert.Equal(t, 1, first.Synced)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSiteSyncTask_ListFailure(t *testing.T) {
	syncer := &mockSyncer{
		listFn: func(ctx context.Context) ([]model.Site, error) {
			return nil, errors.New("db down")
		},
		syncFn: func(ctx context.Context, siteID int64) (*service.BatchResult, error) {
			t.Fatal("sync must not run")
			return nil, nil
		},
	}

	summary := NewSiteSyncTask(syncer, "", zap.NewNop()).SyncAllNow(context.Background())
	assert.Zero(t, summary.Sites)
}

func TestSiteSyncTask_StartRejectsBadSpec(t *testing.T) {
	task := NewSiteSyncTask(&mockSyncer{}, "not a cron", zap.NewNop())
	assert.Error(t, task.Start())
}

// ==================== TaskManager ====================

func TestTaskManager(t *testing.T) {
	sweeper := &mockSweeper{}
	syncer := &mockSyncer{
		listFn: func(ctx context.Context) ([]model.Site, error) { return nil, nil },
	}

	tm := NewTaskManager(&TaskManagerDeps{Syncer: syncer, Sweeper: sweeper}, &TaskManagerConfig{
		SyncCron:        "",
		SyncConcurrency: 2,
		OrphanSweepCron: "0 30 3 * * *",
	}, zap.NewNop())

	require.NoError(t, tm.Start())
	defer tm.Stop()

	assert.Equal(t, map[string]bool{"site_sync": false, "orphan_sweep": true}, tm.Status())

	require.NoError(t, tm.TriggerOrphanSweep(context.Background()))
	assert.Equal(t, int32(1), sweeper.calls.Load())

	summary, err := tm.TriggerSyncAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Sites)
}

func TestTaskManager_Disabled(t *testing.T) {
	tm := NewTaskManager(&TaskManagerDeps{}, nil, zap.NewNop())

	_, err := tm.TriggerSyncAll(context.Background())
	assert.ErrorIs(t, err, ErrTaskDisabled)
	assert.ErrorIs(t, tm.TriggerOrphanSweep(context.Background()), ErrTaskDisabled)
}
