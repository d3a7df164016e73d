package service

import (
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"prestadash/internal/events"
	"prestadash/internal/model"
	"prestadash/internal/repository"
	"prestadash/pkg/presta"
)

// ==================== Mock store ====================

type mockStore struct {
	pingFn         func(ctx context.Context, target presta.Target) (*presta.PingResp, error)
	productsFn     func(ctx context.Context, target presta.Target) ([]json.RawMessage, error)
	attributesFn   func(ctx context.Context, target presta.Target) ([]json.RawMessage, error)
	statsFn        func(ctx context.Context, target presta.Target) (*presta.StatsPayload, error)
	priceHistoryFn func(ctx context.Context, target presta.Target, idProduct int64) (*presta.PriceHistoryResp, error)
}

func (m *mockStore) Ping(ctx context.Context, target presta.Target) (*presta.PingResp, error) {
	if m.pingFn != nil {
		return m.pingFn(ctx, target)
	}
	return &presta.PingResp{Status: "ok"}, nil
}

func (m *mockStore) Products(ctx context.Context, target presta.Target) ([]json.RawMessage, error) {
	if m.productsFn != nil {
		return m.productsFn(ctx, target)
	}
	return nil, nil
}

func (m *mockStore) ProductsWithAttributes(ctx context.Context, target presta.Target) ([]json.RawMessage, error) {
	if m.attributesFn != nil {
		return m.attributesFn(ctx, target)
	}
	return nil, nil
}

func (m *mockStore) Stats(ctx context.Context, target presta.Target) (*presta.StatsPayload, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, target)
	}
	return &presta.StatsPayload{TotalRevenue: "0"}, nil
}

func (m *mockStore) PriceHistory(ctx context.Context, target presta.Target, idProduct int64) (*presta.PriceHistoryResp, error) {
	if m.priceHistoryFn != nil {
		return m.priceHistoryFn(ctx, target, idProduct)
	}
	return &presta.PriceHistoryResp{History: &presta.PriceTimeline{}}, nil
}

// ==================== Fixtures ====================

type testEnv struct {
	db        *gorm.DB
	uow       *repository.SyncUnitOfWork
	store     *mockStore
	publisher *events.MemoryPublisher
	sync      *SyncService
	sites     *SiteService
	stats     *StatsService
	prices    *PriceHistoryService
	inventory *InventoryService
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&model.Site{},
		&model.Product{},
		&model.PriceHistory{},
		&model.StockAlert{},
		&model.SiteStats{},
		&model.ModuleLog{},
	)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithClient(t, &mockStore{})
}

func newTestEnvWithClient(t *testing.T, client StoreClient) *testEnv {
	db := setupServiceTestDB(t)
	uow := repository.NewSyncUnitOfWork(db)
	pub := &events.MemoryPublisher{}
	log := zap.NewNop()

	syncSvc := NewSyncService(uow, pub, log)
	env := &testEnv{
		db:        db,
		uow:       uow,
		publisher: pub,
		sync:      syncSvc,
		sites:     NewSiteService(uow, client, syncSvc, DefaultSiteOptions(), log),
		stats:     NewStatsService(uow, client, log),
		prices:    NewPriceHistoryService(uow, client, log),
		inventory: NewInventoryService(uow, log),
	}
	if m, ok := client.(*mockStore); ok {
		env.store = m
	}
	return env
}

func (e *testEnv) createSite(t *testing.T, apiKey string) *model.Site {
	site := &model.Site{OwnerID: 1, Name: "shop", URL: "https://shop.example", APIKey: apiKey}
	if err := e.uow.Sites.Create(context.Background(), site); err != nil {
		t.Fatalf("create site: %v", err)
	}
	return site
}

func (e *testEnv) reloadSite(t *testing.T, id int64) *model.Site {
	site, err := e.uow.Sites.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload site: %v", err)
	}
	return site
}

func (e *testEnv) count(t *testing.T, m interface{}, query string, args ...interface{}) int64 {
	var n int64
	q := e.db.Model(m)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func raws(records ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		out = append(out, json.RawMessage(r))
	}
	return out
}
