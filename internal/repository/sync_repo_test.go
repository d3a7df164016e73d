package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"prestadash/internal/model"
)

func setupSyncTestDB(t *testing.T) *gorm.DB {
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
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

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
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func createTestSite(t *testing.T, db *gorm.DB, apiKey string) *model.Site {
	site := &model.Site{OwnerID: 1, Name: "shop", URL: "https://shop.example", APIKey: apiKey}
	if err := NewSiteRepository(db).Create(context.Background(), site); err != nil {
		t.Fatalf("create site: %v", err)
	}
	return site
}

func TestSiteRepo_AcquireSync(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewSiteRepository(db)
	ctx := context.Background()
	site := createTestSite(t, db, "k1")

	now := time.Now().UTC()
	stale := now.Add(-30 * time.Minute)

	ok, err := repo.AcquireSync(ctx, site.ID, now, stale)
	if err != nil || !ok {
		t.Fatalf("first AcquireSync = %v, %v, want true, nil", ok, err)
	}

	ok, err = repo.AcquireSync(ctx, site.ID, now, stale)
	if err != nil || ok {
		t.Fatalf("second AcquireSync = %v, %v, want false, nil", ok, err)
	}

	// a token older than the stale mark is taken over
	later := now.Add(time.Hour)
	ok, err = repo.AcquireSync(ctx, site.ID, later, later.Add(-30*time.Minute))
	if err != nil || !ok {
		t.Fatalf("stale AcquireSync = %v, %v, want true, nil", ok, err)
	}

	if err := repo.ReleaseSync(ctx, site.ID); err != nil {
		t.Fatalf("ReleaseSync: %v", err)
	}
	got, _ := repo.GetByID(ctx, site.ID)
	if got.SyncState != model.SyncStateIdle || got.SyncStartedAt != nil {
		t.Errorf("after release state = %q started = %v, want idle / nil", got.SyncState, got.SyncStartedAt)
	}

	ok, _ = repo.AcquireSync(ctx, site.ID, now, stale)
	if !ok {
		t.Error("AcquireSync after release should succeed")
	}
}

func TestSiteRepo_FindByAPIKey(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewSiteRepository(db)
	ctx := context.Background()

	createTestSite(t, db, "shared")
	createTestSite(t, db, "shared")
	createTestSite(t, db, "shared")
	createTestSite(t, db, "alone")

	sites, err := repo.FindByAPIKey(ctx, "shared", 2)
	if err != nil {
		t.Fatalf("FindByAPIKey: %v", err)
	}
	if len(sites) != 2 {
		t.Errorf("len = %d, want 2", len(sites))
	}

	sites, _ = repo.FindByAPIKey(ctx, "missing", 2)
	if len(sites) != 0 {
		t.Errorf("len = %d, want 0", len(sites))
	}
}

func TestProductRepo_FindPrincipal(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()
	site := createTestSite(t, db, "k")

	byRef := &model.Product{SiteID: site.ID, PrestaID: 7, Reference: "SKU1", Name: "by ref"}
	byID := &model.Product{SiteID: site.ID, PrestaID: 42, Reference: "OTHER", Name: "by id"}
	parentID := int64(1)
	variant := &model.Product{SiteID: site.ID, PrestaID: 42, AttributeID: 3, ParentID: &parentID, IsAttribute: true, Reference: "SKU1"}
	for _, p := range []*model.Product{byRef, byID, variant} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("create product: %v", err)
		}
	}

	tests := []struct {
		name      string
		prestaID  int64
		reference string
		wantID    int64
	}{
		{"remote id wins over reference", 42, "SKU1", byID.ID},
		{"reference fallback", 99, "SKU1", byRef.ID},
		{"empty reference does not match", 99, "", 0},
		{"remote id only", 7, "", byRef.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindPrincipal(ctx, site.ID, tt.prestaID, tt.reference)
			if err != nil {
				t.Fatalf("FindPrincipal: %v", err)
			}
			var gotID int64
			if got != nil {
				gotID = got.ID
			}
			if gotID != tt.wantID {
				t.Errorf("FindPrincipal id = %d, want %d", gotID, tt.wantID)
			}
		})
	}

	attr, err := repo.FindAttribute(ctx, site.ID, 3, parentID)
	if err != nil || attr == nil || attr.ID != variant.ID {
		t.Errorf("FindAttribute = %v, %v, want variant", attr, err)
	}
}

func TestProductRepo_UniqueRemoteIdentity(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()
	site := createTestSite(t, db, "k")

	if err := repo.Create(ctx, &model.Product{SiteID: site.ID, PrestaID: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, &model.Product{SiteID: site.ID, PrestaID: 1}); err == nil {
		t.Error("duplicate (site, presta_id, attribute_id) should be rejected")
	}
	if err := repo.Create(ctx, &model.Product{SiteID: site.ID, PrestaID: 1, AttributeID: 2, IsAttribute: true}); err != nil {
		t.Errorf("attribute row sharing presta_id: %v", err)
	}
}

func TestRepos_DeleteBySiteAndOrphans(t *testing.T) {
	db := setupSyncTestDB(t)
	uow := NewSyncUnitOfWork(db)
	ctx := context.Background()
	siteA := createTestSite(t, db, "a")
	siteB := createTestSite(t, db, "b")

	pa := &model.Product{SiteID: siteA.ID, PrestaID: 1}
	pb := &model.Product{SiteID: siteB.ID, PrestaID: 1}
	_ = uow.Products.Create(ctx, pa)
	_ = uow.Products.Create(ctx, pb)

	now := time.Now().UTC()
	for _, p := range []*model.Product{pa, pb} {
		_ = uow.PriceHistory.Append(ctx, &model.PriceHistory{ProductID: p.ID, Price: "10", Date: now, Type: model.PriceTypeSync})
		_ = uow.Alerts.Create(ctx, &model.StockAlert{ProductID: p.ID, AlertType: model.AlertTypeLowStock})
	}
	// rows pointing at nothing
	_ = uow.PriceHistory.Append(ctx, &model.PriceHistory{ProductID: 999, Price: "1", Date: now, Type: model.PriceTypeSync})
	_ = uow.Alerts.Create(ctx, &model.StockAlert{ProductID: 999, AlertType: model.AlertTypeOutOfStock})

	n, err := uow.Alerts.DeleteBySite(ctx, siteA.ID)
	if err != nil || n != 1 {
		t.Fatalf("Alerts.DeleteBySite = %d, %v, want 1", n, err)
	}
	n, err = uow.PriceHistory.DeleteBySite(ctx, siteA.ID)
	if err != nil || n != 1 {
		t.Fatalf("PriceHistory.DeleteBySite = %d, %v, want 1", n, err)
	}

	n, err = uow.PriceHistory.DeleteOrphans(ctx)
	if err != nil || n != 1 {
		t.Errorf("PriceHistory.DeleteOrphans = %d, %v, want 1", n, err)
	}
	n, err = uow.Alerts.DeleteOrphans(ctx)
	if err != nil || n != 1 {
		t.Errorf("Alerts.DeleteOrphans = %d, %v, want 1", n, err)
	}

	// site B untouched
	if c, _ := uow.PriceHistory.CountByProduct(ctx, pb.ID); c != 1 {
		t.Errorf("site B price rows = %d, want 1", c)
	}
	alerts, _ := uow.Alerts.ListByProduct(ctx, pb.ID)
	if len(alerts) != 1 {
		t.Errorf("site B alerts = %d, want 1", len(alerts))
	}
}

func TestSiteStatsRepo_Upsert(t *testing.T) {
	db := setupSyncTestDB(t)
	repo := NewSiteStatsRepository(db)
	ctx := context.Background()
	site := createTestSite(t, db, "k")

	now := time.Now().UTC()
	if err := repo.Upsert(ctx, &model.SiteStats{SiteID: site.ID, TotalOrders: 3, TotalRevenue: "10.5", LastUpdate: now}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(ctx, &model.SiteStats{SiteID: site.ID, TotalOrders: 4, TotalRevenue: "12", LastUpdate: now}); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	var count int64
	db.Model(&model.SiteStats{}).Where("site_id = ?", site.ID).Count(&count)
	if count != 1 {
		t.Fatalf("stats rows = %d, want 1", count)
	}

	got, err := repo.GetBySite(ctx, site.ID)
	if err != nil {
		t.Fatalf("GetBySite: %v", err)
	}
	if got.TotalOrders != 4 || got.TotalRevenue != "12" {
		t.Errorf("stats = %d / %s, want 4 / 12", got.TotalOrders, got.TotalRevenue)
	}

	if err := repo.Zero(ctx, site.ID, now); err != nil {
		t.Fatalf("Zero: %v", err)
	}
	got, _ = repo.GetBySite(ctx, site.ID)
	if got.TotalOrders != 0 || got.TotalRevenue != "0" {
		t.Errorf("zeroed stats = %d / %s, want 0 / 0", got.TotalOrders, got.TotalRevenue)
	}
}

func TestSyncUnitOfWork_Rollback(t *testing.T) {
	db := setupSyncTestDB(t)
	uow := NewSyncUnitOfWork(db)
	ctx := context.Background()
	site := createTestSite(t, db, "k")

	boom := errors.New("boom")
	err := uow.Transaction(ctx, func(tx *SyncUnitOfWork) error {
		p := &model.Product{SiteID: site.ID, PrestaID: 5}
		if err := tx.Products.Create(ctx, p); err != nil {
			return err
		}
		if err := tx.PriceHistory.Append(ctx, &model.PriceHistory{ProductID: p.ID, Price: "1", Date: time.Now().UTC()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction err = %v, want boom", err)
	}

	n, _ := uow.Products.CountBySite(ctx, site.ID)
	if n != 0 {
		t.Errorf("products after rollback = %d, want 0", n)
	}
}
