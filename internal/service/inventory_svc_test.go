package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prestadash/internal/api/dto"
	"prestadash/internal/model"
)

func seedInventory(t *testing.T, env *testEnv) (*model.Site, *model.Product) {
	site := env.createSite(t, "k")
	_, err := env.sync.SyncAllProducts(context.Background(), site, raws(
		`{"id":10,"name":"Mug","reference":"SKU1","price":"19.99","quantity":3}`,
		`{"id":10,"parent_id":10,"id_product_attribute":5,"price":"21.99","quantity":1,"declinaisons":"(Couleur: Rouge)"}`,
		`{"id":11,"name":"Plate","reference":"SKU2","price":"9","quantity":30}`,
	))
	require.NoError(t, err)

	var mug model.Product
	require.NoError(t, env.db.Where("reference = ?", "SKU1").First(&mug).Error)
	return site, &mug
}

func TestInventoryService_ListAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site, mug := seedInventory(t, env)

	all, total, err := env.inventory.ListProducts(ctx, &dto.ListProductsReq{SiteID: site.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	_, total, _ = env.inventory.ListProducts(ctx, &dto.ListProductsReq{SiteID: site.ID, Attributes: "false"})
	assert.Equal(t, int64(2), total)

	low, _, _ := env.inventory.ListProducts(ctx, &dto.ListProductsReq{SiteID: site.ID, LowStock: true})
	assert.Len(t, low, 2)

	detail, err := env.inventory.GetProduct(ctx, mug.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Variants, 1)
	assert.Len(t, detail.PriceHistory, 1)
	assert.Len(t, detail.Alerts, 1)

	_, err = env.inventory.GetProduct(ctx, 777)
	assert.True(t, errors.Is(err, ErrProductNotFound))
}

func TestInventoryService_DeleteProductCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, mug := seedInventory(t, env)

	require.NoError(t, env.inventory.DeleteProduct(ctx, mug.ID))

	// the plate and its price row survive
	assert.Equal(t, int64(1), env.count(t, &model.Product{}, ""))
	assert.Equal(t, int64(1), env.count(t, &model.PriceHistory{}, ""))
	assert.Equal(t, int64(0), env.count(t, &model.StockAlert{}, ""))

	assert.True(t, errors.Is(env.inventory.DeleteProduct(ctx, mug.ID), ErrProductNotFound))
}

func TestInventoryService_ResolveAlert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site, _ := seedInventory(t, env)

	alerts, total, err := env.inventory.ListAlerts(ctx, &dto.ListAlertsReq{SiteID: site.ID, Status: model.AlertStatusActive})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	resolved, err := env.inventory.ResolveAlert(ctx, alerts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	first := *resolved.ResolvedAt

	again, err := env.inventory.ResolveAlert(ctx, alerts[0].ID)
	require.NoError(t, err)
	assert.True(t, first.Equal(*again.ResolvedAt))

	_, total, _ = env.inventory.ListAlerts(ctx, &dto.ListAlertsReq{SiteID: site.ID, Status: model.AlertStatusActive})
	assert.Equal(t, int64(0), total)

	_, err = env.inventory.ResolveAlert(ctx, 4242)
	assert.True(t, errors.Is(err, ErrAlertNotFound))
}
