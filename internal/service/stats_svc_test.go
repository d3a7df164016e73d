package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prestadash/internal/model"
	"prestadash/pkg/presta"
)

func TestStatsService_FetchStats_Upsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := env.createSite(t, "k")

	payload := &presta.StatsPayload{
		TotalCustomers:  12,
		TotalOrders:     30,
		TotalRevenue:    "1234.500000",
		TotalProducts:   8,
		TotalCategories: 3,
	}
	env.store.statsFn = func(ctx context.Context, target presta.Target) (*presta.StatsPayload, error) {
		return payload, nil
	}

	stats, err := env.stats.FetchStats(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), stats.TotalOrders)
	assert.Equal(t, "1234.5", stats.TotalRevenue)
	assert.False(t, stats.LastUpdate.IsZero())

	payload.TotalOrders = 31
	payload.TotalRevenue = "1300"
	stats, err = env.stats.FetchStats(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(31), stats.TotalOrders)
	assert.Equal(t, "1300", stats.TotalRevenue)

	assert.Equal(t, int64(1), env.count(t, &model.SiteStats{}, "site_id = ?", site.ID))
	assert.Equal(t, int64(2), env.count(t, &model.ModuleLog{}, "type = ? AND status = ?", model.LogTypeStats, model.LogStatusSuccess))
}

func TestStatsService_FetchStats_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	site := env.createSite(t, "k")

	_, err := env.stats.FetchStats(ctx, 999)
	assert.True(t, errors.Is(err, ErrSiteNotFound), "err = %v", err)

	env.store.statsFn = func(ctx context.Context, target presta.Target) (*presta.StatsPayload, error) {
		return &presta.StatsPayload{TotalRevenue: "a lot"}, nil
	}
	_, err = env.stats.FetchStats(ctx, site.ID)
	var malformed *presta.MalformedResponseError
	assert.True(t, errors.As(err, &malformed), "err = %v", err)

	env.store.statsFn = func(ctx context.Context, target presta.Target) (*presta.StatsPayload, error) {
		return nil, &presta.HTTPStatusError{StatusCode: 403, Body: "forbidden"}
	}
	_, err = env.stats.FetchStats(ctx, site.ID)
	assert.Error(t, err)

	assert.Equal(t, int64(0), env.count(t, &model.SiteStats{}, ""))
	assert.Equal(t, int64(2), env.count(t, &model.ModuleLog{}, "type = ? AND status = ?", model.LogTypeStats, model.LogStatusError))
}

func TestStatsService_GetStats_NeverFetched(t *testing.T) {
	env := newTestEnv(t)
	stats, err := env.stats.GetStats(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.SiteID)
	assert.Equal(t, "0", stats.TotalRevenue)
}
