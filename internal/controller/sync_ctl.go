package controller

import (
	"github.com/gin-gonic/gin"

	"prestadash/internal/api/dto"
	"prestadash/internal/service"
)

// SyncController exposes the store-facing actions of a site.
type SyncController struct {
	siteSvc  *service.SiteService
	statsSvc *service.StatsService
}

func NewSyncController(siteSvc *service.SiteService, statsSvc *service.StatsService) *SyncController {
	return &SyncController{siteSvc: siteSvc, statsSvc: statsSvc}
}

// TestConnection
// @Summary Ping the store and update the site status
// @Tags Sync
// @Param id path int true "site id"
// @Success 200 {object} dto.ConnectionResp
// @Router /api/v1/sites/{id}/test [post]
func (c *SyncController) TestConnection(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	res, err := c.siteSvc.TestConnection(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, dto.ConnectionResp{Success: res.Success, Message: res.Message})
}

// Sync
// @Summary Pull every product of the store and reconcile them
// @Tags Sync
// @Param id path int true "site id"
// @Success 200 {object} dto.SyncResp
// @Failure 404 {object} map[string]interface{} "unknown site or empty catalogue"
// @Failure 409 {object} map[string]interface{} "sync already running"
// @Failure 429 {object} map[string]interface{} "cooling down"
// @Router /api/v1/sites/{id}/sync [post]
func (c *SyncController) Sync(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	res, err := c.siteSvc.Sync(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, toSyncResp(res))
}

// Reset
// @Summary Wipe every synced row of the store
// @Tags Sync
// @Param id path int true "site id"
// @Router /api/v1/sites/{id}/reset [post]
func (c *SyncController) Reset(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	if err := c.siteSvc.ResetSiteData(ctx.Request.Context(), id); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, gin.H{"site_id": id})
}

// FetchStats
// @Summary Pull the store counters
// @Tags Sync
// @Param id path int true "site id"
// @Router /api/v1/sites/{id}/stats [post]
func (c *SyncController) FetchStats(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	stats, err := c.statsSvc.FetchStats(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, stats)
}

// GetStats
// @Summary Last pulled store counters
// @Tags Sync
// @Param id path int true "site id"
// @Router /api/v1/sites/{id}/stats [get]
func (c *SyncController) GetStats(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	if _, err := c.siteSvc.GetSite(ctx.Request.Context(), id); err != nil {
		fail(ctx, err)
		return
	}
	stats, err := c.statsSvc.GetStats(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, stats)
}

// SweepOrphans
// @Summary Delete price history and alerts whose product is gone
// @Tags Maintenance
// @Router /api/v1/maintenance/orphans [post]
func (c *SyncController) SweepOrphans(ctx *gin.Context) {
	res, err := c.siteSvc.SweepOrphans(ctx.Request.Context())
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, dto.OrphanSweepResp{PriceHistory: res.PriceHistory, Alerts: res.Alerts})
}

func toSyncResp(res *service.BatchResult) dto.SyncResp {
	out := dto.SyncResp{
		RunID:   res.RunID,
		Count:   res.Synced,
		Created: res.Created,
		Updated: res.Updated,
		Skipped: res.Skipped,
		Failed:  res.Failed,
		Alerts:  res.AlertsCreated,
		Results: make([]dto.RecordResultResp, 0, len(res.Results)),
	}
	for _, r := range res.Results {
		out.Results = append(out.Results, dto.RecordResultResp{
			Index:       r.Index,
			RemoteID:    r.RemoteID,
			AttributeID: r.AttributeID,
			Outcome:     r.Outcome,
			Action:      r.Action,
			Reason:      r.Reason,
		})
	}
	return out
}
