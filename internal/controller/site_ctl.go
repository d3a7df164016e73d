package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"prestadash/internal/api/dto"
	"prestadash/internal/model"
	"prestadash/internal/service"
)

type SiteController struct {
	siteSvc *service.SiteService
}

func NewSiteController(siteSvc *service.SiteService) *SiteController {
	return &SiteController{siteSvc: siteSvc}
}

// CreateSite registers a store
// @Summary Register a store
// @Tags Site
// @Accept json
// @Produce json
// @Param request body dto.CreateSiteReq true "store"
// @Success 201 {object} dto.SiteResp
// @Router /api/v1/sites [post]
func (c *SiteController) CreateSite(ctx *gin.Context) {
	var req dto.CreateSiteReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	site, err := c.siteSvc.CreateSite(ctx.Request.Context(), &req)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"code": 201, "message": "created", "data": toSiteResp(site)})
}

// ListSites
// @Summary List stores
// @Tags Site
// @Param owner_id query int false "owner"
// @Param status query string false "connected / disconnected / error"
// @Router /api/v1/sites [get]
func (c *SiteController) ListSites(ctx *gin.Context) {
	var req dto.ListSitesReq
	if err := ctx.ShouldBindQuery(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	sites, total, err := c.siteSvc.ListSites(ctx.Request.Context(), &req)
	if err != nil {
		fail(ctx, err)
		return
	}

	items := make([]dto.SiteResp, 0, len(sites))
	for i := range sites {
		items = append(items, toSiteResp(&sites[i]))
	}
	ok(ctx, dto.PageResp{Total: total, Page: req.Page, Items: items})
}

// GetSite
// @Summary Store detail
// @Tags Site
// @Param id path int true "site id"
// @Router /api/v1/sites/{id} [get]
func (c *SiteController) GetSite(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	site, err := c.siteSvc.GetSite(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, toSiteResp(site))
}

// UpdateSite
// @Summary Update a store; changing url or credentials resets it to disconnected
// @Tags Site
// @Param id path int true "site id"
// @Param request body dto.UpdateSiteReq true "fields"
// @Router /api/v1/sites/{id} [put]
func (c *SiteController) UpdateSite(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	var req dto.UpdateSiteReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	site, err := c.siteSvc.UpdateSite(ctx.Request.Context(), id, &req)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, toSiteResp(site))
}

// DeleteSite
// @Summary Delete a store and all its synced data
// @Tags Site
// @Param id path int true "site id"
// @Router /api/v1/sites/{id} [delete]
func (c *SiteController) DeleteSite(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	if err := c.siteSvc.DeleteSite(ctx.Request.Context(), id); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, gin.H{"site_id": id})
}

// ListLogs
// @Summary Module logs of a store
// @Tags Site
// @Param id path int true "site id"
// @Param type query string false "sync / webhook / connection / stats / price_history / reset"
// @Router /api/v1/sites/{id}/logs [get]
func (c *SiteController) ListLogs(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	var req dto.ListLogsReq
	if err := ctx.ShouldBindQuery(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	logs, total, err := c.siteSvc.ListLogs(ctx.Request.Context(), id, &req)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, dto.PageResp{Total: total, Page: req.Page, Items: logs})
}

// ClearLogs
// @Summary Clear module logs of a store
// @Tags Site
// @Param id path int true "site id"
// @Router /api/v1/sites/{id}/logs [delete]
func (c *SiteController) ClearLogs(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	n, err := c.siteSvc.ClearLogs(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, gin.H{"deleted": n})
}

func toSiteResp(site *model.Site) dto.SiteResp {
	return dto.SiteResp{
		ID:              site.ID,
		OwnerID:         site.OwnerID,
		Name:            site.Name,
		URL:             site.URL,
		HTTPAuthEnabled: site.HTTPAuthEnabled,
		HTTPAuthUser:    site.HTTPAuthUser,
		PrestaVersion:   site.PrestaVersion,
		Status:          site.Status,
		LastSync:        site.LastSync,
		SyncState:       site.SyncState,
		CreatedAt:       site.CreatedAt,
		UpdatedAt:       site.UpdatedAt,
	}
}
