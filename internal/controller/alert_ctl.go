package controller

import (
	"github.com/gin-gonic/gin"

	"prestadash/internal/api/dto"
	"prestadash/internal/service"
)

type AlertController struct {
	inventorySvc *service.InventoryService
}

func NewAlertController(inventorySvc *service.InventoryService) *AlertController {
	return &AlertController{inventorySvc: inventorySvc}
}

// ListAlerts
// @Summary Stock alerts
// @Tags Alert
// @Param site_id query int false "site"
// @Param status query string false "active / resolved"
// @Param alert_type query string false "low_stock / out_of_stock"
// @Router /api/v1/alerts [get]
func (c *AlertController) ListAlerts(ctx *gin.Context) {
	var req dto.ListAlertsReq
	if err := ctx.ShouldBindQuery(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	alerts, total, err := c.inventorySvc.ListAlerts(ctx.Request.Context(), &req)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, dto.PageResp{Total: total, Page: req.Page, Items: alerts})
}

// ResolveAlert
// @Summary Acknowledge an alert
// @Tags Alert
// @Param id path int true "alert id"
// @Router /api/v1/alerts/{id}/resolve [post]
func (c *AlertController) ResolveAlert(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	alert, err := c.inventorySvc.ResolveAlert(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, alert)
}
