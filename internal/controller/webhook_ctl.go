package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"prestadash/internal/api/dto"
	"prestadash/internal/middleware"
	"prestadash/internal/service"
)

// WebhookController receives product pushes from the prestasynch module.
type WebhookController struct {
	siteSvc *service.SiteService
}

func NewWebhookController(siteSvc *service.SiteService) *WebhookController {
	return &WebhookController{siteSvc: siteSvc}
}

// ReceiveProducts
// @Summary Product push from a store, authenticated by X-Api-Key
// @Tags Webhook
// @Accept json
// @Param X-Api-Key header string true "store api key"
// @Param request body dto.WebhookProductsReq true "records"
// @Success 200 {object} dto.SyncResp
// @Failure 400 {object} map[string]interface{} "invalid payload, nothing applied"
// @Failure 401 {object} map[string]interface{} "unknown key"
// @Failure 409 {object} map[string]interface{} "key shared by several sites / sync running"
// @Router /api/webhook/products [post]
func (c *WebhookController) ReceiveProducts(ctx *gin.Context) {
	var req dto.WebhookProductsReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	_, res, err := c.siteSvc.IngestWebhook(ctx.Request.Context(), middleware.GetAPIKey(ctx), req.Products)
	if err != nil {
		var perr *service.InvalidPayloadError
		if errors.As(err, &perr) {
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": perr.Error(),
				"data":    perr.Failures,
			})
			return
		}
		fail(ctx, err)
		return
	}
	ok(ctx, toSyncResp(res))
}
