package controller

import (
	"github.com/gin-gonic/gin"

	"prestadash/internal/api/dto"
	"prestadash/internal/service"
)

type ProductController struct {
	inventorySvc *service.InventoryService
	priceSvc     *service.PriceHistoryService
}

func NewProductController(inventorySvc *service.InventoryService, priceSvc *service.PriceHistoryService) *ProductController {
	return &ProductController{inventorySvc: inventorySvc, priceSvc: priceSvc}
}

// ListProducts
// @Summary Synced products
// @Tags Product
// @Param site_id query int false "site"
// @Param attributes query string false "true: variants only, false: principals only"
// @Param low_stock query bool false "quantity <= min_quantity"
// @Router /api/v1/products [get]
func (c *ProductController) ListProducts(ctx *gin.Context) {
	var req dto.ListProductsReq
	if err := ctx.ShouldBindQuery(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	products, total, err := c.inventorySvc.ListProducts(ctx.Request.Context(), &req)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, dto.PageResp{Total: total, Page: req.Page, Items: products})
}

// GetProduct
// @Summary Product with variants, price history and alerts
// @Tags Product
// @Param id path int true "product id"
// @Success 200 {object} dto.ProductDetailResp
// @Router /api/v1/products/{id} [get]
func (c *ProductController) GetProduct(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	detail, err := c.inventorySvc.GetProduct(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, detail)
}

// DeleteProduct
// @Summary Delete a product, its variants, price history and alerts
// @Tags Product
// @Param id path int true "product id"
// @Router /api/v1/products/{id} [delete]
func (c *ProductController) DeleteProduct(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	if err := c.inventorySvc.DeleteProduct(ctx.Request.Context(), id); err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, gin.H{"product_id": id})
}

// RefreshPriceHistory
// @Summary Merge the store's price timeline into local history
// @Tags Product
// @Param id path int true "product id"
// @Success 200 {object} dto.RefreshPriceHistoryResp
// @Router /api/v1/products/{id}/price-history/refresh [post]
func (c *ProductController) RefreshPriceHistory(ctx *gin.Context) {
	id := parseID(ctx, "id")
	if id == 0 {
		return
	}

	added, err := c.priceSvc.RefreshPriceHistory(ctx.Request.Context(), id)
	if err != nil {
		fail(ctx, err)
		return
	}
	ok(ctx, dto.RefreshPriceHistoryResp{AddedCount: added})
}
