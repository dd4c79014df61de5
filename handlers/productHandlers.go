package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/mmdatafocus/wholesale_backend/utils"
)

type stockMovementRequest struct {
	Type          models.StockMovementType `json:"type"`
	Quantity      int                      `json:"quantity"`
	ColorName     string                   `json:"color_name"`
	Reason        string                   `json:"reason"`
	ReferenceType string                   `json:"reference_type"`
	ReferenceId   int                      `json:"reference_id"`
}

type colorBreakdownRequest struct {
	ColorBreakdown models.ColorBreakdown `json:"color_breakdown"`
}

func productIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) createProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewProduct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), h.Store, &req)
		if err != nil {
			writeError(c, h.Logger, "createProduct", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": product})
	}
}

func (h *Handler) updateProductPricing() gin.HandlerFunc {
	return func(c *gin.Context) {
		productId, ok := productIdParam(c)
		if !ok {
			return
		}
		var req models.NewProductPricing
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		product, err := models.UpdateProductPricing(c.Request.Context(), h.Store, productId, &req)
		if err != nil {
			writeError(c, h.Logger, "updateProductPricing", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": product})
	}
}

func (h *Handler) updateColorBreakdown() gin.HandlerFunc {
	return func(c *gin.Context) {
		productId, ok := productIdParam(c)
		if !ok {
			return
		}
		user, err := utils.CurrentUser(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req colorBreakdownRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		product, err := models.UpdateColorBreakdown(c.Request.Context(), h.Store, productId, user.Id, req.ColorBreakdown)
		if err != nil {
			writeError(c, h.Logger, "updateColorBreakdown", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": product})
	}
}

func (h *Handler) applyStockMovement() gin.HandlerFunc {
	return func(c *gin.Context) {
		productId, ok := productIdParam(c)
		if !ok {
			return
		}
		user, err := utils.CurrentUser(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req stockMovementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		result, err := models.ApplyStockMovement(c.Request.Context(), h.Store, user.Id, &models.NewStockMovement{
			ProductId:     productId,
			Type:          req.Type,
			RawQuantity:   req.Quantity,
			ColorName:     req.ColorName,
			Reason:        req.Reason,
			ReferenceType: req.ReferenceType,
			ReferenceId:   req.ReferenceId,
		})
		if err != nil {
			writeError(c, h.Logger, "applyStockMovement", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": result})
	}
}

func (h *Handler) listStockMovements() gin.HandlerFunc {
	return func(c *gin.Context) {
		productId, ok := productIdParam(c)
		if !ok {
			return
		}
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = min(n, 500)
		}
		movements, err := models.ListStockMovements(c.Request.Context(), h.Store, productId, limit)
		if err != nil {
			writeError(c, h.Logger, "listStockMovements", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": movements})
	}
}
