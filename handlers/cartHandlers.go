package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/wholesale_backend/config"
	"github.com/mmdatafocus/wholesale_backend/middlewares"
	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/mmdatafocus/wholesale_backend/utils"
	"github.com/mmdatafocus/wholesale_backend/workflow"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type setColorRequest struct {
	ColorIndex int `json:"color_index"`
	Quantity   int `json:"quantity"`
}

// cartLine pairs a cart line with the quantity bounds of its product right now.
type cartLine struct {
	models.CartItem
	MinQuantity int  `json:"min_quantity"`
	MaxQuantity *int `json:"max_quantity,omitempty"`
	Available   bool `json:"available"`
}

type cartView struct {
	SessionId string     `json:"session_id"`
	Lines     []cartLine `json:"lines"`
}

func sessionFrom(c *gin.Context) (string, bool) {
	sessionId, ok := utils.GetCartSessionFromContext(c.Request.Context())
	if !ok || sessionId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart session is required"})
		return "", false
	}
	return sessionId, true
}

func (h *Handler) viewCart(c *gin.Context, cart *models.Cart) (*cartView, error) {
	view := &cartView{SessionId: cart.SessionId, Lines: make([]cartLine, 0, len(cart.Items))}
	if len(cart.Items) == 0 {
		return view, nil
	}
	ids := make([]int, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductId)
	}
	products, errs := middlewares.GetProducts(c.Request.Context(), ids)
	for i, item := range cart.Items {
		if len(errs) > i && errs[i] != nil {
			return nil, errs[i]
		}
		line := cartLine{CartItem: item}
		if product := products[i]; product != nil {
			lo, hi, bounded := product.QuantityBounds()
			line.MinQuantity = lo
			if bounded {
				line.MaxQuantity = &hi
			}
			line.Available = product.IsActive == nil || *product.IsActive
		}
		view.Lines = append(view.Lines, line)
	}
	return view, nil
}

func (h *Handler) respondCart(c *gin.Context, status int, funcName string, cart *models.Cart) {
	view, err := h.viewCart(c, cart)
	if err != nil {
		writeError(c, h.Logger, funcName, err)
		return
	}
	c.JSON(status, gin.H{"data": view})
}

func (h *Handler) getCart() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId, ok := sessionFrom(c)
		if !ok {
			return
		}
		cart, err := h.Cart.GetCart(c.Request.Context(), sessionId)
		if err != nil {
			writeError(c, h.Logger, "getCart", err)
			return
		}
		h.respondCart(c, http.StatusOK, "getCart", cart)
	}
}

func (h *Handler) addToCart() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId, ok := sessionFrom(c)
		if !ok {
			return
		}
		var req workflow.AddToCartInput
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		cart, err := h.Cart.AddToCart(c.Request.Context(), sessionId, &req)
		if err != nil {
			writeError(c, h.Logger, "addToCart", err)
			return
		}
		h.respondCart(c, http.StatusCreated, "addToCart", cart)
	}
}

func (h *Handler) removeFromCart() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId, ok := sessionFrom(c)
		if !ok {
			return
		}
		cart, err := h.Cart.RemoveFromCart(c.Request.Context(), sessionId, c.Param("lineId"))
		if err != nil {
			writeError(c, h.Logger, "removeFromCart", err)
			return
		}
		h.respondCart(c, http.StatusOK, "removeFromCart", cart)
	}
}

func (h *Handler) setQuantity() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId, ok := sessionFrom(c)
		if !ok {
			return
		}
		var req setQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		cart, err := h.Cart.SetQuantity(c.Request.Context(), sessionId, c.Param("lineId"), req.Quantity)
		if err != nil {
			writeError(c, h.Logger, "setQuantity", err)
			return
		}
		h.respondCart(c, http.StatusOK, "setQuantity", cart)
	}
}

func (h *Handler) setColorAllocation() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId, ok := sessionFrom(c)
		if !ok {
			return
		}
		var req setColorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		cart, err := h.Cart.SetColorAllocation(c.Request.Context(), sessionId, c.Param("lineId"), req.ColorIndex, req.Quantity)
		if err != nil {
			writeError(c, h.Logger, "setColorAllocation", err)
			return
		}
		h.respondCart(c, http.StatusOK, "setColorAllocation", cart)
	}
}

func (h *Handler) getSupplierGroups() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId, ok := sessionFrom(c)
		if !ok {
			return
		}
		groups, err := h.Cart.GetSupplierGroups(c.Request.Context(), sessionId)
		if err != nil {
			writeError(c, h.Logger, "getSupplierGroups", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": groups})
	}
}

func (h *Handler) validateMinimums() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId, ok := sessionFrom(c)
		if !ok {
			return
		}
		view, err := h.Cart.ValidateMinimums(c.Request.Context(), sessionId)
		if err != nil {
			writeError(c, h.Logger, "validateMinimums", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": view})
	}
}

func (h *Handler) checkout() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId, ok := sessionFrom(c)
		if !ok {
			return
		}
		user, err := utils.CurrentUser(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		key := strings.TrimSpace(c.Request.Header.Get(IdempotencyKeyHeader))
		if len(key) > 64 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key must be at most 64 characters"})
			return
		}
		result, err := h.Cart.Checkout(c.Request.Context(), sessionId, user.Id, key)
		var notCleared *models.CartNotClearedError
		if errors.As(err, &notCleared) {
			config.LogError(h.Logger, "cartHandlers.go", "checkout", "cart not cleared", sessionId, err)
			c.JSON(http.StatusCreated, gin.H{"data": notCleared.Result, "warning": notCleared.Error()})
			return
		}
		if err != nil {
			writeError(c, h.Logger, "checkout", err)
			return
		}
		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		c.JSON(status, gin.H{"data": result})
	}
}
