package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/wholesale_backend/config"
	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/mmdatafocus/wholesale_backend/utils"
	"github.com/sirupsen/logrus"
)

// unprocessable are the domain rejections a caller fixes by changing its request.
var unprocessable = []error{
	models.ErrInvalidQuantity,
	models.ErrInvalidAllocation,
	models.ErrInvalidMovementType,
	models.ErrColorRequired,
	models.ErrOutOfStock,
	models.ErrInactiveProduct,
	models.ErrEmptyCart,
	models.ErrStaleReport,
}

func writeError(c *gin.Context, logger *logrus.Logger, funcName string, err error) {
	var (
		negErr     *models.NegativeStockError
		minErr     *models.MinimumNotMetError
		staleErr   *models.StaleCartError
		partialErr *models.PartialCheckoutError
	)
	switch {
	case utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
	case errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, models.ErrCartItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &negErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "negative_stock", "detail": negErr})
	case errors.As(err, &minErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "minimum_not_met", "report": minErr.Report})
	case errors.As(err, &staleErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "stale_cart", "changes": staleErr.Changes})
	case errors.Is(err, models.ErrCheckoutInProgress), errors.Is(err, models.ErrCheckoutTokenReused), errors.Is(err, utils.ErrDuplicateRecord):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &partialErr):
		config.LogError(logger, "errors.go", funcName, "partial checkout", partialErr, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":       err.Error(),
			"code":        "partial_checkout",
			"succeeded":   partialErr.Succeeded,
			"failed":      partialErr.Failed,
			"skipped":     partialErr.Skipped,
			"compensated": partialErr.Compensated,
		})
	default:
		for _, target := range unprocessable {
			if errors.Is(err, target) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
		}
		config.LogError(logger, "errors.go", funcName, "unhandled", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
