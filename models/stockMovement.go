package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/wholesale_backend/config"
	"github.com/mmdatafocus/wholesale_backend/metrics"
	"github.com/mmdatafocus/wholesale_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("wholesale-backend/models")

// StockMovement is one immutable ledger entry. PreviousQuantity and ResultingQuantity are the
// product's grade stock around the movement.
type StockMovement struct {
	ID                int               `gorm:"primary_key" json:"id"`
	ProductId         int               `gorm:"index;not null" json:"product_id"`
	ColorName         string            `gorm:"size:50" json:"color_name,omitempty"`
	Type              StockMovementType `gorm:"type:enum('entry','exit','adjustment','loss','return');not null" json:"type"`
	RawQuantity       int               `gorm:"not null" json:"raw_quantity"`
	SignedDelta       int               `gorm:"not null" json:"signed_delta"`
	PreviousQuantity  int               `gorm:"not null" json:"previous_quantity"`
	ResultingQuantity int               `gorm:"not null" json:"resulting_quantity"`
	Reason            string            `gorm:"type:text" json:"reason"`
	ReferenceType     string            `gorm:"size:50" json:"reference_type,omitempty"`
	ReferenceId       int               `gorm:"default:0" json:"reference_id,omitempty"`
	ActorId           int               `gorm:"index" json:"actor_id"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

type NewStockMovement struct {
	ProductId     int               `json:"product_id" validate:"required,gt=0"`
	Type          StockMovementType `json:"type" validate:"required,oneof=entry exit adjustment loss return"`
	RawQuantity   int               `json:"quantity" validate:"required"`
	ColorName     string            `json:"color_name" validate:"max=50"`
	Reason        string            `json:"reason" validate:"max=500"`
	ReferenceType string            `json:"reference_type" validate:"max=50"`
	ReferenceId   int               `json:"reference_id"`
}

type StockMovementResult struct {
	Movement *StockMovement `json:"movement"`
	Product  *Product       `json:"product"`
	LowStock bool           `json:"low_stock"`
}

// SignedDelta converts a raw quantity into a stock delta. Adjustments carry their own sign;
// every other type takes an unsigned magnitude.
func SignedDelta(movementType StockMovementType, rawQuantity int) (int, error) {
	if !movementType.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMovementType, movementType)
	}
	if rawQuantity == 0 {
		return 0, fmt.Errorf("%w: quantity must not be zero", ErrInvalidQuantity)
	}
	switch movementType {
	case StockMovementTypeEntry, StockMovementTypeReturn:
		if rawQuantity < 0 {
			return 0, fmt.Errorf("%w: %s takes a positive quantity", ErrInvalidQuantity, movementType)
		}
		return rawQuantity, nil
	case StockMovementTypeExit, StockMovementTypeLoss:
		if rawQuantity < 0 {
			return 0, fmt.Errorf("%w: %s takes a positive quantity", ErrInvalidQuantity, movementType)
		}
		return -rawQuantity, nil
	default:
		return rawQuantity, nil
	}
}

// BuildStockMovement computes the movement and the product state after it without persisting either.
// product is not modified.
func BuildStockMovement(product *Product, input *NewStockMovement, actorId int) (*StockMovement, *Product, error) {
	delta, err := SignedDelta(input.Type, input.RawQuantity)
	if err != nil {
		return nil, nil, err
	}
	next := *product
	movement := &StockMovement{
		ProductId:        product.ID,
		Type:             input.Type,
		RawQuantity:      input.RawQuantity,
		SignedDelta:      delta,
		PreviousQuantity: product.CurrentStockGrades,
		Reason:           input.Reason,
		ReferenceType:    input.ReferenceType,
		ReferenceId:      input.ReferenceId,
		ActorId:          actorId,
	}

	if product.HasColorBreakdown() {
		if input.ColorName == "" {
			return nil, nil, ErrColorRequired
		}
		idx := product.ColorBreakdown.IndexOf(input.ColorName)
		if idx < 0 {
			return nil, nil, fmt.Errorf("%w: product %d has no colour %q", ErrInvalidAllocation, product.ID, input.ColorName)
		}
		color := product.ColorBreakdown[idx]
		if color.QuantityGrades+delta < 0 {
			return nil, nil, &NegativeStockError{ProductId: product.ID, ColorName: color.ColorName, Previous: color.QuantityGrades, Delta: delta}
		}
		next.ColorBreakdown = append(ColorBreakdown(nil), product.ColorBreakdown...)
		next.ColorBreakdown[idx].QuantityGrades += delta
		next.CurrentStockGrades = next.ColorBreakdown.Total()
		movement.ColorName = color.ColorName
	} else {
		if input.ColorName != "" {
			return nil, nil, fmt.Errorf("%w: product %d has no colour breakdown", ErrInvalidAllocation, product.ID)
		}
		next.CurrentStockGrades = product.CurrentStockGrades + delta
	}

	if next.CurrentStockGrades < 0 {
		return nil, nil, &NegativeStockError{ProductId: product.ID, Previous: product.CurrentStockGrades, Delta: delta}
	}
	movement.ResultingQuantity = next.CurrentStockGrades
	return movement, &next, nil
}

// ApplyStockMovement validates and applies one movement. The product counter update and the ledger
// row are written in one transaction; a rejected movement writes nothing.
func ApplyStockMovement(ctx context.Context, store Store, actorId int, input *NewStockMovement) (*StockMovementResult, error) {
	ctx, span := tracer.Start(ctx, "ApplyStockMovement", trace.WithAttributes(
		attribute.Int("product.id", input.ProductId),
		attribute.String("movement.type", string(input.Type)),
		attribute.Int("movement.raw_quantity", input.RawQuantity),
	))
	defer span.End()

	result, err := applyStockMovement(ctx, store, actorId, input)
	if err != nil {
		outcome := "error"
		var negErr *NegativeStockError
		switch {
		case errors.As(err, &negErr):
			outcome = "rejected"
			config.LogInfo(config.GetLogger(), "stockMovement.go", "ApplyStockMovement", "negative stock", negErr, err.Error())
		case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidMovementType),
			errors.Is(err, ErrColorRequired), errors.Is(err, ErrInvalidAllocation), utils.IsValidationError(err):
			outcome = "rejected"
		}
		metrics.StockMovementsTotal.WithLabelValues(string(input.Type), outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.StockMovementsTotal.WithLabelValues(string(input.Type), "applied").Inc()
	span.SetAttributes(attribute.Int("movement.resulting_quantity", result.Movement.ResultingQuantity))
	if result.LowStock {
		config.LogWarn(config.GetLogger(), "stockMovement.go", "ApplyStockMovement", "low stock", map[string]interface{}{
			"product_id": result.Product.ID,
			"stock":      result.Product.CurrentStockGrades,
			"minimum":    result.Product.MinimumStockGrades,
		}, "stock below minimum after movement")
	}
	return result, nil
}

func applyStockMovement(ctx context.Context, store Store, actorId int, input *NewStockMovement) (*StockMovementResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	var result StockMovementResult
	err := store.Transaction(ctx, func(tx Store) error {
		product, err := tx.Products().FindById(ctx, input.ProductId)
		if err != nil {
			return err
		}
		movement, next, err := BuildStockMovement(product, input, actorId)
		if err != nil {
			return err
		}
		patch := map[string]interface{}{"current_stock_grades": next.CurrentStockGrades}
		if movement.ColorName != "" {
			patch["color_breakdown"] = next.ColorBreakdown
		}
		updated, err := tx.Products().Update(ctx, product.ID, patch)
		if err != nil {
			return err
		}
		if err := tx.StockMovements().Create(ctx, movement); err != nil {
			return err
		}
		result = StockMovementResult{Movement: movement, Product: updated, LowStock: updated.IsLowStock()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListStockMovements returns a product's movements, newest first.
func ListStockMovements(ctx context.Context, store Store, productId int, limit int) ([]*StockMovement, error) {
	if _, err := store.Products().FindById(ctx, productId); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return store.StockMovements().Find(ctx, Filter{"product_id": productId}, "id desc", limit)
}
