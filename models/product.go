package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/wholesale_backend/utils"
	"github.com/shopspring/decimal"
)

// Product is one sellable catalog entry. Grade products are sold in pre-defined bundles of
// PiecesPerGrade pieces; unit products are sold per piece.
type Product struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	SupplierId            int             `gorm:"index;not null" json:"supplier_id"`
	Name                  string          `gorm:"size:100;not null" json:"name"`
	Sku                   string          `gorm:"size:100" json:"sku"`
	SaleType              SaleType        `gorm:"type:enum('unit','grade');not null;default:grade" json:"sale_type"`
	PricePerPiece         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price_per_piece"`
	PiecesPerGrade        int             `gorm:"not null;default:1" json:"pieces_per_grade"`
	PricePerFullGrade     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price_per_full_grade"`
	SizeBreakdown         SizeBreakdown   `gorm:"type:json" json:"size_breakdown"`
	ColorBreakdown        ColorBreakdown  `gorm:"type:json" json:"color_breakdown"`
	StockTrackingEnabled  *bool           `gorm:"not null;default:true" json:"stock_tracking_enabled"`
	AllowSaleWithoutStock *bool           `gorm:"not null;default:false" json:"allow_sale_without_stock"`
	CurrentStockGrades    int             `gorm:"not null;default:0" json:"current_stock_grades"`
	MinimumStockGrades    int             `gorm:"not null;default:0" json:"minimum_stock_grades"`
	IsActive              *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type ColorStock struct {
	ColorName      string `json:"color_name" validate:"required,max=50"`
	ColorHex       string `json:"color_hex" validate:"omitempty,hexcolor"`
	QuantityGrades int    `json:"quantity_grades" validate:"gte=0"`
}

// ColorBreakdown lists the grade stock held per colour. When present its total is the product's stock.
type ColorBreakdown []ColorStock

func (b ColorBreakdown) Total() int {
	total := 0
	for _, c := range b {
		total += c.QuantityGrades
	}
	return total
}

// IndexOf returns the position of the colour with the given name, or -1.
func (b ColorBreakdown) IndexOf(colorName string) int {
	for i, c := range b {
		if strings.EqualFold(c.ColorName, colorName) {
			return i
		}
	}
	return -1
}

func (b ColorBreakdown) Value() (driver.Value, error) {
	return jsonValue(b)
}

func (b *ColorBreakdown) Scan(value interface{}) error {
	return jsonScan(value, b)
}

// SizeBreakdown is the informational size composition of one grade (size -> pieces).
type SizeBreakdown map[string]int

func (s SizeBreakdown) Value() (driver.Value, error) {
	return jsonValue(s)
}

func (s *SizeBreakdown) Scan(value interface{}) error {
	return jsonScan(value, s)
}

func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonScan(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
}

type NewProduct struct {
	SupplierId            int             `json:"supplier_id" validate:"required,gt=0"`
	Name                  string          `json:"name" validate:"required,max=100"`
	Sku                   string          `json:"sku" validate:"max=100"`
	SaleType              SaleType        `json:"sale_type" validate:"required,oneof=unit grade"`
	PricePerPiece         decimal.Decimal `json:"price_per_piece"`
	PiecesPerGrade        int             `json:"pieces_per_grade" validate:"required,gt=0"`
	SizeBreakdown         SizeBreakdown   `json:"size_breakdown" validate:"omitempty,dive,keys,required,endkeys,gte=0"`
	ColorBreakdown        ColorBreakdown  `json:"color_breakdown" validate:"omitempty,dive"`
	StockTrackingEnabled  *bool           `json:"stock_tracking_enabled"`
	AllowSaleWithoutStock *bool           `json:"allow_sale_without_stock"`
	CurrentStockGrades    int             `json:"current_stock_grades" validate:"gte=0"`
	MinimumStockGrades    int             `json:"minimum_stock_grades" validate:"gte=0"`
}

type NewProductPricing struct {
	SaleType       *SaleType        `json:"sale_type" validate:"omitempty,oneof=unit grade"`
	PricePerPiece  *decimal.Decimal `json:"price_per_piece"`
	PiecesPerGrade *int             `json:"pieces_per_grade" validate:"omitempty,gt=0"`
}

// RecomputeFullGradePrice keeps PricePerFullGrade = PiecesPerGrade x PricePerPiece.
func (p *Product) RecomputeFullGradePrice() {
	p.PricePerFullGrade = p.PricePerPiece.Mul(decimal.NewFromInt(int64(p.PiecesPerGrade)))
}

// Normalize re-derives every computed field.
func (p *Product) Normalize() {
	p.RecomputeFullGradePrice()
	if p.HasColorBreakdown() {
		p.CurrentStockGrades = p.ColorBreakdown.Total()
	}
}

func (p *Product) HasColorBreakdown() bool {
	return len(p.ColorBreakdown) > 0
}

// UnitPrice is the price of one unit of quantity: a full grade for grade products, a piece otherwise.
func (p *Product) UnitPrice() decimal.Decimal {
	if p.SaleType == SaleTypeGrade {
		return p.PricePerFullGrade
	}
	return p.PricePerPiece
}

func (p *Product) stockLimited() bool {
	return utils.BoolValue(p.StockTrackingEnabled) && !utils.BoolValue(p.AllowSaleWithoutStock)
}

func (p *Product) IsLowStock() bool {
	return utils.BoolValue(p.StockTrackingEnabled) && p.CurrentStockGrades < p.MinimumStockGrades
}

// QuantityBounds returns the purchasable range for the plain quantity stepper.
// bounded is false when stock does not cap the quantity.
func (p *Product) QuantityBounds() (lo int, hi int, bounded bool) {
	lo = 1
	if p.SaleType == SaleTypeGrade {
		lo = 2
	}
	if p.stockLimited() {
		return lo, p.CurrentStockGrades, true
	}
	return lo, 0, false
}

// ClampQuantity fits a requested stepper quantity into QuantityBounds.
func (p *Product) ClampQuantity(requested int) (int, error) {
	if p.HasColorBreakdown() {
		return 0, fmt.Errorf("%w: product %d is sold by colour allocation", ErrInvalidAllocation, p.ID)
	}
	lo, hi, bounded := p.QuantityBounds()
	if bounded && hi < lo {
		return 0, fmt.Errorf("%w: product %d has %d grades, minimum is %d", ErrOutOfStock, p.ID, hi, lo)
	}
	q := max(requested, lo)
	if bounded {
		q = min(q, hi)
	}
	return q, nil
}

// ClampColorQuantity fits requested into [0, the colour's own stock].
func (p *Product) ClampColorQuantity(colorIndex int, requested int) (int, error) {
	if colorIndex < 0 || colorIndex >= len(p.ColorBreakdown) {
		return 0, fmt.Errorf("%w: colour index %d out of range for product %d", ErrInvalidAllocation, colorIndex, p.ID)
	}
	available := p.ColorBreakdown[colorIndex].QuantityGrades
	return min(max(requested, 0), available), nil
}

// SetColorQuantity returns allocs with the colour at colorIndex set to the clamped requested quantity.
// Colours allocated to zero are dropped.
func (p *Product) SetColorQuantity(allocs ColorAllocations, colorIndex int, requested int) (ColorAllocations, error) {
	qty, err := p.ClampColorQuantity(colorIndex, requested)
	if err != nil {
		return nil, err
	}
	color := p.ColorBreakdown[colorIndex]
	out := make(ColorAllocations, 0, len(allocs)+1)
	found := false
	for _, a := range allocs {
		if strings.EqualFold(a.ColorName, color.ColorName) {
			found = true
			if qty > 0 {
				out = append(out, ColorAllocation{ColorName: color.ColorName, ColorHex: color.ColorHex, QuantityGrades: qty})
			}
			continue
		}
		out = append(out, a)
	}
	if !found && qty > 0 {
		out = append(out, ColorAllocation{ColorName: color.ColorName, ColorHex: color.ColorHex, QuantityGrades: qty})
	}
	return out, nil
}

// ClampAllocations resolves every allocation against the colour breakdown, merging repeated colours
// and clamping each to that colour's stock.
func (p *Product) ClampAllocations(allocs ColorAllocations) (ColorAllocations, error) {
	if !p.HasColorBreakdown() {
		if len(allocs) > 0 {
			return nil, fmt.Errorf("%w: product %d has no colour breakdown", ErrInvalidAllocation, p.ID)
		}
		return nil, nil
	}
	var out ColorAllocations
	for _, a := range allocs {
		idx := p.ColorBreakdown.IndexOf(a.ColorName)
		if idx < 0 {
			return nil, fmt.Errorf("%w: product %d has no colour %q", ErrInvalidAllocation, p.ID, a.ColorName)
		}
		requested := a.QuantityGrades
		if existing := out.IndexOf(a.ColorName); existing >= 0 {
			requested += out[existing].QuantityGrades
		}
		var err error
		if out, err = p.SetColorQuantity(out, idx, requested); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EffectiveQuantity is the grade count a line represents.
func (p *Product) EffectiveQuantity(quantity int, allocs ColorAllocations) int {
	if p.HasColorBreakdown() {
		return allocs.Total()
	}
	return quantity
}

func TotalPiecesFor(p *Product, selectedGradeCount int) int {
	return selectedGradeCount * p.PiecesPerGrade
}

func PriceFor(p *Product, quantity int) decimal.Decimal {
	return p.UnitPrice().Mul(decimal.NewFromInt(int64(quantity)))
}

func (input *NewProduct) validate(ctx context.Context, store Store) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.PricePerPiece.IsNegative() {
		return errors.New("price per piece must not be negative")
	}
	if err := validateColorNames(input.ColorBreakdown); err != nil {
		return err
	}
	// exists supplier
	if _, err := store.Suppliers().FindById(ctx, input.SupplierId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return errors.New("supplier not found")
		}
		return err
	}
	return nil
}

func validateColorNames(breakdown ColorBreakdown) error {
	seen := make(map[string]bool, len(breakdown))
	for _, c := range breakdown {
		key := strings.ToLower(strings.TrimSpace(c.ColorName))
		if key == "" {
			return errors.New("colour name is required")
		}
		if seen[key] {
			return fmt.Errorf("duplicate colour %q", c.ColorName)
		}
		seen[key] = true
	}
	return nil
}

func CreateProduct(ctx context.Context, store Store, input *NewProduct) (*Product, error) {
	if err := input.validate(ctx, store); err != nil {
		return nil, err
	}
	product := Product{
		SupplierId:            input.SupplierId,
		Name:                  input.Name,
		Sku:                   input.Sku,
		SaleType:              input.SaleType,
		PricePerPiece:         input.PricePerPiece,
		PiecesPerGrade:        input.PiecesPerGrade,
		SizeBreakdown:         input.SizeBreakdown,
		ColorBreakdown:        input.ColorBreakdown,
		StockTrackingEnabled:  input.StockTrackingEnabled,
		AllowSaleWithoutStock: input.AllowSaleWithoutStock,
		CurrentStockGrades:    input.CurrentStockGrades,
		MinimumStockGrades:    input.MinimumStockGrades,
		IsActive:              utils.NewTrue(),
	}
	if product.StockTrackingEnabled == nil {
		product.StockTrackingEnabled = utils.NewTrue()
	}
	if product.AllowSaleWithoutStock == nil {
		product.AllowSaleWithoutStock = utils.NewFalse()
	}
	product.Normalize()

	if err := store.Products().Create(ctx, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProductPricing changes any of sale type, piece price and pieces per grade, and recomputes
// the full grade price in the same write.
func UpdateProductPricing(ctx context.Context, store Store, productId int, input *NewProductPricing) (*Product, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.PricePerPiece != nil && input.PricePerPiece.IsNegative() {
		return nil, errors.New("price per piece must not be negative")
	}
	var updated *Product
	err := store.Transaction(ctx, func(tx Store) error {
		product, err := tx.Products().FindById(ctx, productId)
		if err != nil {
			return err
		}
		if input.SaleType != nil {
			product.SaleType = *input.SaleType
		}
		if input.PricePerPiece != nil {
			product.PricePerPiece = *input.PricePerPiece
		}
		if input.PiecesPerGrade != nil {
			product.PiecesPerGrade = *input.PiecesPerGrade
		}
		product.RecomputeFullGradePrice()
		updated, err = tx.Products().Update(ctx, productId, map[string]interface{}{
			"sale_type":            product.SaleType,
			"price_per_piece":      product.PricePerPiece,
			"pieces_per_grade":     product.PiecesPerGrade,
			"price_per_full_grade": product.PricePerFullGrade,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateColorBreakdown replaces the colour breakdown and recomputes stock as its total. A change in
// total is recorded as an adjustment movement so the ledger keeps explaining the counter.
func UpdateColorBreakdown(ctx context.Context, store Store, productId int, actorId int, breakdown ColorBreakdown) (*Product, error) {
	for i := range breakdown {
		if err := utils.ValidateStruct(&breakdown[i]); err != nil {
			return nil, err
		}
	}
	if err := validateColorNames(breakdown); err != nil {
		return nil, err
	}
	var updated *Product
	err := store.Transaction(ctx, func(tx Store) error {
		product, err := tx.Products().FindById(ctx, productId)
		if err != nil {
			return err
		}
		previous := product.CurrentStockGrades
		resulting := breakdown.Total()
		if len(breakdown) == 0 {
			resulting = previous
		}
		updated, err = tx.Products().Update(ctx, productId, map[string]interface{}{
			"color_breakdown":      breakdown,
			"current_stock_grades": resulting,
		})
		if err != nil {
			return err
		}
		if resulting == previous {
			return nil
		}
		return tx.StockMovements().Create(ctx, &StockMovement{
			ProductId:         productId,
			Type:              StockMovementTypeAdjustment,
			RawQuantity:       resulting - previous,
			SignedDelta:       resulting - previous,
			PreviousQuantity:  previous,
			ResultingQuantity: resulting,
			Reason:            "colour breakdown updated",
			ReferenceType:     StockReferenceColorBreakdown,
			ActorId:           actorId,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
