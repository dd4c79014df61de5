package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ColorAllocation struct {
	ColorName      string `json:"color_name" validate:"required,max=50"`
	ColorHex       string `json:"color_hex"`
	QuantityGrades int    `json:"quantity_grades" validate:"gte=0"`
}

// ColorAllocations is a buyer's split of grades across a product's colours.
type ColorAllocations []ColorAllocation

func (a ColorAllocations) Total() int {
	total := 0
	for _, c := range a {
		total += c.QuantityGrades
	}
	return total
}

func (a ColorAllocations) IndexOf(colorName string) int {
	for i, c := range a {
		if strings.EqualFold(c.ColorName, colorName) {
			return i
		}
	}
	return -1
}

func (a ColorAllocations) counts() map[string]int {
	m := make(map[string]int, len(a))
	for _, c := range a {
		if c.QuantityGrades == 0 {
			continue
		}
		m[strings.ToLower(c.ColorName)] += c.QuantityGrades
	}
	return m
}

// Equal compares allocations as multisets: order and zero entries are ignored.
func (a ColorAllocations) Equal(other ColorAllocations) bool {
	x, y := a.counts(), other.counts()
	if len(x) != len(y) {
		return false
	}
	for name, qty := range x {
		if y[name] != qty {
			return false
		}
	}
	return true
}

func (a ColorAllocations) Value() (driver.Value, error) {
	return jsonValue(a)
}

func (a *ColorAllocations) Scan(value interface{}) error {
	return jsonScan(value, a)
}

// CartItem snapshots a product at the time it was added. UnitPrice is not refreshed afterwards.
type CartItem struct {
	LineId           string           `json:"line_id"`
	ProductId        int              `json:"product_id"`
	SupplierId       int              `json:"supplier_id"`
	Name             string           `json:"name"`
	SaleType         SaleType         `json:"sale_type"`
	UnitPrice        decimal.Decimal  `json:"unit_price"`
	Quantity         int              `json:"quantity"`
	ColorAllocations ColorAllocations `json:"color_allocations,omitempty"`
	AddedAt          time.Time        `json:"added_at"`
}

func (i *CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i *CartItem) HasColorAllocations() bool {
	return len(i.ColorAllocations) > 0
}

func (i *CartItem) sameIdentity(other *CartItem) bool {
	return i.ProductId == other.ProductId && i.ColorAllocations.Equal(other.ColorAllocations)
}

// Cart is an ordered list of lines for one session.
type Cart struct {
	SessionId string     `json:"session_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func NewCart(sessionId string) *Cart {
	return &Cart{SessionId: sessionId, Items: []CartItem{}}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.touch()
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now()
}

func (c *Cart) indexOf(lineId string) int {
	for i := range c.Items {
		if c.Items[i].LineId == lineId {
			return i
		}
	}
	return -1
}

func (c *Cart) Item(lineId string) (*CartItem, error) {
	idx := c.indexOf(lineId)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrCartItemNotFound, lineId)
	}
	return &c.Items[idx], nil
}

// AddItem adds product to the cart. A line with the same product and the same colour allocation
// absorbs the quantity instead of creating a new line.
// For products with a colour breakdown quantity is ignored; the allocation total is the quantity.
func (c *Cart) AddItem(product *Product, quantity int, allocs ColorAllocations) (*CartItem, error) {
	if product.IsActive != nil && !*product.IsActive {
		return nil, fmt.Errorf("%w: %d", ErrInactiveProduct, product.ID)
	}
	clamped, err := product.ClampAllocations(allocs)
	if err != nil {
		return nil, err
	}
	line := CartItem{
		ProductId:        product.ID,
		SupplierId:       product.SupplierId,
		Name:             product.Name,
		SaleType:         product.SaleType,
		UnitPrice:        product.UnitPrice(),
		ColorAllocations: clamped,
	}
	line.Quantity = product.EffectiveQuantity(quantity, clamped)
	if line.Quantity <= 0 {
		if product.HasColorBreakdown() {
			return nil, fmt.Errorf("%w: no colour selected", ErrInvalidQuantity)
		}
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	for i := range c.Items {
		existing := &c.Items[i]
		if !existing.sameIdentity(&line) {
			continue
		}
		merged := existing.Quantity + line.Quantity
		if product.HasColorBreakdown() {
			merged = clampAllocationMultiple(product, existing.ColorAllocations, merged)
		} else if merged, err = product.ClampQuantity(merged); err != nil {
			return nil, err
		}
		existing.Quantity = merged
		c.touch()
		return existing, nil
	}

	if !product.HasColorBreakdown() {
		if line.Quantity, err = product.ClampQuantity(line.Quantity); err != nil {
			return nil, err
		}
	}
	line.LineId = uuid.NewString()
	line.AddedAt = time.Now()
	c.Items = append(c.Items, line)
	c.touch()
	return &c.Items[len(c.Items)-1], nil
}

// clampAllocationMultiple caps quantity of a merged colour line so every colour, repeated
// quantity/total times, stays within that colour's stock.
func clampAllocationMultiple(product *Product, allocs ColorAllocations, quantity int) int {
	total := allocs.Total()
	if total == 0 || !product.stockLimited() {
		return quantity
	}
	factor := quantity / total
	for _, a := range allocs {
		if a.QuantityGrades == 0 {
			continue
		}
		idx := product.ColorBreakdown.IndexOf(a.ColorName)
		if idx < 0 {
			continue
		}
		factor = min(factor, product.ColorBreakdown[idx].QuantityGrades/a.QuantityGrades)
	}
	return max(factor, 1) * total
}

func (c *Cart) RemoveItem(lineId string) error {
	idx := c.indexOf(lineId)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrCartItemNotFound, lineId)
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.touch()
	return nil
}

// SetQuantity sets the stepper quantity of a plain line. Zero or less removes the line.
func (c *Cart) SetQuantity(lineId string, product *Product, quantity int) error {
	item, err := c.Item(lineId)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return c.RemoveItem(lineId)
	}
	if item.HasColorAllocations() || product.HasColorBreakdown() {
		return fmt.Errorf("%w: line %s is sized by its colour allocation", ErrInvalidQuantity, lineId)
	}
	clamped, err := product.ClampQuantity(quantity)
	if err != nil {
		return err
	}
	item.Quantity = clamped
	c.touch()
	return nil
}

// SetColorAllocation sets one colour of a line, clamped to that colour's stock, and resizes the line
// to the allocation total. A line left with no colours is removed; a line that becomes identical to
// another line is merged into it.
func (c *Cart) SetColorAllocation(lineId string, product *Product, colorIndex int, requested int) error {
	item, err := c.Item(lineId)
	if err != nil {
		return err
	}
	allocs, err := product.SetColorQuantity(item.ColorAllocations, colorIndex, requested)
	if err != nil {
		return err
	}
	if allocs.Total() == 0 {
		return c.RemoveItem(lineId)
	}
	item.ColorAllocations = allocs
	item.Quantity = allocs.Total()
	c.mergeDuplicates(product)
	c.touch()
	return nil
}

// mergeDuplicates folds lines of product with equal identity into the earliest one. The merged
// quantity is clamped so no colour ships more than its stock.
func (c *Cart) mergeDuplicates(product *Product) {
	out := c.Items[:0]
	for _, item := range c.Items {
		merged := false
		for j := range out {
			if out[j].ProductId == product.ID && out[j].sameIdentity(&item) {
				out[j].Quantity = clampAllocationMultiple(product, out[j].ColorAllocations, out[j].Quantity+item.Quantity)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, item)
		}
	}
	c.Items = out
}
