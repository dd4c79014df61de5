package models_test

import (
	"testing"

	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/mmdatafocus/wholesale_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradeProduct(id, supplierId int, stock int) *models.Product {
	p := &models.Product{
		ID:                    id,
		SupplierId:            supplierId,
		Name:                  "Shirt",
		SaleType:              models.SaleTypeGrade,
		PricePerPiece:         decimal.NewFromInt(10),
		PiecesPerGrade:        5,
		StockTrackingEnabled:  utils.NewTrue(),
		AllowSaleWithoutStock: utils.NewFalse(),
		IsActive:              utils.NewTrue(),
		CurrentStockGrades:    stock,
	}
	p.Normalize()
	return p
}

func colourProduct(id, supplierId int) *models.Product {
	p := gradeProduct(id, supplierId, 0)
	p.ColorBreakdown = models.ColorBreakdown{
		{ColorName: "Red", QuantityGrades: 4},
		{ColorName: "Blue", QuantityGrades: 10},
	}
	p.Normalize()
	return p
}

func TestAddItemMergesIdenticalLines(t *testing.T) {
	cart := models.NewCart("s1")
	product := gradeProduct(1, 1, 20)

	_, err := cart.AddItem(product, 3, nil)
	require.NoError(t, err)
	_, err = cart.AddItem(product, 4, nil)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 7, cart.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(50).Equal(cart.Items[0].UnitPrice))
	assert.True(t, decimal.NewFromInt(350).Equal(cart.Items[0].LineTotal()))
}

func TestAddItemMergesIdenticalColourAllocation(t *testing.T) {
	cart := models.NewCart("s1")
	product := colourProduct(1, 1)
	allocs := models.ColorAllocations{{ColorName: "Red", QuantityGrades: 1}, {ColorName: "Blue", QuantityGrades: 2}}

	_, err := cart.AddItem(product, 0, allocs)
	require.NoError(t, err)
	// same colours in another order
	_, err = cart.AddItem(product, 0, models.ColorAllocations{{ColorName: "blue", QuantityGrades: 2}, {ColorName: "red", QuantityGrades: 1}})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 6, cart.Items[0].Quantity)
}

func TestAddItemKeepsDifferentAllocationsApart(t *testing.T) {
	cart := models.NewCart("s1")
	product := colourProduct(1, 1)

	_, err := cart.AddItem(product, 0, models.ColorAllocations{{ColorName: "Red", QuantityGrades: 1}})
	require.NoError(t, err)
	_, err = cart.AddItem(product, 0, models.ColorAllocations{{ColorName: "Blue", QuantityGrades: 1}})
	require.NoError(t, err)

	assert.Len(t, cart.Items, 2)
}

func TestAddItemClampsToStock(t *testing.T) {
	cart := models.NewCart("s1")
	product := gradeProduct(1, 1, 5)

	item, err := cart.AddItem(product, 9, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)

	item, err = cart.AddItem(product, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
}

func TestAddItemColourOverAllocationClamps(t *testing.T) {
	cart := models.NewCart("s1")
	product := colourProduct(1, 1)

	item, err := cart.AddItem(product, 0, models.ColorAllocations{{ColorName: "Red", QuantityGrades: 9}})
	require.NoError(t, err)
	assert.Equal(t, 4, item.Quantity)
	assert.Equal(t, 4, item.ColorAllocations[0].QuantityGrades)
}

func TestAddItemRejections(t *testing.T) {
	cart := models.NewCart("s1")

	inactive := gradeProduct(1, 1, 5)
	inactive.IsActive = utils.NewFalse()
	_, err := cart.AddItem(inactive, 2, nil)
	assert.ErrorIs(t, err, models.ErrInactiveProduct)

	_, err = cart.AddItem(gradeProduct(2, 1, 5), 0, nil)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	_, err = cart.AddItem(colourProduct(3, 1), 0, nil)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	_, err = cart.AddItem(gradeProduct(4, 1, 1), 2, nil)
	assert.ErrorIs(t, err, models.ErrOutOfStock)

	assert.True(t, cart.IsEmpty())
}

func TestSetQuantity(t *testing.T) {
	cart := models.NewCart("s1")
	product := gradeProduct(1, 1, 8)
	item, err := cart.AddItem(product, 3, nil)
	require.NoError(t, err)
	lineId := item.LineId

	require.NoError(t, cart.SetQuantity(lineId, product, 1))
	assert.Equal(t, 2, cart.Items[0].Quantity)

	require.NoError(t, cart.SetQuantity(lineId, product, 100))
	assert.Equal(t, 8, cart.Items[0].Quantity)

	require.NoError(t, cart.SetQuantity(lineId, product, 0))
	assert.True(t, cart.IsEmpty())

	assert.ErrorIs(t, cart.SetQuantity("missing", product, 3), models.ErrCartItemNotFound)
}

func TestSetColorAllocation(t *testing.T) {
	cart := models.NewCart("s1")
	product := colourProduct(1, 1)
	item, err := cart.AddItem(product, 0, models.ColorAllocations{{ColorName: "Red", QuantityGrades: 1}})
	require.NoError(t, err)
	lineId := item.LineId

	require.NoError(t, cart.SetColorAllocation(lineId, product, 1, 3))
	assert.Equal(t, 4, cart.Items[0].Quantity)

	// Red only has 4
	require.NoError(t, cart.SetColorAllocation(lineId, product, 0, 50))
	assert.Equal(t, 7, cart.Items[0].Quantity)

	assert.ErrorIs(t, cart.SetQuantity(lineId, product, 3), models.ErrInvalidQuantity)

	require.NoError(t, cart.SetColorAllocation(lineId, product, 0, 0))
	require.NoError(t, cart.SetColorAllocation(lineId, product, 1, 0))
	assert.True(t, cart.IsEmpty())
}

func TestSetColorAllocationMergesLinesThatBecomeIdentical(t *testing.T) {
	cart := models.NewCart("s1")
	product := colourProduct(1, 1)
	first, err := cart.AddItem(product, 0, models.ColorAllocations{{ColorName: "Red", QuantityGrades: 1}})
	require.NoError(t, err)
	firstId := first.LineId
	second, err := cart.AddItem(product, 0, models.ColorAllocations{{ColorName: "Red", QuantityGrades: 2}})
	require.NoError(t, err)

	require.NoError(t, cart.SetColorAllocation(second.LineId, product, 0, 1))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, firstId, cart.Items[0].LineId)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestSetColorAllocationMergeClampsToColourStock(t *testing.T) {
	cart := models.NewCart("s1")
	product := colourProduct(1, 1)
	_, err := cart.AddItem(product, 0, models.ColorAllocations{{ColorName: "Red", QuantityGrades: 3}})
	require.NoError(t, err)
	second, err := cart.AddItem(product, 0, models.ColorAllocations{{ColorName: "Red", QuantityGrades: 1}})
	require.NoError(t, err)

	// 3 + 3 Red would exceed the 4 in stock
	require.NoError(t, cart.SetColorAllocation(second.LineId, product, 0, 3))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 3, cart.Items[0].ColorAllocations.Total())
}

func TestRemoveItem(t *testing.T) {
	cart := models.NewCart("s1")
	item, err := cart.AddItem(gradeProduct(1, 1, 8), 2, nil)
	require.NoError(t, err)

	require.NoError(t, cart.RemoveItem(item.LineId))
	assert.True(t, cart.IsEmpty())
	assert.ErrorIs(t, cart.RemoveItem(item.LineId), models.ErrCartItemNotFound)
}

func TestMemoryCartStoreRoundTrip(t *testing.T) {
	ctx := testContext()
	carts := models.NewMemoryCartStore()

	empty, err := carts.Load(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "s1", empty.SessionId)

	_, err = empty.AddItem(gradeProduct(1, 1, 8), 2, nil)
	require.NoError(t, err)
	require.NoError(t, carts.Save(ctx, empty))

	loaded, err := carts.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, 2, loaded.Items[0].Quantity)

	require.NoError(t, carts.Delete(ctx, "s1"))
	loaded, err = carts.Load(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, loaded.IsEmpty())
}
