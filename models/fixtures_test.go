package models_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/mmdatafocus/wholesale_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	return utils.SetUserIdInContext(context.Background(), 1)
}

func seedSupplier(t *testing.T, store models.Store, name string, minimum string) *models.Supplier {
	t.Helper()
	supplier, err := models.CreateSupplier(testContext(), store, &models.NewSupplier{
		Name:              name,
		MinimumOrderValue: decimal.RequireFromString(minimum),
	})
	require.NoError(t, err)
	return supplier
}

// seedGradeProduct creates a grade product priced pricePerPiece x piecesPerGrade per grade.
func seedGradeProduct(t *testing.T, store models.Store, supplierId int, pricePerPiece string, piecesPerGrade int, stock int) *models.Product {
	t.Helper()
	product, err := models.CreateProduct(testContext(), store, &models.NewProduct{
		SupplierId:         supplierId,
		Name:               "Grade product",
		SaleType:           models.SaleTypeGrade,
		PricePerPiece:      decimal.RequireFromString(pricePerPiece),
		PiecesPerGrade:     piecesPerGrade,
		CurrentStockGrades: stock,
	})
	require.NoError(t, err)
	return product
}

func seedUnitProduct(t *testing.T, store models.Store, supplierId int, price string, stock int) *models.Product {
	t.Helper()
	product, err := models.CreateProduct(testContext(), store, &models.NewProduct{
		SupplierId:         supplierId,
		Name:               "Unit product",
		SaleType:           models.SaleTypeUnit,
		PricePerPiece:      decimal.RequireFromString(price),
		PiecesPerGrade:     1,
		CurrentStockGrades: stock,
	})
	require.NoError(t, err)
	return product
}

func seedColorProduct(t *testing.T, store models.Store, supplierId int, colors models.ColorBreakdown) *models.Product {
	t.Helper()
	product, err := models.CreateProduct(testContext(), store, &models.NewProduct{
		SupplierId:     supplierId,
		Name:           "Colour product",
		SaleType:       models.SaleTypeGrade,
		PricePerPiece:  decimal.NewFromInt(10),
		PiecesPerGrade: 4,
		ColorBreakdown: colors,
	})
	require.NoError(t, err)
	return product
}

func reloadProduct(t *testing.T, store models.Store, id int) *models.Product {
	t.Helper()
	product, err := store.Products().FindById(testContext(), id)
	require.NoError(t, err)
	return product
}
