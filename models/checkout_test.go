package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore fails order creation for one supplier.
type failingStore struct {
	models.Store
	failSupplier int
}

func (s failingStore) Orders() models.RecordStore[models.Order] {
	return failingOrders{RecordStore: s.Store.Orders(), failSupplier: s.failSupplier}
}

func (s failingStore) Transaction(ctx context.Context, fn func(tx models.Store) error) error {
	return s.Store.Transaction(ctx, func(tx models.Store) error {
		return fn(failingStore{Store: tx, failSupplier: s.failSupplier})
	})
}

type failingOrders struct {
	models.RecordStore[models.Order]
	failSupplier int
}

var errOrderWrite = errors.New("order write failed")

func (o failingOrders) Create(ctx context.Context, record *models.Order) error {
	if record.SupplierId == o.failSupplier {
		return errOrderWrite
	}
	return o.RecordStore.Create(ctx, record)
}

func plainOptions() models.CheckoutOptions {
	return models.CheckoutOptions{Compensate: true}
}

func countOrders(t *testing.T, store models.Store) int {
	t.Helper()
	orders, err := store.Orders().Find(testContext(), nil, "", 0)
	require.NoError(t, err)
	return len(orders)
}

func TestCheckoutRejectedBelowMinimum(t *testing.T) {
	f := newTwoSupplierCart(t)

	_, err := models.Checkout(testContext(), f.store, f.directory, f.cart, 1, f.report(t), plainOptions())
	require.ErrorIs(t, err, models.ErrMinimumNotMet)
	var notMet *models.MinimumNotMetError
	require.ErrorAs(t, err, &notMet)
	require.Len(t, notMet.Report.Failing(), 1)
	assert.Equal(t, "50.00", notMet.Report.Failing()[0].Shortfall.StringFixed(2))

	assert.Equal(t, 0, countOrders(t, f.store))
	assert.Len(t, f.cart.Items, 2)
}

func TestCheckoutCreatesOneOrderPerSupplier(t *testing.T) {
	f := newTwoSupplierCart(t)
	f.topUp(t)

	result, err := models.Checkout(testContext(), f.store, f.directory, f.cart, 7, f.report(t), plainOptions())
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)
	assert.NotEmpty(t, result.CheckoutToken)
	assert.True(t, f.cart.IsEmpty())
	assert.Equal(t, 2, countOrders(t, f.store))

	a := result.Orders[0]
	assert.Equal(t, f.supplierA.ID, a.SupplierId)
	assert.Equal(t, 7, a.BuyerId)
	assert.Equal(t, models.OrderStatusNew, a.Status)
	assert.Equal(t, models.PaymentStatusPending, a.PaymentStatus)
	assert.Equal(t, "600.00", a.TotalValue.StringFixed(2))
	require.Len(t, a.Items, 1)
	assert.Equal(t, 4, a.Items[0].Quantity)
	assert.Equal(t, models.SaleTypeGrade, a.Items[0].SaleType)

	b := result.Orders[1]
	assert.Equal(t, f.supplierB.ID, b.SupplierId)
	assert.Equal(t, "350.00", b.TotalValue.StringFixed(2))

	outbox, err := f.store.OrderOutbox().Find(testContext(), models.Filter{"publish_status": models.OutboxPublishStatusPending}, "", 0)
	require.NoError(t, err)
	assert.Len(t, outbox, 2)

	// stock is left to the ledger unless checkout is asked to decrement it
	assert.Equal(t, 20, reloadProduct(t, f.store, f.shirts.ID).CurrentStockGrades)
}

func TestCheckoutPreconditions(t *testing.T) {
	f := newTwoSupplierCart(t)
	f.topUp(t)

	_, err := models.Checkout(testContext(), f.store, f.directory, models.NewCart("other"), 1, &models.MinimumOrderReport{}, plainOptions())
	assert.ErrorIs(t, err, models.ErrEmptyCart)

	_, err = models.Checkout(testContext(), f.store, f.directory, f.cart, 1, nil, plainOptions())
	assert.ErrorIs(t, err, models.ErrStaleReport)

	stale := f.report(t)
	_, err = f.cart.AddItem(f.caps, 5, nil)
	require.NoError(t, err)
	_, err = models.Checkout(testContext(), f.store, f.directory, f.cart, 1, stale, plainOptions())
	assert.ErrorIs(t, err, models.ErrStaleReport)

	assert.Equal(t, 0, countOrders(t, f.store))
}

func TestCheckoutPartialFailureCompensates(t *testing.T) {
	f := newTwoSupplierCart(t)
	f.topUp(t)
	store := failingStore{Store: f.store, failSupplier: f.supplierB.ID}

	opts := plainOptions()
	opts.DecrementStock = true
	_, err := models.Checkout(testContext(), store, f.directory, f.cart, 1, f.report(t), opts)
	require.ErrorIs(t, err, models.ErrPartialCheckout)
	require.ErrorIs(t, err, errOrderWrite)
	var partial *models.PartialCheckoutError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []int{f.supplierA.ID}, partial.Succeeded)
	assert.Equal(t, []int{f.supplierB.ID}, partial.Failed)
	assert.Empty(t, partial.Skipped)
	assert.True(t, partial.Compensated)

	assert.Equal(t, 0, countOrders(t, f.store))
	outbox, err := f.store.OrderOutbox().Find(testContext(), nil, "", 0)
	require.NoError(t, err)
	assert.Empty(t, outbox)
	assert.Len(t, f.cart.Items, 2)

	// exit then compensating return
	assert.Equal(t, 20, reloadProduct(t, f.store, f.shirts.ID).CurrentStockGrades)
	movements, err := models.ListStockMovements(testContext(), f.store, f.shirts.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, models.StockMovementTypeReturn, movements[0].Type)
	assert.Equal(t, models.StockReferenceCompensation, movements[0].ReferenceType)
	assert.Equal(t, models.StockMovementTypeExit, movements[1].Type)
}

func TestCheckoutPartialFailureWithoutCompensation(t *testing.T) {
	f := newTwoSupplierCart(t)
	f.topUp(t)
	store := failingStore{Store: f.store, failSupplier: f.supplierB.ID}

	_, err := models.Checkout(testContext(), store, f.directory, f.cart, 1, f.report(t), models.CheckoutOptions{})
	var partial *models.PartialCheckoutError
	require.ErrorAs(t, err, &partial)
	assert.False(t, partial.Compensated)
	assert.Equal(t, 1, countOrders(t, f.store))
	assert.Len(t, f.cart.Items, 2)
}

func TestCheckoutFirstSupplierFailureCreatesNothing(t *testing.T) {
	f := newTwoSupplierCart(t)
	f.topUp(t)
	store := failingStore{Store: f.store, failSupplier: f.supplierA.ID}

	_, err := models.Checkout(testContext(), store, f.directory, f.cart, 1, f.report(t), plainOptions())
	require.ErrorIs(t, err, errOrderWrite)
	var partial *models.PartialCheckoutError
	assert.False(t, errors.As(err, &partial))
	assert.Equal(t, 0, countOrders(t, f.store))
}

func TestCheckoutDecrementsStock(t *testing.T) {
	f := newTwoSupplierCart(t)
	f.topUp(t)
	opts := plainOptions()
	opts.DecrementStock = true

	result, err := models.Checkout(testContext(), f.store, f.directory, f.cart, 1, f.report(t), opts)
	require.NoError(t, err)
	assert.Equal(t, 16, reloadProduct(t, f.store, f.shirts.ID).CurrentStockGrades)
	assert.Equal(t, 90, reloadProduct(t, f.store, f.caps.ID).CurrentStockGrades)

	movements, err := models.ListStockMovements(testContext(), f.store, f.caps.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, models.StockReferenceOrder, movements[0].ReferenceType)
	assert.Equal(t, result.Orders[1].ID, movements[0].ReferenceId)
}

func TestCheckoutDecrementRollsBackOrderOnNegativeStock(t *testing.T) {
	store := models.NewMemoryStore()
	directory := models.StoreSupplierDirectory{Store: store}
	supplier := seedSupplier(t, store, "A", "0")
	product := seedUnitProduct(t, store, supplier.ID, "10", 5)

	cart := models.NewCart("s")
	_, err := cart.AddItem(product, 5, nil)
	require.NoError(t, err)
	// stock drops after the line was added
	_, err = applyMovement(t, store, product.ID, models.StockMovementTypeLoss, 3)
	require.NoError(t, err)

	groups, err := models.GroupBySupplier(testContext(), cart, directory)
	require.NoError(t, err)
	_, err = models.Checkout(testContext(), store, directory, cart, 1, models.ValidateMinimums(groups), models.CheckoutOptions{DecrementStock: true})
	require.ErrorIs(t, err, models.ErrNegativeStock)
	assert.Equal(t, 0, countOrders(t, store))
	assert.Equal(t, 2, reloadProduct(t, store, product.ID).CurrentStockGrades)
}

func TestCheckoutColourLineDecrementsEachColour(t *testing.T) {
	store := models.NewMemoryStore()
	directory := models.StoreSupplierDirectory{Store: store}
	supplier := seedSupplier(t, store, "A", "0")
	product := seedColorProduct(t, store, supplier.ID, models.ColorBreakdown{
		{ColorName: "Red", QuantityGrades: 6},
		{ColorName: "Blue", QuantityGrades: 6},
	})
	cart := models.NewCart("s")
	allocs := models.ColorAllocations{{ColorName: "Red", QuantityGrades: 1}, {ColorName: "Blue", QuantityGrades: 2}}
	_, err := cart.AddItem(product, 0, allocs)
	require.NoError(t, err)
	_, err = cart.AddItem(product, 0, allocs)
	require.NoError(t, err)
	require.Equal(t, 6, cart.Items[0].Quantity)

	groups, err := models.GroupBySupplier(testContext(), cart, directory)
	require.NoError(t, err)
	_, err = models.Checkout(testContext(), store, directory, cart, 1, models.ValidateMinimums(groups), models.CheckoutOptions{DecrementStock: true})
	require.NoError(t, err)

	reloaded := reloadProduct(t, store, product.ID)
	assert.Equal(t, 4, reloaded.ColorBreakdown[0].QuantityGrades)
	assert.Equal(t, 2, reloaded.ColorBreakdown[1].QuantityGrades)
	assert.Equal(t, 6, reloaded.CurrentStockGrades)
}

func TestCheckoutRevalidatesPrices(t *testing.T) {
	f := newTwoSupplierCart(t)
	f.topUp(t)
	price := decimal.NewFromInt(40)
	_, err := models.UpdateProductPricing(testContext(), f.store, f.caps.ID, &models.NewProductPricing{PricePerPiece: &price})
	require.NoError(t, err)

	opts := plainOptions()
	opts.RevalidatePrices = true
	_, err = models.Checkout(testContext(), f.store, f.directory, f.cart, 1, f.report(t), opts)
	require.ErrorIs(t, err, models.ErrStaleCart)
	var stale *models.StaleCartError
	require.ErrorAs(t, err, &stale)
	require.Len(t, stale.Changes, 1)
	assert.Equal(t, f.caps.ID, stale.Changes[0].ProductId)
	require.NotNil(t, stale.Changes[0].CurrentPrice)
	assert.Equal(t, "40.00", stale.Changes[0].CurrentPrice.StringFixed(2))
	assert.Equal(t, 0, countOrders(t, f.store))

	// snapshot pricing is kept when revalidation is off
	result, err := models.Checkout(testContext(), f.store, f.directory, f.cart, 1, f.report(t), plainOptions())
	require.NoError(t, err)
	assert.Equal(t, "350.00", result.Orders[1].TotalValue.StringFixed(2))
}

func TestCheckoutSkipsUnresolvedSupplierLines(t *testing.T) {
	f := newTwoSupplierCart(t)
	f.topUp(t)
	_, err := f.cart.AddItem(gradeProduct(500, 999, 10), 2, nil)
	require.NoError(t, err)

	result, err := models.Checkout(testContext(), f.store, f.directory, f.cart, 1, f.report(t), plainOptions())
	require.NoError(t, err)
	assert.Len(t, result.Orders, 2)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, models.CartWarningUnresolvedSupplier, result.Warnings[0].Code)
}
