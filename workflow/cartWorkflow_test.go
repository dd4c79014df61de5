package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/wholesale_backend/config"
	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/mmdatafocus/wholesale_backend/utils"
	"github.com/mmdatafocus/wholesale_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartFixture struct {
	ctx     context.Context
	store   *models.MemoryStore
	locker  *utils.MemoryLocker
	service *workflow.CartService
	shirts  *models.Product
	caps    *models.Product
	colours *models.Product
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	ctx := utils.SetUserIdInContext(context.Background(), 1)
	store := models.NewMemoryStore()
	locker := utils.NewMemoryLocker()

	supplierA, err := models.CreateSupplier(ctx, store, &models.NewSupplier{Name: "A", MinimumOrderValue: decimal.NewFromInt(500)})
	require.NoError(t, err)
	supplierB, err := models.CreateSupplier(ctx, store, &models.NewSupplier{Name: "B", MinimumOrderValue: decimal.NewFromInt(300)})
	require.NoError(t, err)

	shirts, err := models.CreateProduct(ctx, store, &models.NewProduct{
		SupplierId: supplierA.ID, Name: "Shirt", SaleType: models.SaleTypeGrade,
		PricePerPiece: decimal.NewFromInt(25), PiecesPerGrade: 6, CurrentStockGrades: 20,
	})
	require.NoError(t, err)
	caps, err := models.CreateProduct(ctx, store, &models.NewProduct{
		SupplierId: supplierB.ID, Name: "Cap", SaleType: models.SaleTypeUnit,
		PricePerPiece: decimal.NewFromInt(35), PiecesPerGrade: 1, CurrentStockGrades: 100,
	})
	require.NoError(t, err)
	colours, err := models.CreateProduct(ctx, store, &models.NewProduct{
		SupplierId: supplierA.ID, Name: "Polo", SaleType: models.SaleTypeGrade,
		PricePerPiece: decimal.NewFromInt(10), PiecesPerGrade: 4,
		ColorBreakdown: models.ColorBreakdown{{ColorName: "Red", QuantityGrades: 3}, {ColorName: "Blue", QuantityGrades: 5}},
	})
	require.NoError(t, err)

	service := workflow.NewCartService(store, models.NewMemoryCartStore(), models.StoreSupplierDirectory{Store: store}, locker, config.GetLogger())
	service.Options = models.CheckoutOptions{Compensate: true, RevalidatePrices: true}
	return &cartFixture{ctx: ctx, store: store, locker: locker, service: service, shirts: shirts, caps: caps, colours: colours}
}

// flakyStore fails order creation for one supplier while fail is set.
type flakyStore struct {
	models.Store
	failSupplier int
	fail         *bool
}

func (s flakyStore) Orders() models.RecordStore[models.Order] {
	return flakyOrders{RecordStore: s.Store.Orders(), failSupplier: s.failSupplier, fail: s.fail}
}

func (s flakyStore) Transaction(ctx context.Context, fn func(tx models.Store) error) error {
	return s.Store.Transaction(ctx, func(tx models.Store) error {
		return fn(flakyStore{Store: tx, failSupplier: s.failSupplier, fail: s.fail})
	})
}

type flakyOrders struct {
	models.RecordStore[models.Order]
	failSupplier int
	fail         *bool
}

var errOrderWrite = errors.New("order write failed")

func (o flakyOrders) Create(ctx context.Context, record *models.Order) error {
	if *o.fail && record.SupplierId == o.failSupplier {
		return errOrderWrite
	}
	return o.RecordStore.Create(ctx, record)
}

// flakyCarts fails cart writes on demand.
type flakyCarts struct {
	models.CartStore
	failSave   bool
	failDelete bool
}

var errCartWrite = errors.New("cart write failed")

func (c *flakyCarts) Save(ctx context.Context, cart *models.Cart) error {
	if c.failSave {
		return errCartWrite
	}
	return c.CartStore.Save(ctx, cart)
}

func (c *flakyCarts) Delete(ctx context.Context, sessionId string) error {
	if c.failDelete {
		return errCartWrite
	}
	return c.CartStore.Delete(ctx, sessionId)
}

// fill puts A at 450 and B at 350.
func (f *cartFixture) fill(t *testing.T, session string) {
	t.Helper()
	_, err := f.service.AddToCart(f.ctx, session, &workflow.AddToCartInput{ProductId: f.shirts.ID, Quantity: 3})
	require.NoError(t, err)
	_, err = f.service.AddToCart(f.ctx, session, &workflow.AddToCartInput{ProductId: f.caps.ID, Quantity: 10})
	require.NoError(t, err)
}

// fillPassing puts A at 600 and B at 350, so both minimums pass.
func (f *cartFixture) fillPassing(t *testing.T, session string) {
	t.Helper()
	f.fill(t, session)
	_, err := f.service.AddToCart(f.ctx, session, &workflow.AddToCartInput{ProductId: f.shirts.ID, Quantity: 1})
	require.NoError(t, err)
}

func (f *cartFixture) countOrders(t *testing.T) int {
	t.Helper()
	orders, err := f.store.Orders().Find(f.ctx, nil, "", 0)
	require.NoError(t, err)
	return len(orders)
}

func TestCartServicePersistsEdits(t *testing.T) {
	f := newCartFixture(t)
	f.fill(t, "s1")

	cart, err := f.service.GetCart(f.ctx, "s1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	shirtLine := cart.Items[0].LineId

	cart, err = f.service.SetQuantity(f.ctx, "s1", shirtLine, 50)
	require.NoError(t, err)
	assert.Equal(t, 20, cart.Items[0].Quantity)

	cart, err = f.service.SetQuantity(f.ctx, "s1", shirtLine, 0)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	cart, err = f.service.RemoveFromCart(f.ctx, "s1", cart.Items[0].LineId)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	_, err = f.service.RemoveFromCart(f.ctx, "s1", "missing")
	assert.ErrorIs(t, err, models.ErrCartItemNotFound)
}

func TestCartServiceColourAllocation(t *testing.T) {
	f := newCartFixture(t)

	cart, err := f.service.AddToCart(f.ctx, "s1", &workflow.AddToCartInput{
		ProductId:        f.colours.ID,
		ColorAllocations: models.ColorAllocations{{ColorName: "Red", QuantityGrades: 10}},
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)

	cart, err = f.service.SetColorAllocation(f.ctx, "s1", cart.Items[0].LineId, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	_, err = f.service.SetColorAllocation(f.ctx, "s1", cart.Items[0].LineId, 7, 1)
	assert.ErrorIs(t, err, models.ErrInvalidAllocation)
}

func TestCartServiceAddValidation(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.service.AddToCart(f.ctx, "s1", &workflow.AddToCartInput{ProductId: 0, Quantity: 1})
	assert.True(t, utils.IsValidationError(err))

	_, err = f.service.AddToCart(f.ctx, "s1", &workflow.AddToCartInput{ProductId: 999, Quantity: 1})
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestCartServiceMinimums(t *testing.T) {
	f := newCartFixture(t)
	f.fill(t, "s1")

	view, err := f.service.ValidateMinimums(f.ctx, "s1")
	require.NoError(t, err)
	assert.False(t, view.AllPass)
	require.Len(t, view.Report.Failing(), 1)
	assert.Equal(t, "50.00", view.Report.Failing()[0].Shortfall.StringFixed(2))

	groups, err := f.service.GetSupplierGroups(f.ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, groups.Groups, 2)
}

func TestCartServiceCheckout(t *testing.T) {
	f := newCartFixture(t)
	f.fill(t, "s1")

	_, err := f.service.Checkout(f.ctx, "s1", 1, "")
	require.ErrorIs(t, err, models.ErrMinimumNotMet)
	cart, err := f.service.GetCart(f.ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)

	_, err = f.service.AddToCart(f.ctx, "s1", &workflow.AddToCartInput{ProductId: f.shirts.ID, Quantity: 1})
	require.NoError(t, err)

	result, err := f.service.Checkout(f.ctx, "s1", 1, "")
	require.NoError(t, err)
	assert.Len(t, result.Orders, 2)
	assert.False(t, result.Replayed)

	cart, err = f.service.GetCart(f.ctx, "s1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCartServiceCheckoutReplaysIdempotencyKey(t *testing.T) {
	f := newCartFixture(t)
	f.fill(t, "s1")
	_, err := f.service.AddToCart(f.ctx, "s1", &workflow.AddToCartInput{ProductId: f.shirts.ID, Quantity: 1})
	require.NoError(t, err)

	first, err := f.service.Checkout(f.ctx, "s1", 1, "key-1")
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, "key-1", first.CheckoutToken)

	again, err := f.service.Checkout(f.ctx, "s1", 1, "key-1")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	require.Len(t, again.Orders, 2)
	assert.Equal(t, first.Orders[0].ID, again.Orders[0].ID)
	assert.Equal(t, first.Orders[1].ID, again.Orders[1].ID)

	orders, err := f.store.Orders().Find(f.ctx, nil, "", 0)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestCartServiceCheckoutInProgress(t *testing.T) {
	f := newCartFixture(t)
	f.fill(t, "s1")

	release, err := f.locker.Obtain(f.ctx, "Checkout:s1", time.Minute)
	require.NoError(t, err)

	_, err = f.service.Checkout(f.ctx, "s1", 1, "")
	assert.ErrorIs(t, err, models.ErrCheckoutInProgress)

	release()
	_, err = f.service.Checkout(f.ctx, "s1", 1, "")
	assert.ErrorIs(t, err, models.ErrMinimumNotMet)
}

func TestCartServiceCheckoutRejectsRepricedCart(t *testing.T) {
	f := newCartFixture(t)
	f.fill(t, "s1")
	_, err := f.service.AddToCart(f.ctx, "s1", &workflow.AddToCartInput{ProductId: f.shirts.ID, Quantity: 1})
	require.NoError(t, err)

	price := decimal.NewFromInt(30)
	_, err = models.UpdateProductPricing(f.ctx, f.store, f.caps.ID, &models.NewProductPricing{PricePerPiece: &price})
	require.NoError(t, err)

	_, err = f.service.Checkout(f.ctx, "s1", 1, "")
	assert.ErrorIs(t, err, models.ErrStaleCart)
}

func TestCartServiceIdempotencyKeyIsPerBuyer(t *testing.T) {
	f := newCartFixture(t)
	f.fillPassing(t, "s1")
	f.fillPassing(t, "s2")

	first, err := f.service.Checkout(f.ctx, "s1", 1, "checkout-1")
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)

	other, err := f.service.Checkout(f.ctx, "s2", 2, "checkout-1")
	require.NoError(t, err)
	assert.False(t, other.Replayed)
	require.Len(t, other.Orders, 2)
	for k, order := range other.Orders {
		assert.Equal(t, 2, order.BuyerId)
		assert.NotEqual(t, first.Orders[k].ID, order.ID)
	}

	cart, err := f.service.GetCart(f.ctx, "s2")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 4, f.countOrders(t))

	again, err := f.service.Checkout(f.ctx, "s1", 1, "checkout-1")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Orders[0].ID, again.Orders[0].ID)
	assert.Equal(t, 1, again.Orders[0].BuyerId)
}

func TestCartServiceRetryResumesPartialCheckout(t *testing.T) {
	f := newCartFixture(t)
	f.fillPassing(t, "s1")

	fail := true
	f.service.Store = flakyStore{Store: f.store, failSupplier: f.caps.SupplierId, fail: &fail}
	f.service.Options.Compensate = false

	_, err := f.service.Checkout(f.ctx, "s1", 1, "key-2")
	require.ErrorIs(t, err, models.ErrPartialCheckout)
	require.Equal(t, 1, f.countOrders(t))
	cart, err := f.service.GetCart(f.ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)

	first, err := f.store.Orders().Find(f.ctx, models.Filter{"checkout_token": "key-2"}, "", 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// still failing: the earlier order counts as succeeded, nothing new is placed
	_, err = f.service.Checkout(f.ctx, "s1", 1, "key-2")
	var partial *models.PartialCheckoutError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []int{f.shirts.SupplierId}, partial.Succeeded)
	assert.Equal(t, []int{f.caps.SupplierId}, partial.Failed)
	assert.Equal(t, 1, f.countOrders(t))

	fail = false
	result, err := f.service.Checkout(f.ctx, "s1", 1, "key-2")
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	require.Len(t, result.Orders, 2)
	assert.Equal(t, first[0].ID, result.Orders[0].ID)
	assert.Equal(t, f.caps.SupplierId, result.Orders[1].SupplierId)
	assert.Equal(t, 2, f.countOrders(t))

	cart, err = f.service.GetCart(f.ctx, "s1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	again, err := f.service.Checkout(f.ctx, "s1", 1, "key-2")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Len(t, again.Orders, 2)
}

func TestCartServiceRejectsKeyReusedForAnotherCart(t *testing.T) {
	f := newCartFixture(t)
	f.fillPassing(t, "s1")

	_, err := f.service.Checkout(f.ctx, "s1", 1, "key-3")
	require.NoError(t, err)

	_, err = f.service.AddToCart(f.ctx, "s1", &workflow.AddToCartInput{ProductId: f.caps.ID, Quantity: 10})
	require.NoError(t, err)

	_, err = f.service.Checkout(f.ctx, "s1", 1, "key-3")
	require.ErrorIs(t, err, models.ErrCheckoutTokenReused)
	assert.Equal(t, 2, f.countOrders(t))

	cart, err := f.service.GetCart(f.ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
}

func TestCartServiceDropsCartWhenClearedSaveFails(t *testing.T) {
	f := newCartFixture(t)
	f.fillPassing(t, "s1")

	f.service.Carts = &flakyCarts{CartStore: f.service.Carts, failSave: true}
	result, err := f.service.Checkout(f.ctx, "s1", 1, "")
	require.NoError(t, err)
	assert.Len(t, result.Orders, 2)

	cart, err := f.service.GetCart(f.ctx, "s1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestCartServiceReportsCartNotCleared(t *testing.T) {
	f := newCartFixture(t)
	f.fillPassing(t, "s1")

	carts := f.service.Carts
	f.service.Carts = &flakyCarts{CartStore: carts, failSave: true, failDelete: true}
	_, err := f.service.Checkout(f.ctx, "s1", 1, "key-4")
	require.ErrorIs(t, err, models.ErrCartNotCleared)
	require.ErrorIs(t, err, errCartWrite)
	var notCleared *models.CartNotClearedError
	require.ErrorAs(t, err, &notCleared)
	require.Len(t, notCleared.Result.Orders, 2)
	assert.Equal(t, 2, f.countOrders(t))

	// the stale cart still holds the lines; the same key returns the placed orders
	f.service.Carts = carts
	again, err := f.service.Checkout(f.ctx, "s1", 1, "key-4")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, notCleared.Result.Orders[0].ID, again.Orders[0].ID)
	assert.Equal(t, 2, f.countOrders(t))

	cart, err := f.service.GetCart(f.ctx, "s1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}
