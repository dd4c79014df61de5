package graph

import (
	"context"
	"errors"

	"github.com/mmdatafocus/wholesale_backend/middlewares"
	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/mmdatafocus/wholesale_backend/utils"
)

const maxLimit = 200

type Resolver struct {
	Store models.Store
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return maxLimit
	}
	return limit
}

func (r *Resolver) Products(ctx context.Context, supplierId *int, limit int) ([]*models.Product, error) {
	var filter models.Filter
	if supplierId != nil {
		filter = models.Filter{"supplier_id": *supplierId}
	}
	return r.Store.Products().Find(ctx, filter, "id asc", clampLimit(limit))
}

func (r *Resolver) Product(ctx context.Context, id int) (*models.Product, error) {
	product, err := r.Store.Products().FindById(ctx, id)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, nil
	}
	return product, err
}

func (r *Resolver) Suppliers(ctx context.Context) ([]*models.Supplier, error) {
	return r.Store.Suppliers().Find(ctx, nil, "id asc", 0)
}

func (r *Resolver) StockMovements(ctx context.Context, productId int, limit int) ([]*models.StockMovement, error) {
	return models.ListStockMovements(ctx, r.Store, productId, clampLimit(limit))
}

// Orders lists the caller's own orders, newest first.
func (r *Resolver) Orders(ctx context.Context, checkoutToken *string, limit int) ([]*models.Order, error) {
	user, err := utils.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	filter := models.Filter{"buyer_id": user.Id}
	if checkoutToken != nil {
		filter["checkout_token"] = *checkoutToken
	}
	return r.Store.Orders().Find(ctx, filter, "id desc", clampLimit(limit))
}

// Supplier resolves a nested supplier through the request's loaders, so a product list costs one
// supplier query.
func (r *Resolver) Supplier(ctx context.Context, id int) (*models.Supplier, error) {
	suppliers, err := middlewares.LoaderSupplierDirectory{Store: r.Store}.Suppliers(ctx, []int{id})
	if err != nil {
		return nil, err
	}
	return suppliers[id], nil
}
