package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/wholesale_backend/models"
)

type supplierReader struct {
	store models.Store
}

func (r *supplierReader) getSuppliers(ctx context.Context, ids []int) []*dataloader.Result[*models.Supplier] {
	results, err := r.store.Suppliers().Find(ctx, models.Filter{"id": ids}, "", 0)
	if err != nil {
		return handleError[*models.Supplier](len(ids), err)
	}
	return generateLoaderResults(results, ids, func(s *models.Supplier) int { return s.ID })
}

func GetSuppliers(ctx context.Context, ids []int) ([]*models.Supplier, []error) {
	loaders := For(ctx)
	return loaders.supplierLoader.LoadMany(ctx, ids)()
}

// LoaderSupplierDirectory resolves suppliers through the request's loaders and falls back to Store
// when the context carries none.
type LoaderSupplierDirectory struct {
	Store models.Store
}

func (d LoaderSupplierDirectory) Suppliers(ctx context.Context, ids []int) (map[int]*models.Supplier, error) {
	if For(ctx) == nil {
		return models.StoreSupplierDirectory{Store: d.Store}.Suppliers(ctx, ids)
	}
	suppliers, errs := GetSuppliers(ctx, ids)
	result := make(map[int]*models.Supplier, len(ids))
	for i, id := range ids {
		if len(errs) > i && errs[i] != nil {
			return nil, errs[i]
		}
		if suppliers[i] != nil {
			result[id] = suppliers[i]
		}
	}
	return result, nil
}
