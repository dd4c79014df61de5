package models

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/wholesale_backend/config"
	"github.com/mmdatafocus/wholesale_backend/metrics"
	"github.com/shopspring/decimal"
)

// SupplierDirectory resolves suppliers by id. Ids it cannot resolve are simply absent from the result.
type SupplierDirectory interface {
	Suppliers(ctx context.Context, ids []int) (map[int]*Supplier, error)
}

// StoreSupplierDirectory reads suppliers straight from the record store.
type StoreSupplierDirectory struct {
	Store Store
}

func (d StoreSupplierDirectory) Suppliers(ctx context.Context, ids []int) (map[int]*Supplier, error) {
	result := make(map[int]*Supplier, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	suppliers, err := d.Store.Suppliers().Find(ctx, Filter{"id": ids}, "", 0)
	if err != nil {
		return nil, err
	}
	for _, s := range suppliers {
		result[s.ID] = s
	}
	return result, nil
}

type SupplierGroup struct {
	SupplierId        int             `json:"supplier_id"`
	SupplierName      string          `json:"supplier_name"`
	MinimumOrderValue decimal.Decimal `json:"minimum_order_value"`
	Items             []CartItem      `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
}

const CartWarningUnresolvedSupplier = "unresolved_supplier"

// CartWarning explains a cart line that was left out of grouping.
type CartWarning struct {
	Code       string `json:"code"`
	LineId     string `json:"line_id"`
	ProductId  int    `json:"product_id"`
	SupplierId int    `json:"supplier_id"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

// SupplierGroups holds one group per resolved supplier in cart order, plus the lines that were excluded.
type SupplierGroups struct {
	Groups   []SupplierGroup `json:"groups"`
	Warnings []CartWarning   `json:"warnings"`
}

func (g *SupplierGroups) Group(supplierId int) (*SupplierGroup, bool) {
	for i := range g.Groups {
		if g.Groups[i].SupplierId == supplierId {
			return &g.Groups[i], true
		}
	}
	return nil, false
}

func (g *SupplierGroups) SupplierIds() []int {
	ids := make([]int, 0, len(g.Groups))
	for _, group := range g.Groups {
		ids = append(ids, group.SupplierId)
	}
	return ids
}

// Subtotal sums unitPrice x quantity over items.
func Subtotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].LineTotal())
	}
	return total
}

// GroupBySupplier splits the cart into per-supplier groups. Lines whose supplier cannot be resolved
// count towards no group and are returned as warnings.
func GroupBySupplier(ctx context.Context, cart *Cart, directory SupplierDirectory) (*SupplierGroups, error) {
	var ids []int
	seen := map[int]bool{}
	for _, item := range cart.Items {
		if item.SupplierId > 0 && !seen[item.SupplierId] {
			seen[item.SupplierId] = true
			ids = append(ids, item.SupplierId)
		}
	}
	suppliers, err := directory.Suppliers(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := &SupplierGroups{Groups: []SupplierGroup{}, Warnings: []CartWarning{}}
	for _, item := range cart.Items {
		supplier, ok := suppliers[item.SupplierId]
		if !ok || supplier == nil {
			warning := CartWarning{
				Code:       CartWarningUnresolvedSupplier,
				LineId:     item.LineId,
				ProductId:  item.ProductId,
				SupplierId: item.SupplierId,
				Message:    fmt.Sprintf("%s is not available from any known supplier and was left out", item.Name),
				Err:        fmt.Errorf("%w: %d", ErrUnresolvedSupplier, item.SupplierId),
			}
			result.Warnings = append(result.Warnings, warning)
			metrics.UnresolvedSupplierItemsTotal.Inc()
			config.LogWarn(config.GetLogger(), "supplierGroup.go", "GroupBySupplier", "unresolved supplier", map[string]interface{}{
				"session_id":  cart.SessionId,
				"line_id":     item.LineId,
				"product_id":  item.ProductId,
				"supplier_id": item.SupplierId,
			}, warning.Err.Error())
			continue
		}
		group, found := result.Group(supplier.ID)
		if !found {
			result.Groups = append(result.Groups, SupplierGroup{
				SupplierId:        supplier.ID,
				SupplierName:      supplier.Name,
				MinimumOrderValue: supplier.MinimumOrderValue,
				Items:             []CartItem{},
			})
			group = &result.Groups[len(result.Groups)-1]
		}
		group.Items = append(group.Items, item)
	}
	for i := range result.Groups {
		result.Groups[i].Subtotal = Subtotal(result.Groups[i].Items)
	}
	return result, nil
}
