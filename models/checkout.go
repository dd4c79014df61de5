package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mmdatafocus/wholesale_backend/config"
	"github.com/mmdatafocus/wholesale_backend/metrics"
	"github.com/mmdatafocus/wholesale_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type CheckoutOptions struct {
	// DecrementStock issues an exit movement per ordered line inside the order's transaction.
	DecrementStock bool
	// Compensate deletes already-created orders when a later supplier group fails.
	Compensate bool
	// RevalidatePrices rejects the cart when a line's unit price no longer matches the catalog.
	RevalidatePrices bool
	// CheckoutToken identifies this checkout; one order per buyer and supplier may exist per token.
	CheckoutToken string
	CorrelationId string
	// Placed are orders an earlier attempt already created under CheckoutToken for this buyer. Their
	// supplier groups are not ordered again.
	Placed []*Order
}

func DefaultCheckoutOptions() CheckoutOptions {
	return CheckoutOptions{
		DecrementStock:   config.CheckoutDecrementsStock(),
		Compensate:       config.CheckoutCompensates(),
		RevalidatePrices: config.CheckoutRevalidatesPrices(),
	}
}

type CheckoutResult struct {
	CheckoutToken string        `json:"checkout_token"`
	Orders        []*Order      `json:"orders"`
	Warnings      []CartWarning `json:"warnings"`
	Replayed      bool          `json:"replayed"`
}

// CartPriceChange describes a cart line that no longer matches the catalog.
type CartPriceChange struct {
	LineId        string           `json:"line_id"`
	ProductId     int              `json:"product_id"`
	PreviousPrice decimal.Decimal  `json:"previous_price"`
	CurrentPrice  *decimal.Decimal `json:"current_price,omitempty"`
	Removed       bool             `json:"removed"`
}

// RevalidateCart re-reads every product in the cart and lists lines whose unit price moved or whose
// product is gone or inactive.
func RevalidateCart(ctx context.Context, store Store, cart *Cart) ([]CartPriceChange, error) {
	var changes []CartPriceChange
	for _, item := range cart.Items {
		product, err := store.Products().FindById(ctx, item.ProductId)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			changes = append(changes, CartPriceChange{LineId: item.LineId, ProductId: item.ProductId, PreviousPrice: item.UnitPrice, Removed: true})
			continue
		} else if err != nil {
			return nil, err
		}
		if product.IsActive != nil && !*product.IsActive {
			changes = append(changes, CartPriceChange{LineId: item.LineId, ProductId: item.ProductId, PreviousPrice: item.UnitPrice, Removed: true})
			continue
		}
		current := product.UnitPrice()
		if !current.Equal(item.UnitPrice) {
			changes = append(changes, CartPriceChange{LineId: item.LineId, ProductId: item.ProductId, PreviousPrice: item.UnitPrice, CurrentPrice: &current})
		}
	}
	return changes, nil
}

// checkReport makes sure report was produced from the same groups that are about to be ordered.
func checkReport(groups *SupplierGroups, report *MinimumOrderReport) error {
	if len(report.Lines) != len(groups.Groups) {
		return ErrStaleReport
	}
	for _, g := range groups.Groups {
		line, ok := report.Line(g.SupplierId)
		if !ok || !line.Subtotal.Equal(g.Subtotal) || !line.Minimum.Equal(g.MinimumOrderValue) {
			return fmt.Errorf("%w: supplier %d", ErrStaleReport, g.SupplierId)
		}
	}
	return nil
}

// Checkout turns a cart whose minimum order report passes into one order per supplier group, in cart
// order. The cart is cleared only after every order is persisted; the caller saves it.
//
// Each order, its outbox record and (optionally) its stock exits are written in one transaction.
// A failure after some orders were created is returned as *PartialCheckoutError.
func Checkout(ctx context.Context, store Store, directory SupplierDirectory, cart *Cart, buyerId int, report *MinimumOrderReport, opts CheckoutOptions) (*CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "Checkout", trace.WithAttributes(
		attribute.String("cart.session_id", cart.SessionId),
		attribute.Int("cart.items", len(cart.Items)),
	))
	defer span.End()

	result, err := checkout(ctx, store, directory, cart, buyerId, report, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("checkout.orders", len(result.Orders)))
	return result, nil
}

func checkout(ctx context.Context, store Store, directory SupplierDirectory, cart *Cart, buyerId int, report *MinimumOrderReport, opts CheckoutOptions) (*CheckoutResult, error) {
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if report == nil {
		return nil, ErrStaleReport
	}
	if !report.AllPass() {
		return nil, &MinimumNotMetError{Report: report}
	}

	groups, err := GroupBySupplier(ctx, cart, directory)
	if err != nil {
		return nil, err
	}
	if len(groups.Groups) == 0 {
		return nil, ErrEmptyCart
	}
	if err := checkReport(groups, report); err != nil {
		return nil, err
	}
	if opts.RevalidatePrices {
		changes, err := RevalidateCart(ctx, store, cart)
		if err != nil {
			return nil, err
		}
		if len(changes) > 0 {
			return nil, &StaleCartError{Changes: changes}
		}
	}

	token := opts.CheckoutToken
	if token == "" {
		token = uuid.NewString()
	}
	placed, err := placedBySupplier(groups, opts.Placed)
	if err != nil {
		return nil, err
	}

	orders := make([]*Order, 0, len(groups.Groups))
	var created []placedOrder
	for k, group := range groups.Groups {
		if prev, ok := placed[group.SupplierId]; ok {
			orders = append(orders, prev)
			continue
		}
		p, err := placeOrder(ctx, store, token, buyerId, group, opts)
		if err == nil {
			created = append(created, *p)
			orders = append(orders, p.order)
			continue
		}
		if len(orders) == 0 {
			return nil, fmt.Errorf("supplier %d: %w", group.SupplierId, err)
		}

		partial := &PartialCheckoutError{
			Failed:  []int{group.SupplierId},
			Skipped: []int{},
			Cause:   err,
		}
		for _, o := range orders {
			partial.Succeeded = append(partial.Succeeded, o.SupplierId)
		}
		for _, rest := range groups.Groups[k+1:] {
			if _, ok := placed[rest.SupplierId]; ok {
				partial.Succeeded = append(partial.Succeeded, rest.SupplierId)
			} else {
				partial.Skipped = append(partial.Skipped, rest.SupplierId)
			}
		}
		if opts.Compensate {
			// only this attempt's orders; earlier attempts already reported theirs
			partial.Compensated = compensate(ctx, store, created)
		}
		config.LogError(config.GetLogger(), "checkout.go", "Checkout", "partial checkout", map[string]interface{}{
			"session_id":     cart.SessionId,
			"checkout_token": token,
			"succeeded":      partial.Succeeded,
			"failed":         partial.Failed,
			"skipped":        partial.Skipped,
			"compensated":    partial.Compensated,
		}, err)
		return nil, partial
	}

	result := &CheckoutResult{
		CheckoutToken: token,
		Orders:        orders,
		Warnings:      groups.Warnings,
		Replayed:      len(created) == 0,
	}
	cart.Clear()
	return result, nil
}

// placedBySupplier indexes orders of an earlier attempt by supplier. Each must match a current group's
// subtotal; otherwise the token was reused for a different cart.
func placedBySupplier(groups *SupplierGroups, previous []*Order) (map[int]*Order, error) {
	placed := make(map[int]*Order, len(previous))
	for _, o := range previous {
		group, ok := groups.Group(o.SupplierId)
		if !ok || !group.Subtotal.Equal(o.TotalValue) {
			return nil, fmt.Errorf("%w: order %d for supplier %d", ErrCheckoutTokenReused, o.ID, o.SupplierId)
		}
		placed[o.SupplierId] = o
	}
	return placed, nil
}

type placedOrder struct {
	order     *Order
	movements []NewStockMovement
}

func buildOrder(token string, buyerId int, group SupplierGroup) *Order {
	order := &Order{
		CheckoutToken: token,
		BuyerId:       buyerId,
		SupplierId:    group.SupplierId,
		TotalValue:    group.Subtotal,
		Status:        OrderStatusNew,
		PaymentStatus: PaymentStatusPending,
	}
	for _, item := range group.Items {
		order.Items = append(order.Items, OrderItem{
			ProductId:        item.ProductId,
			Name:             item.Name,
			Quantity:         item.Quantity,
			UnitPrice:        item.UnitPrice,
			SaleType:         item.SaleType,
			ColorAllocations: item.ColorAllocations,
			LineTotal:        item.LineTotal(),
		})
	}
	return order
}

// stockExits lists the exit movements that ship an order item. A colour line of quantity q and
// allocation total t ships each colour q/t times.
func stockExits(orderId int, item OrderItem) ([]NewStockMovement, error) {
	base := NewStockMovement{
		ProductId:     item.ProductId,
		Type:          StockMovementTypeExit,
		Reason:        fmt.Sprintf("order #%d", orderId),
		ReferenceType: StockReferenceOrder,
		ReferenceId:   orderId,
	}
	if len(item.ColorAllocations) == 0 {
		base.RawQuantity = item.Quantity
		return []NewStockMovement{base}, nil
	}
	total := item.ColorAllocations.Total()
	if total == 0 || item.Quantity%total != 0 {
		return nil, fmt.Errorf("%w: product %d quantity %d does not match allocation total %d", ErrInvalidAllocation, item.ProductId, item.Quantity, total)
	}
	factor := item.Quantity / total
	var exits []NewStockMovement
	for _, a := range item.ColorAllocations {
		if a.QuantityGrades == 0 {
			continue
		}
		m := base
		m.ColorName = a.ColorName
		m.RawQuantity = a.QuantityGrades * factor
		exits = append(exits, m)
	}
	return exits, nil
}

func placeOrder(ctx context.Context, store Store, token string, buyerId int, group SupplierGroup, opts CheckoutOptions) (*placedOrder, error) {
	placed := &placedOrder{}
	err := store.Transaction(ctx, func(tx Store) error {
		order := buildOrder(token, buyerId, group)
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		outbox, err := newOrderPlacedOutbox(order, opts.CorrelationId)
		if err != nil {
			return err
		}
		if err := tx.OrderOutbox().Create(ctx, outbox); err != nil {
			return err
		}
		var movements []NewStockMovement
		if opts.DecrementStock {
			for _, item := range order.Items {
				exits, err := stockExits(order.ID, item)
				if err != nil {
					return err
				}
				for i := range exits {
					if _, err := ApplyStockMovement(ctx, tx, buyerId, &exits[i]); err != nil {
						return err
					}
				}
				movements = append(movements, exits...)
			}
		}
		placed.order = order
		placed.movements = movements
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.OrdersCreatedTotal.Inc()
	return placed, nil
}

// compensate undoes created orders newest first. It reports whether every order was undone.
func compensate(ctx context.Context, store Store, created []placedOrder) bool {
	ok := true
	for i := len(created) - 1; i >= 0; i-- {
		c := created[i]
		err := store.Transaction(ctx, func(tx Store) error {
			outboxes, err := tx.OrderOutbox().Find(ctx, Filter{"order_id": c.order.ID}, "", 0)
			if err != nil {
				return err
			}
			for _, o := range outboxes {
				if o.PublishStatus == OutboxPublishStatusSent {
					config.LogWarn(config.GetLogger(), "checkout.go", "compensate", "order event already published", o.ID,
						fmt.Sprintf("order %d was announced before it was compensated", c.order.ID))
				}
				if err := tx.OrderOutbox().Delete(ctx, o.ID); err != nil {
					return err
				}
			}
			for _, m := range c.movements {
				back := m
				back.Type = StockMovementTypeReturn
				back.Reason = fmt.Sprintf("compensation of order #%d", c.order.ID)
				back.ReferenceType = StockReferenceCompensation
				if _, err := ApplyStockMovement(ctx, tx, c.order.BuyerId, &back); err != nil {
					return err
				}
			}
			return tx.Orders().Delete(ctx, c.order.ID)
		})
		if err != nil {
			ok = false
			config.LogError(config.GetLogger(), "checkout.go", "compensate", "compensation failed", c.order.ID, err)
		}
	}
	return ok
}
