package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/wholesale_backend/config"
	"github.com/mmdatafocus/wholesale_backend/metrics"
	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/mmdatafocus/wholesale_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("wholesale-backend/workflow")

// CartService runs the buyer-facing cart operations against a session's persisted cart.
type CartService struct {
	Store     models.Store
	Carts     models.CartStore
	Suppliers models.SupplierDirectory
	Locker    utils.Locker
	Logger    *logrus.Logger
	Options   models.CheckoutOptions
	LockTTL   time.Duration
}

func NewCartService(store models.Store, carts models.CartStore, suppliers models.SupplierDirectory, locker utils.Locker, logger *logrus.Logger) *CartService {
	return &CartService{
		Store:     store,
		Carts:     carts,
		Suppliers: suppliers,
		Locker:    locker,
		Logger:    logger,
		Options:   models.DefaultCheckoutOptions(),
		LockTTL:   30 * time.Second,
	}
}

type AddToCartInput struct {
	ProductId        int                     `json:"product_id" validate:"required,gt=0"`
	Quantity         int                     `json:"quantity" validate:"gte=0"`
	ColorAllocations models.ColorAllocations `json:"color_allocations" validate:"omitempty,dive"`
}

// MinimumsView is the minimum order report for a cart plus the lines that were left out of it.
type MinimumsView struct {
	AllPass  bool                       `json:"all_pass"`
	Report   *models.MinimumOrderReport `json:"report"`
	Warnings []models.CartWarning       `json:"warnings"`
}

func (s *CartService) GetCart(ctx context.Context, sessionId string) (*models.Cart, error) {
	return s.Carts.Load(ctx, sessionId)
}

func (s *CartService) update(ctx context.Context, sessionId string, fn func(cart *models.Cart) error) (*models.Cart, error) {
	cart, err := s.Carts.Load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	if err := s.Carts.Save(ctx, cart); err != nil {
		config.LogError(s.Logger, "cartWorkflow.go", "update", "Save cart", sessionId, err)
		return nil, err
	}
	return cart, nil
}

func (s *CartService) AddToCart(ctx context.Context, sessionId string, input *AddToCartInput) (*models.Cart, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	product, err := s.Store.Products().FindById(ctx, input.ProductId)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, sessionId, func(cart *models.Cart) error {
		_, err := cart.AddItem(product, input.Quantity, input.ColorAllocations)
		return err
	})
}

func (s *CartService) RemoveFromCart(ctx context.Context, sessionId string, lineId string) (*models.Cart, error) {
	return s.update(ctx, sessionId, func(cart *models.Cart) error {
		return cart.RemoveItem(lineId)
	})
}

func (s *CartService) lineProduct(ctx context.Context, cart *models.Cart, lineId string) (*models.Product, error) {
	item, err := cart.Item(lineId)
	if err != nil {
		return nil, err
	}
	return s.Store.Products().FindById(ctx, item.ProductId)
}

func (s *CartService) SetQuantity(ctx context.Context, sessionId string, lineId string, quantity int) (*models.Cart, error) {
	return s.update(ctx, sessionId, func(cart *models.Cart) error {
		if quantity <= 0 {
			return cart.RemoveItem(lineId)
		}
		product, err := s.lineProduct(ctx, cart, lineId)
		if err != nil {
			return err
		}
		return cart.SetQuantity(lineId, product, quantity)
	})
}

func (s *CartService) SetColorAllocation(ctx context.Context, sessionId string, lineId string, colorIndex int, quantity int) (*models.Cart, error) {
	return s.update(ctx, sessionId, func(cart *models.Cart) error {
		product, err := s.lineProduct(ctx, cart, lineId)
		if err != nil {
			return err
		}
		return cart.SetColorAllocation(lineId, product, colorIndex, quantity)
	})
}

func (s *CartService) GetSupplierGroups(ctx context.Context, sessionId string) (*models.SupplierGroups, error) {
	cart, err := s.Carts.Load(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	return models.GroupBySupplier(ctx, cart, s.Suppliers)
}

func (s *CartService) ValidateMinimums(ctx context.Context, sessionId string) (*MinimumsView, error) {
	groups, err := s.GetSupplierGroups(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	report := models.ValidateMinimums(groups)
	return &MinimumsView{AllPass: report.AllPass(), Report: report, Warnings: groups.Warnings}, nil
}

// Checkout places one order per supplier for the session's cart. At most one checkout per session runs
// at a time. A non-empty idempotencyKey becomes the checkout token, scoped to buyerId. Repeating a key
// after a completed checkout returns the orders placed under it; repeating it while the cart still
// holds items orders only the supplier groups that have no order under the key yet.
func (s *CartService) Checkout(ctx context.Context, sessionId string, buyerId int, idempotencyKey string) (*models.CheckoutResult, error) {
	ctx, span := tracer.Start(ctx, "CartService.Checkout", trace.WithAttributes(
		attribute.String("cart.session_id", sessionId),
		attribute.Int("buyer.id", buyerId),
	))
	defer span.End()

	release, err := s.Locker.Obtain(ctx, "Checkout:"+sessionId, s.LockTTL)
	if err != nil {
		if errors.Is(err, utils.ErrLockNotObtained) {
			metrics.CheckoutsTotal.WithLabelValues("in_progress").Inc()
			return nil, models.ErrCheckoutInProgress
		}
		return nil, err
	}
	defer release()

	cart, err := s.Carts.Load(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	var placed []*models.Order
	if idempotencyKey != "" {
		placed, err = s.Store.Orders().Find(ctx, models.Filter{"checkout_token": idempotencyKey, "buyer_id": buyerId}, "id asc", 0)
		if err != nil {
			return nil, err
		}
		if len(placed) > 0 && cart.IsEmpty() {
			metrics.CheckoutsTotal.WithLabelValues("replayed").Inc()
			return &models.CheckoutResult{CheckoutToken: idempotencyKey, Orders: placed, Warnings: []models.CartWarning{}, Replayed: true}, nil
		}
	}

	groups, err := models.GroupBySupplier(ctx, cart, s.Suppliers)
	if err != nil {
		return nil, err
	}
	report := models.ValidateMinimums(groups)

	opts := s.Options
	opts.CheckoutToken = idempotencyKey
	opts.Placed = placed
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		opts.CorrelationId = correlationId
	}
	result, err := models.Checkout(ctx, s.Store, s.Suppliers, cart, buyerId, report, opts)
	if err != nil {
		metrics.CheckoutsTotal.WithLabelValues(checkoutOutcome(err)).Inc()
		return nil, err
	}
	if result.Replayed {
		metrics.CheckoutsTotal.WithLabelValues("replayed").Inc()
	} else {
		metrics.CheckoutsTotal.WithLabelValues("success").Inc()
	}

	if err := s.clearCart(ctx, cart); err != nil {
		return nil, &models.CartNotClearedError{Result: result, Cause: err}
	}
	return result, nil
}

// clearCart stores the emptied cart, falling back to dropping the session's cart entirely.
func (s *CartService) clearCart(ctx context.Context, cart *models.Cart) error {
	err := s.Carts.Save(ctx, cart)
	if err == nil {
		return nil
	}
	config.LogError(s.Logger, "cartWorkflow.go", "clearCart", "Save cleared cart", cart.SessionId, err)
	if delErr := s.Carts.Delete(ctx, cart.SessionId); delErr != nil {
		config.LogError(s.Logger, "cartWorkflow.go", "clearCart", "Delete cart", cart.SessionId, delErr)
		return errors.Join(err, delErr)
	}
	return nil
}

func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrMinimumNotMet):
		return "minimum_not_met"
	case errors.Is(err, models.ErrPartialCheckout):
		return "partial"
	case errors.Is(err, models.ErrStaleCart):
		return "stale_cart"
	case errors.Is(err, models.ErrEmptyCart):
		return "empty"
	case errors.Is(err, models.ErrCheckoutTokenReused):
		return "token_reused"
	}
	return "error"
}
