package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNegativeStock       = errors.New("movement would drive stock below zero")
	ErrMinimumNotMet       = errors.New("one or more suppliers are below their minimum order value")
	ErrUnresolvedSupplier  = errors.New("supplier could not be resolved")
	ErrPartialCheckout     = errors.New("checkout partially failed")
	ErrInvalidAllocation   = errors.New("invalid colour allocation")
	ErrInvalidMovementType = errors.New("invalid stock movement type")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrColorRequired       = errors.New("product has a colour breakdown; movement must name a colour")
	ErrOutOfStock          = errors.New("not enough stock for the minimum purchasable quantity")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrCartItemNotFound    = errors.New("cart item not found")
	ErrStaleCart           = errors.New("cart prices no longer match the catalog")
	ErrStaleReport         = errors.New("minimum order report does not match the cart")
	ErrCheckoutInProgress  = errors.New("a checkout for this cart is already in progress")
	ErrInactiveProduct     = errors.New("product is not active")
	ErrCheckoutTokenReused = errors.New("checkout token was already used for a different cart")
	ErrCartNotCleared      = errors.New("orders were placed but the cart could not be cleared")
)

type NegativeStockError struct {
	ProductId int    `json:"product_id"`
	ColorName string `json:"color_name,omitempty"`
	Previous  int    `json:"previous_quantity"`
	Delta     int    `json:"signed_delta"`
}

func (e *NegativeStockError) Error() string {
	if e.ColorName != "" {
		return fmt.Sprintf("product %d colour %q: stock %d %+d would be negative", e.ProductId, e.ColorName, e.Previous, e.Delta)
	}
	return fmt.Sprintf("product %d: stock %d %+d would be negative", e.ProductId, e.Previous, e.Delta)
}

func (e *NegativeStockError) Unwrap() error { return ErrNegativeStock }

type MinimumNotMetError struct {
	Report *MinimumOrderReport
}

func (e *MinimumNotMetError) Error() string {
	var parts []string
	if e.Report != nil {
		for _, line := range e.Report.Failing() {
			parts = append(parts, fmt.Sprintf("supplier %d short by %s", line.SupplierId, line.Shortfall.StringFixed(2)))
		}
	}
	if len(parts) == 0 {
		return ErrMinimumNotMet.Error()
	}
	return ErrMinimumNotMet.Error() + ": " + strings.Join(parts, ", ")
}

func (e *MinimumNotMetError) Unwrap() error { return ErrMinimumNotMet }

// PartialCheckoutError reports a checkout where some supplier orders were persisted and others were not.
type PartialCheckoutError struct {
	Succeeded   []int `json:"succeeded_supplier_ids"`
	Failed      []int `json:"failed_supplier_ids"`
	Skipped     []int `json:"skipped_supplier_ids"`
	Compensated bool  `json:"compensated"`
	Cause       error `json:"-"`
}

func (e *PartialCheckoutError) Error() string {
	msg := fmt.Sprintf("checkout partially failed: succeeded=%v failed=%v skipped=%v compensated=%t",
		e.Succeeded, e.Failed, e.Skipped, e.Compensated)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PartialCheckoutError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrPartialCheckout}
	}
	return []error{ErrPartialCheckout, e.Cause}
}

// CartNotClearedError carries orders that were placed while their cart could not be cleared.
// Checking out again with Result.CheckoutToken as the idempotency key replays them.
type CartNotClearedError struct {
	Result *CheckoutResult
	Cause  error
}

func (e *CartNotClearedError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCartNotCleared.Error(), e.Cause)
}

func (e *CartNotClearedError) Unwrap() []error {
	return []error{ErrCartNotCleared, e.Cause}
}

type StaleCartError struct {
	Changes []CartPriceChange
}

func (e *StaleCartError) Error() string {
	return fmt.Sprintf("%s (%d lines changed)", ErrStaleCart.Error(), len(e.Changes))
}

func (e *StaleCartError) Unwrap() error { return ErrStaleCart }
