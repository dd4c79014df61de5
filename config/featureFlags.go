package config

import (
	"os"
	"strings"
)

func envFlag(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return def
}

// CheckoutDecrementsStock makes checkout issue an `exit` stock movement for every
// ordered line, inside the same transaction as the order row.
//
// Set via env:
// - CHECKOUT_DECREMENT_STOCK=true (default false)
func CheckoutDecrementsStock() bool {
	return envFlag("CHECKOUT_DECREMENT_STOCK", false)
}

// CheckoutCompensates deletes already-created orders when a later supplier group fails.
//
// Set via env:
// - CHECKOUT_COMPENSATE=false to keep created orders for manual reconciliation (default true)
func CheckoutCompensates() bool {
	return envFlag("CHECKOUT_COMPENSATE", true)
}

// CheckoutRevalidatesPrices re-reads every product before checkout and rejects the
// cart when a unit price changed or a product disappeared.
//
// Set via env:
// - CHECKOUT_REVALIDATE_PRICES=false (default true)
func CheckoutRevalidatesPrices() bool {
	return envFlag("CHECKOUT_REVALIDATE_PRICES", true)
}
