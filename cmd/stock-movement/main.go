package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/wholesale_backend/config"
	"github.com/mmdatafocus/wholesale_backend/models"
)

// Applies a single stock movement from the command line. Without --apply it only prints the
// movement the ledger would record.
func main() {
	productID := flag.Int("product-id", 0, "Required: product id")
	movementType := flag.String("type", "", "Required: entry|exit|adjustment|loss|return")
	quantity := flag.Int("quantity", 0, "Required: raw quantity in grades (adjustment may be negative)")
	color := flag.String("color", "", "Colour name, required when the product has a colour breakdown")
	reason := flag.String("reason", "", "Free-text reason")
	actorID := flag.Int("actor-id", 0, "User id recorded on the movement")
	apply := flag.Bool("apply", false, "Write the movement (default is dry-run)")
	flag.Parse()

	if *productID <= 0 || strings.TrimSpace(*movementType) == "" || *quantity == 0 {
		fmt.Fprintln(os.Stderr, "--product-id, --type and a non-zero --quantity are required")
		os.Exit(1)
	}

	input := &models.NewStockMovement{
		ProductId:   *productID,
		Type:        models.StockMovementType(strings.ToLower(strings.TrimSpace(*movementType))),
		RawQuantity: *quantity,
		ColorName:   strings.TrimSpace(*color),
		Reason:      *reason,
	}
	if !input.Type.IsValid() {
		fmt.Fprintf(os.Stderr, "unknown --type %q\n", *movementType)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	store := models.NewGormStore(db)
	ctx := context.Background()

	if !*apply {
		product, err := store.Products().FindById(ctx, *productID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "product not found: %v\n", err)
			os.Exit(1)
		}
		movement, updated, err := models.BuildStockMovement(product, input, *actorID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rejected: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("dry-run (pass --apply to write)")
		printJSON(map[string]interface{}{
			"movement":  movement,
			"product":   updated,
			"low_stock": updated.IsLowStock(),
		})
		return
	}

	result, err := models.ApplyStockMovement(ctx, store, *actorID, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rejected: %v\n", err)
		os.Exit(1)
	}
	printJSON(result)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
