package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/wholesale_backend/config"
	"github.com/mmdatafocus/wholesale_backend/models"
	"github.com/mmdatafocus/wholesale_backend/utils"
	"github.com/mmdatafocus/wholesale_backend/workflow"
	"github.com/shopspring/decimal"
)

// Runs a two-supplier checkout against in-memory stores: first below supplier A's minimum, then
// after topping up A's group.
func main() {
	decrement := flag.Bool("decrement-stock", false, "Issue exit movements during checkout")
	flag.Parse()

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	logger := config.GetLogger()
	store := models.NewMemoryStore()

	supplierA := mustSupplier(ctx, store, "Supplier A", "500")
	supplierB := mustSupplier(ctx, store, "Supplier B", "300")

	// 6 pieces x 25 = 150 per grade
	shirts, err := models.CreateProduct(ctx, store, &models.NewProduct{
		SupplierId:         supplierA.ID,
		Name:               "Basic T-Shirt",
		SaleType:           models.SaleTypeGrade,
		PricePerPiece:      decimal.NewFromInt(25),
		PiecesPerGrade:     6,
		SizeBreakdown:      models.SizeBreakdown{"P": 2, "M": 2, "G": 2},
		CurrentStockGrades: 20,
	})
	exitOnErr("create product", err)
	caps, err := models.CreateProduct(ctx, store, &models.NewProduct{
		SupplierId:         supplierB.ID,
		Name:               "Cap",
		SaleType:           models.SaleTypeUnit,
		PricePerPiece:      decimal.NewFromInt(35),
		PiecesPerGrade:     1,
		CurrentStockGrades: 100,
	})
	exitOnErr("create product", err)

	service := workflow.NewCartService(store, models.NewMemoryCartStore(), models.StoreSupplierDirectory{Store: store},
		utils.NewMemoryLocker(), logger)
	service.Options.DecrementStock = *decrement
	const session = "sim"

	_, err = service.AddToCart(ctx, session, &workflow.AddToCartInput{ProductId: shirts.ID, Quantity: 3})
	exitOnErr("add shirts", err)
	_, err = service.AddToCart(ctx, session, &workflow.AddToCartInput{ProductId: caps.ID, Quantity: 10})
	exitOnErr("add caps", err)

	view, err := service.ValidateMinimums(ctx, session)
	exitOnErr("validate minimums", err)
	fmt.Println("== minimums before top-up")
	printJSON(view)

	_, err = service.Checkout(ctx, session, 1, "")
	var notMet *models.MinimumNotMetError
	if !errors.As(err, &notMet) {
		fmt.Fprintf(os.Stderr, "expected minimum not met, got %v\n", err)
		os.Exit(1)
	}
	fmt.Println("== checkout rejected:", err)

	_, err = service.AddToCart(ctx, session, &workflow.AddToCartInput{ProductId: shirts.ID, Quantity: 1})
	exitOnErr("top up shirts", err)

	result, err := service.Checkout(ctx, session, 1, "")
	exitOnErr("checkout", err)
	fmt.Printf("== checkout placed %d orders\n", len(result.Orders))
	printJSON(result)

	cart, err := service.GetCart(ctx, session)
	exitOnErr("load cart", err)
	fmt.Printf("== cart items after checkout: %d\n", len(cart.Items))
}

func mustSupplier(ctx context.Context, store models.Store, name string, minimum string) *models.Supplier {
	supplier, err := models.CreateSupplier(ctx, store, &models.NewSupplier{
		Name:              name,
		MinimumOrderValue: decimal.RequireFromString(minimum),
	})
	exitOnErr("create supplier", err)
	return supplier
}

func exitOnErr(step string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
